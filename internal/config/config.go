/*
 * file: config.go
 * package: config
 * description:
 *     Process configuration, loaded once at startup from flags with
 *     environment-variable fallback (prefix FOW_) and validated before
 *     anything else runs.
 */

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete process configuration named in spec.md §6,
// plus the ambient ingestion/transport knobs the core needs to run.
type Config struct {
	BotGroupID int    `validate:"required"`
	BotToken   string `validate:"required"`

	DBHost     string `validate:"required"`
	DBUser     string `validate:"required"`
	DBPassword string `validate:"required"`
	DBName     string `validate:"required"`
	DBPort     int    `validate:"required"`

	SessionKey string `validate:"required"`

	AdminEmail    string `validate:"required,email"`
	AdminPassword string `validate:"required"`

	Workers              int           `validate:"required,gte=1"`
	QueueCapacity        int           `validate:"required,gte=1"`
	RateCapacity         int           `validate:"required,gte=1"`
	RateRefillPerSecond  float64       `validate:"required,gt=0"`
	LongPollWait         time.Duration `validate:"required"`
	SendTimeout          time.Duration `validate:"required"`

	RedisAddr      string
	LeaderboardTTL time.Duration `validate:"required"`

	HTTPAddr string `validate:"required"`

	LogLevel  string `validate:"required,oneof=debug info warn error"`
	LogFormat string `validate:"required,oneof=console json"`
}

// Validate runs struct-tag validation and returns a readable error on
// the first failing field.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// NewCommand builds the root cobra command. RunE is supplied by the
// caller (cmd/fowbot) so this package stays free of wiring concerns.
func NewCommand(cfg *Config, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "fow-bot",
		Short:         "Field of Wonders game server for group-chat play.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()

	fs.IntVar(&cfg.BotGroupID, "bot-group-id", 0, "VK community group id (env: FOW_BOT_GROUP_ID)")
	fs.StringVar(&cfg.BotToken, "bot-token", "", "VK community access token (env: FOW_BOT_TOKEN)")

	fs.StringVar(&cfg.DBHost, "db-host", "localhost", "database host (env: FOW_DB_HOST)")
	fs.StringVar(&cfg.DBUser, "db-user", "", "database user (env: FOW_DB_USER)")
	fs.StringVar(&cfg.DBPassword, "db-password", "", "database password (env: FOW_DB_PASSWORD)")
	fs.StringVar(&cfg.DBName, "db-name", "", "database name (env: FOW_DB_NAME)")
	fs.IntVar(&cfg.DBPort, "db-port", 5432, "database port (env: FOW_DB_PORT)")

	fs.StringVar(&cfg.SessionKey, "session-key", "", "admin HTTP session signing key (env: FOW_SESSION_KEY)")

	fs.StringVar(&cfg.AdminEmail, "admin-email", "", "admin login email (env: FOW_ADMIN_EMAIL)")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "admin login password (env: FOW_ADMIN_PASSWORD)")

	fs.IntVar(&cfg.Workers, "workers", 5, "worker pool size (env: FOW_WORKERS)")
	fs.IntVar(&cfg.QueueCapacity, "queue-capacity", 256, "bounded update queue capacity (env: FOW_QUEUE_CAPACITY)")
	fs.IntVar(&cfg.RateCapacity, "rate-capacity", 3, "per-user token bucket capacity (env: FOW_RATE_CAPACITY)")
	fs.Float64Var(&cfg.RateRefillPerSecond, "rate-refill", 3, "per-user token bucket refill rate, tokens/sec (env: FOW_RATE_REFILL)")
	fs.DurationVar(&cfg.LongPollWait, "longpoll-wait", 30*time.Second, "VK long-poll wait parameter (env: FOW_LONGPOLL_WAIT)")
	fs.DurationVar(&cfg.SendTimeout, "send-timeout", 10*time.Second, "headroom added to longpoll-wait for the HTTP timeout shared by all VK calls; also the poller's retry back-off (env: FOW_SEND_TIMEOUT)")

	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for the leaderboard cache, empty disables it (env: FOW_REDIS_ADDR)")
	fs.DurationVar(&cfg.LeaderboardTTL, "leaderboard-ttl", 5*time.Second, "leaderboard cache entry TTL (env: FOW_LEADERBOARD_TTL)")

	fs.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "address for the public read-only HTTP surface (env: FOW_HTTP_ADDR)")

	fs.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug|info|warn|error (env: FOW_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "json", "log format: console|json (env: FOW_LOG_FORMAT)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true

	return cmd
}
