/*
 * file: repository.go
 * package: repository
 * description:
 *     GORM implementation of ports.Store. Translates the GameEngine's
 *     repository calls into Postgres queries, keeping core logic
 *     decoupled from storage details.
 */

package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kts-backend/fow-bot/internal/apperrors"
	"github.com/kts-backend/fow-bot/internal/core/domain"
)

// Store is the GORM-backed implementation of ports.Store.
type Store struct {
	db *gorm.DB
}

// New constructs a Store bound to db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetLatestGame returns the most recently created Game for chatID,
// with its Question and GameScore/User rows preloaded; Players is
// synthesized from the scores rather than a GORM relation, since the
// two share the game_user table under a richer shape than a bare
// many2many join would allow.
func (s *Store) GetLatestGame(ctx context.Context, chatID int64) (*domain.Game, error) {
	var game domain.Game
	err := s.db.WithContext(ctx).
		Preload("Question").
		Preload("Scores.User").
		Where("chat_id = ?", chatID).
		Order("created_at desc").
		First(&game).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewDBError("get_latest_game", err)
	}

	game.Players = make([]domain.User, 0, len(game.Scores))
	for _, sc := range game.Scores {
		game.Players = append(game.Players, sc.User)
	}
	return &game, nil
}

// PickRandomQuestionExcluding returns a uniformly random Question
// whose text is not among exclude. It loads every candidate row and
// picks one with math/rand, which is fine at this table's scale (a
// handful of seeded riddles).
func (s *Store) PickRandomQuestionExcluding(ctx context.Context, exclude []string) (*domain.Question, error) {
	var candidates []domain.Question
	q := s.db.WithContext(ctx)
	if len(exclude) > 0 {
		q = q.Where("question_text NOT IN ?", exclude)
	}
	if err := q.Find(&candidates).Error; err != nil {
		return nil, apperrors.NewDBError("pick_random_question", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	picked := candidates[rand.Intn(len(candidates))]
	return &picked, nil
}

// UpsertUsers inserts each user by VkID, leaving any existing row
// (and its accrued total_points) untouched on conflict.
func (s *Store) UpsertUsers(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "vk_id"}}, DoNothing: true}).
		Create(&users).Error
	if err != nil {
		return apperrors.NewDBError("upsert_users", err)
	}
	return nil
}

func (s *Store) InsertGame(ctx context.Context, game *domain.Game) error {
	if err := s.db.WithContext(ctx).Omit("Players").Create(game).Error; err != nil {
		return apperrors.NewDBError("insert_game", err)
	}
	return nil
}

func (s *Store) InsertScores(ctx context.Context, scores []domain.GameScore) error {
	if len(scores) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&scores).Error; err != nil {
		return apperrors.NewDBError("insert_scores", err)
	}
	return nil
}

func (s *Store) UpdateGame(ctx context.Context, id int64, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&domain.Game{}).Where("id = ?", id).Updates(patch).Error; err != nil {
		return apperrors.NewDBError("update_game", err)
	}
	return nil
}

func (s *Store) UpdateScore(ctx context.Context, gameID, userVkID int64, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&domain.GameScore{}).
		Where("game_id = ? AND user_vk_id = ?", gameID, userVkID).
		Updates(patch).Error
	if err != nil {
		return apperrors.NewDBError("update_score", err)
	}
	return nil
}

// BulkIncrementUserPoints applies every (vk_id -> delta) as a single
// conditional UPDATE ... CASE statement, closing the read-modify-write
// gap of separately reading then writing each user's total.
func (s *Store) BulkIncrementUserPoints(ctx context.Context, deltas map[int64]int64) error {
	if len(deltas) == 0 {
		return nil
	}

	var caseParts []string
	var ids []int64
	args := make([]any, 0, len(deltas)*2)
	for vkID, delta := range deltas {
		caseParts = append(caseParts, "WHEN ? THEN total_points + ?")
		args = append(args, vkID, delta)
		ids = append(ids, vkID)
	}
	idArgs := make([]any, len(ids))
	for i, id := range ids {
		idArgs[i] = id
	}
	args = append(args, idArgs...)

	sql := fmt.Sprintf(
		"UPDATE users SET total_points = CASE vk_id %s ELSE total_points END WHERE vk_id IN (%s)",
		strings.Join(caseParts, " "),
		placeholders(len(ids)),
	)

	if err := s.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		return apperrors.NewDBError("bulk_increment_user_points", err)
	}
	return nil
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ",")
}

func (s *Store) ListUsersByVkIds(ctx context.Context, ids []int64) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).Where("vk_id IN ?", ids).Order("total_points desc").Find(&users).Error
	if err != nil {
		return nil, apperrors.NewDBError("list_users_by_vk_ids", err)
	}
	return users, nil
}

func (s *Store) ListAllUsersByPoints(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := s.db.WithContext(ctx).Order("total_points desc").Find(&users).Error; err != nil {
		return nil, apperrors.NewDBError("list_all_users_by_points", err)
	}
	return users, nil
}
