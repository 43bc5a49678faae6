/*
 * file: router.go
 * package: httpapi
 * description:
 *     Minimal public, unauthenticated HTTP surface: a liveness probe
 *     and the read-only global leaderboard. The full admin surface
 *     (login, add-question) is an external collaborator per the spec
 *     and is not implemented here.
 */

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kts-backend/fow-bot/internal/cache"
)

// NewRouter builds the gin engine serving GET /healthz and GET /leaderboard.
func NewRouter(leaderboard *cache.LeaderboardCache) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/leaderboard", func(c *gin.Context) {
		users, err := leaderboard.Global(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not retrieve leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	})

	return r
}
