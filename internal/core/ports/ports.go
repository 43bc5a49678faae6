/*
 * file: ports.go
 * package: ports
 * description:
 * 			This file defines the interfaces that form the boundaries of the application's core logic (hexagon).
 * 			These ports allow the core services to be decoupled from specific infrastructure implementations.
 */

package ports

import (
	"context"

	"github.com/kts-backend/fow-bot/internal/core/domain"
)

// Store defines the contract the GameEngine assumes about a relational
// backing store. Every method may fail with a DBError-wrapped error on
// infrastructure failure.
type Store interface {
	// GetLatestGame returns the most-recent Game for chatID with its
	// Question, Scores and Players eagerly loaded, or (nil, nil) if the
	// chat has never hosted a game.
	GetLatestGame(ctx context.Context, chatID int64) (*domain.Game, error)

	// PickRandomQuestionExcluding returns a uniformly random Question
	// whose QuestionText is not in exclude, or (nil, nil) if exhausted.
	PickRandomQuestionExcluding(ctx context.Context, exclude []string) (*domain.Question, error)

	// UpsertUsers inserts each user by VkID, ignoring conflicts.
	UpsertUsers(ctx context.Context, users []domain.User) error

	InsertGame(ctx context.Context, game *domain.Game) error
	InsertScores(ctx context.Context, scores []domain.GameScore) error

	// UpdateGame applies patch (a sparse set of columns) to the game
	// identified by id.
	UpdateGame(ctx context.Context, id int64, patch map[string]any) error

	// UpdateScore applies patch to the (gameID, userVkID) score row.
	UpdateScore(ctx context.Context, gameID, userVkID int64, patch map[string]any) error

	// BulkIncrementUserPoints applies every delta as a single
	// conditional UPDATE ... CASE statement.
	BulkIncrementUserPoints(ctx context.Context, deltas map[int64]int64) error

	// ListUsersByVkIds returns users restricted to ids, ordered by
	// TotalPoints desc.
	ListUsersByVkIds(ctx context.Context, ids []int64) ([]domain.User, error)

	// ListAllUsersByPoints returns every user ordered by TotalPoints desc.
	ListAllUsersByPoints(ctx context.Context) ([]domain.User, error)
}

// MessagingClient is the boundary to the external messaging platform.
type MessagingClient interface {
	// LongPoll waits for the next batch of updates. Returns a
	// *TransportError (retriable) or *ProtocolError (session must be
	// re-handshaken) on failure.
	LongPoll(ctx context.Context) ([]Update, error)

	// SendMessage sends text with an optional serialized keyboard to
	// chatID (already converted from peer_id). At-least-once delivery.
	SendMessage(ctx context.Context, chatID int64, text string, keyboard []byte) error

	// FetchMembers returns the full member roster of the group chat
	// identified by peerID.
	FetchMembers(ctx context.Context, peerID int64) ([]domain.User, error)

	// Keyboard factories. Each returns an opaque serialized keyboard.
	PreviewKeyboard() []byte
	DefaultKeyboard() []byte
	GameKeyboard() []byte
}

// UpdateMessage is the inbound message payload of a single Update.
type UpdateMessage struct {
	FromID int64
	Text   string
	ID     int64
	PeerID int64
}

// Update is one long-poll event.
type Update struct {
	Type    string
	Message UpdateMessage
}
