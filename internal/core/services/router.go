/*
 * file: router.go
 * package: services
 * description:
 *     Dispatches one inbound update: delegates to the GameEngine while
 *     a game is active in the chat, otherwise matches the three
 *     canonical commands. Grounded on the original bot manager's
 *     handle_updates dispatch, generalized from its hardcoded mention
 *     prefixes to a strip-anything-before-"] " rule.
 */

package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kts-backend/fow-bot/internal/apperrors"
	"github.com/kts-backend/fow-bot/internal/core/domain"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

// Router is the GameEngine's caller: one per process, invoked by each
// WorkerPool worker for every update it dequeues.
type Router struct {
	store     ports.Store
	messaging ports.MessagingClient
	engine    *GameEngine
	log       zerolog.Logger
}

// NewRouter wires a Router to its engine and ports.
func NewRouter(store ports.Store, messaging ports.MessagingClient, engine *GameEngine, log zerolog.Logger) *Router {
	return &Router{store: store, messaging: messaging, engine: engine, log: log}
}

// canonicalText strips a leading "[club…|@…] " or "[club…|API …] "
// mention prefix: the canonical message is the substring after the
// last "] ", or the whole text if there is none.
func canonicalText(text string) string {
	if idx := strings.LastIndex(text, "] "); idx != -1 {
		return text[idx+2:]
	}
	return text
}

// Dispatch handles one update. Errors are logged by the caller
// (WorkerPool); Dispatch itself never panics on a malformed update —
// it drops it as a ValidationError.
func (r *Router) Dispatch(ctx context.Context, update ports.Update) error {
	msg := update.Message
	if msg.PeerID == 0 {
		return apperrors.NewValidationError("update missing peer_id")
	}

	// Game.chat_id stores peer_id unchanged; the peer_id -> chat_id
	// subtraction only applies to outbound sends (see toChatID).
	peerID := msg.PeerID
	text := canonicalText(msg.Text)

	game, err := r.store.GetLatestGame(ctx, peerID)
	if err != nil {
		return err
	}
	if game != nil && game.Status != domain.StateFinish {
		return r.engine.Process(ctx, peerID, text, msg.FromID)
	}

	sendTo := toChatID(peerID)

	switch text {
	case InfoCommand:
		return r.messaging.SendMessage(ctx, sendTo, aboutGameText, r.messaging.PreviewKeyboard())

	case StartCommand:
		result, err := r.engine.Start(ctx, peerID)
		if err != nil {
			return err
		}
		if result == nil {
			return nil
		}
		if err := r.messaging.SendMessage(ctx, sendTo, riddleText(result.Game.Question.QuestionText), r.messaging.DefaultKeyboard()); err != nil {
			return err
		}
		return r.messaging.SendMessage(ctx, sendTo, turnPromptText(result.FirstTurn.Name, result.FirstTurn.LastName), r.messaging.GameKeyboard())

	case LeaderboardCommand:
		board, err := r.engine.WorldLeaderboard(ctx, peerID)
		if err != nil {
			return err
		}
		return r.messaging.SendMessage(ctx, sendTo, board, r.messaging.PreviewKeyboard())

	default:
		return r.messaging.SendMessage(ctx, sendTo, wantToPlayText, r.messaging.PreviewKeyboard())
	}
}
