/*
 * file: engine.go
 * package: services
 * description:
 *     GameEngine: the per-chat "Field of Wonders" state machine. Turn
 *     discipline, letter/word decisions, scoring, elimination, and
 *     win/loss termination all live here, grounded on the teacher's
 *     GameService (a repo-backed service keyed by a single turn/board
 *     invariant) generalized to this game's richer state machine.
 */

package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kts-backend/fow-bot/internal/apperrors"
	"github.com/kts-backend/fow-bot/internal/cache"
	"github.com/kts-backend/fow-bot/internal/core/domain"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

// GameEngine owns the process-local mutable state the spec calls out
// explicitly: used_questions per chat, the per-chat turn cursor, and
// the per-chat "only-one-left" flag, all guarded by the engine's chatMu
// rather than floating as package globals.
type GameEngine struct {
	store       ports.Store
	messaging   ports.MessagingClient
	locks       *ChatLockTable
	leaderboard *cache.LeaderboardCache
	log         zerolog.Logger

	chatMu        sync.Mutex
	usedQuestions map[int64][]string
	turnCursor    map[int64]int
	onlyOneLeft   map[int64]bool
}

// NewGameEngine wires a GameEngine to its store, messaging port, and
// the leaderboard cache WorldLeaderboard reads through.
func NewGameEngine(store ports.Store, messaging ports.MessagingClient, leaderboard *cache.LeaderboardCache, log zerolog.Logger) *GameEngine {
	return &GameEngine{
		store:         store,
		messaging:     messaging,
		locks:         NewChatLockTable(),
		leaderboard:   leaderboard,
		log:           log,
		usedQuestions: make(map[int64][]string),
		turnCursor:    make(map[int64]int),
		onlyOneLeft:   make(map[int64]bool),
	}
}

// StartResult is what Start hands back to the Router so it can send
// the riddle and turn-prompt messages itself (see DESIGN.md: the
// Router, not the engine, owns that send per the spec's resolved Open
// Question).
type StartResult struct {
	Game       *domain.Game
	FirstTurn  domain.User
}

// Start begins a new game in the chat identified by peerID, or
// returns (nil, nil) if no unused question remains.
func (e *GameEngine) Start(ctx context.Context, peerID int64) (*StartResult, error) {
	e.locks.Lock(peerID)
	defer e.locks.Unlock(peerID)

	members, err := e.messaging.FetchMembers(ctx, peerID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apperrors.NewValidationError("chat has no members")
	}

	if err := e.store.UpsertUsers(ctx, members); err != nil {
		return nil, err
	}

	question, err := e.store.PickRandomQuestionExcluding(ctx, e.excludedQuestions(peerID))
	if err != nil {
		return nil, err
	}
	if question == nil {
		if sendErr := e.messaging.SendMessage(ctx, toChatID(peerID), noQuestionsText, e.messaging.DefaultKeyboard()); sendErr != nil {
			e.log.Warn().Err(sendErr).Msg("failed to send no-questions notice")
		}
		return nil, nil
	}
	e.markQuestionUsed(peerID, question.QuestionText)

	firstPlayer := members[0]

	game := &domain.Game{
		ChatID:     peerID,
		QuestionID: question.ID,
		Status:     domain.StatePicking,
		TurnUserID: firstPlayer.VkID,
	}
	if err := e.store.InsertGame(ctx, game); err != nil {
		return nil, err
	}

	scores := make([]domain.GameScore, 0, len(members))
	for _, m := range members {
		scores = append(scores, domain.GameScore{GameID: game.ID, UserVkID: m.VkID, UserIsActive: true})
	}
	if err := e.store.InsertScores(ctx, scores); err != nil {
		return nil, err
	}

	e.setTurnCursor(peerID, 0)
	game.Question = *question
	game.Players = members
	game.Scores = scores

	return &StartResult{Game: game, FirstTurn: firstPlayer}, nil
}

// Process handles one inbound message for an active game in chatID,
// re-reading the game from the Store under the chat lock so the
// engine never acts on a stale in-memory snapshot.
func (e *GameEngine) Process(ctx context.Context, chatID int64, text string, fromID int64) error {
	e.locks.Lock(chatID)
	defer e.locks.Unlock(chatID)

	game, err := e.store.GetLatestGame(ctx, chatID)
	if err != nil {
		return err
	}
	if game == nil || game.Status == domain.StateFinish {
		e.log.Debug().Int64("chat_id", chatID).Msg("process: no active game, dropping")
		return nil
	}

	if text == StopButton {
		return e.endGame(ctx, game, nil, "aborted")
	}

	user, score := actorOf(game, fromID)
	if user == nil || score == nil || !score.UserIsActive || game.TurnUserID != fromID {
		e.log.Debug().Int64("chat_id", chatID).Int64("from_id", fromID).Msg("process: stale or invalid actor, dropping")
		return nil
	}

	if e.onlyOneFlagSet(chatID) {
		return e.handleWord(ctx, game, text, *user)
	}

	if text == LetterButton || text == WordButton {
		var next domain.State
		switch text {
		case LetterButton:
			next = domain.StateLetter
		case WordButton:
			next = domain.StateWord
		}
		if game.Status != next {
			if err := e.store.UpdateGame(ctx, game.ID, map[string]any{"status": next, "last_message": text}); err != nil {
				return err
			}
		}
		return e.send(ctx, game.ChatID, fmt.Sprintf("%s %s", user.Name, actionChosenText(text)), e.messaging.DefaultKeyboard())
	}

	switch game.Status {
	case domain.StatePicking:
		e.log.Debug().Int64("chat_id", chatID).Msg("process: no action chosen yet, dropping")
		return nil
	case domain.StateLetter:
		return e.handleLetter(ctx, game, text, *user)
	case domain.StateWord:
		return e.handleWord(ctx, game, text, *user)
	}
	return nil
}

func (e *GameEngine) handleLetter(ctx context.Context, game *domain.Game, text string, user domain.User) error {
	if len([]rune(text)) != 1 {
		return e.send(ctx, game.ChatID, chooseOneLetterText(user.Name, user.LastName), e.messaging.DefaultKeyboard())
	}

	c := strings.ToLower(text)
	answer := strings.ToLower(game.Question.AnswerText)
	revealed := game.LettersRevealed

	if strings.Contains(revealed, c) {
		return e.send(ctx, game.ChatID, letterAlreadyRevealedText(user.Name), e.messaging.DefaultKeyboard())
	}

	if !strings.Contains(answer, c) {
		if err := e.send(ctx, game.ChatID, letterNotFoundText(user.Name), e.messaging.DefaultKeyboard()); err != nil {
			return err
		}
		if err := e.store.UpdateGame(ctx, game.ID, map[string]any{"status": domain.StatePicking, "last_message": text}); err != nil {
			return err
		}
		return e.advanceTurn(ctx, game, user.VkID, false)
	}

	occurrences := strings.Count(answer, c)
	if err := e.creditPoints(ctx, game, user.VkID, int64(occurrences)); err != nil {
		return err
	}

	newRevealed := revealed + c
	display := renderDisplay(answer, newRevealed)

	if letterSetEquals(newRevealed, answer) {
		if err := e.creditPoints(ctx, game, user.VkID, 10); err != nil {
			return err
		}
		if err := e.store.UpdateGame(ctx, game.ID, map[string]any{"letters_revealed": newRevealed}); err != nil {
			return err
		}
		return e.endGame(ctx, game, &user, "")
	}

	if err := e.store.UpdateGame(ctx, game.ID, map[string]any{
		"letters_revealed": newRevealed,
		"last_message":     text,
	}); err != nil {
		return err
	}
	return e.send(ctx, game.ChatID, chooseAgainText(display), e.messaging.GameKeyboard())
}

func (e *GameEngine) handleWord(ctx context.Context, game *domain.Game, text string, user domain.User) error {
	if len([]rune(text)) == 1 {
		return e.send(ctx, game.ChatID, nameAWordText(user.Name, user.LastName), e.messaging.DefaultKeyboard())
	}

	if strings.EqualFold(text, game.Question.AnswerText) {
		if err := e.creditPoints(ctx, game, user.VkID, 10); err != nil {
			return err
		}
		return e.endGame(ctx, game, &user, "")
	}

	if err := e.send(ctx, game.ChatID, userKickedText(user.Name, user.LastName), e.messaging.DefaultKeyboard()); err != nil {
		return err
	}
	if err := e.store.UpdateScore(ctx, game.ID, user.VkID, map[string]any{"user_is_active": false}); err != nil {
		return err
	}
	if err := e.store.UpdateGame(ctx, game.ID, map[string]any{"status": domain.StatePicking, "last_message": text}); err != nil {
		return err
	}

	active := activeCount(game, user.VkID)
	switch {
	case active <= 1:
		return e.endGame(ctx, game, nil, "aborted")
	case active == 2:
		e.setOnlyOneLeft(game.ChatID, true)
		return e.advanceTurn(ctx, game, user.VkID, true)
	default:
		return e.advanceTurn(ctx, game, user.VkID, false)
	}
}

// advanceTurn selects the next turn-holder by round-robin over
// game.Players using the per-chat cursor, skipping inactive players
// and excludedUserID.
func (e *GameEngine) advanceTurn(ctx context.Context, game *domain.Game, excludedUserID int64, lastPlayer bool) error {
	if len(game.Players) == 0 {
		return nil
	}
	cursor := e.nextTurnCursor(game.ChatID, len(game.Players))

	var next *domain.User
	for i := 0; i < len(game.Players); i++ {
		idx := (cursor + i) % len(game.Players)
		candidate := game.Players[idx]
		if candidate.VkID == excludedUserID {
			continue
		}
		if !isActive(game, candidate.VkID) {
			continue
		}
		next = &game.Players[idx]
		e.setTurnCursor(game.ChatID, idx)
		break
	}
	if next == nil {
		return nil
	}

	if err := e.store.UpdateGame(ctx, game.ID, map[string]any{"turn_user_id": next.VkID}); err != nil {
		return err
	}

	if lastPlayer {
		return e.send(ctx, game.ChatID, lastPlayerTurnText(next.Name, next.LastName), e.messaging.GameKeyboard())
	}
	return e.send(ctx, game.ChatID, turnPromptText(next.Name, next.LastName), e.messaging.GameKeyboard())
}

// endGame finalizes the game: announces the outcome, marks the game
// finished, and is the sole place User.total_points changes.
func (e *GameEngine) endGame(ctx context.Context, game *domain.Game, winner *domain.User, reason string) error {
	leaderboard := gameLeaderboardText(game)

	var text string
	if winner != nil {
		text = victoryText(winner.Name, winner.LastName, game.Question.AnswerText, leaderboard)
	} else {
		text = gameAbortedText(leaderboard)
	}
	if err := e.send(ctx, game.ChatID, text, e.messaging.PreviewKeyboard()); err != nil {
		return err
	}

	if err := e.store.UpdateGame(ctx, game.ID, map[string]any{"status": domain.StateFinish}); err != nil {
		return err
	}

	deltas := make(map[int64]int64, len(game.Scores))
	for _, sc := range game.Scores {
		deltas[sc.UserVkID] = sc.Points
	}
	if err := e.store.BulkIncrementUserPoints(ctx, deltas); err != nil {
		return err
	}

	e.clearChatState(game.ChatID)
	_ = reason
	return nil
}

// WorldLeaderboard renders the all-time points of every member of the
// chat identified by peerID, reading through the per-chat leaderboard
// cache rather than hitting the Store on every request.
func (e *GameEngine) WorldLeaderboard(ctx context.Context, peerID int64) (string, error) {
	users, err := e.leaderboard.PerChat(ctx, peerID, func(ctx context.Context) ([]domain.User, error) {
		members, err := e.messaging.FetchMembers(ctx, peerID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.VkID)
		}
		return e.store.ListUsersByVkIds(ctx, ids)
	})
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return noOnePlayedText, nil
	}

	var b strings.Builder
	b.WriteString("total_points:\n")
	for _, u := range users {
		b.WriteString(fmt.Sprintf("%s %s - %d <br>", u.Name, u.LastName, u.TotalPoints))
	}
	return b.String(), nil
}

func (e *GameEngine) creditPoints(ctx context.Context, game *domain.Game, userVkID int64, delta int64) error {
	for i := range game.Scores {
		if game.Scores[i].UserVkID == userVkID {
			game.Scores[i].Points += delta
			return e.store.UpdateScore(ctx, game.ID, userVkID, map[string]any{"points": game.Scores[i].Points})
		}
	}
	return nil
}

// send addresses a message to the chat whose Game.ChatID (== peer_id,
// stored unchanged) is peerID, converting to the outbound chat_id
// form expected by messages.send.
func (e *GameEngine) send(ctx context.Context, peerID int64, text string, keyboard []byte) error {
	return e.messaging.SendMessage(ctx, toChatID(peerID), text, keyboard)
}

// toChatID converts an inbound peer_id to the chat_id form used in
// outbound sends: chat_id = peer_id - ID_CONSTANT.
func toChatID(peerID int64) int64 { return peerID - idConstant }

const idConstant int64 = 2_000_000_000

func actorOf(game *domain.Game, fromID int64) (*domain.User, *domain.GameScore) {
	var user *domain.User
	for i := range game.Players {
		if game.Players[i].VkID == fromID {
			user = &game.Players[i]
			break
		}
	}
	var score *domain.GameScore
	for i := range game.Scores {
		if game.Scores[i].UserVkID == fromID {
			score = &game.Scores[i]
			break
		}
	}
	return user, score
}

func isActive(game *domain.Game, userVkID int64) bool {
	for _, sc := range game.Scores {
		if sc.UserVkID == userVkID {
			return sc.UserIsActive
		}
	}
	return false
}

func activeCount(game *domain.Game, justEliminated int64) int {
	n := 0
	for _, sc := range game.Scores {
		if sc.UserVkID == justEliminated {
			continue
		}
		if sc.UserIsActive {
			n++
		}
	}
	return n
}

func renderDisplay(answer, revealed string) string {
	var b strings.Builder
	for _, r := range answer {
		if strings.ContainsRune(revealed, r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	return b.String()
}

func letterSetEquals(revealed, answer string) bool {
	want := map[rune]bool{}
	for _, r := range answer {
		want[r] = true
	}
	have := map[rune]bool{}
	for _, r := range revealed {
		have[r] = true
	}
	if len(want) != len(have) {
		return false
	}
	for r := range want {
		if !have[r] {
			return false
		}
	}
	return true
}

func gameLeaderboardText(game *domain.Game) string {
	names := make(map[int64]string, len(game.Players))
	for _, p := range game.Players {
		names[p.VkID] = p.Name + " " + p.LastName
	}
	var parts []string
	for _, sc := range game.Scores {
		parts = append(parts, fmt.Sprintf("%s: %d", names[sc.UserVkID], sc.Points))
	}
	return fmt.Sprintf("Таблица лидеров игры номер %d - %s", game.ID, strings.Join(parts, ", "))
}

func (e *GameEngine) excludedQuestions(chatID int64) []string {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	out := make([]string, len(e.usedQuestions[chatID]))
	copy(out, e.usedQuestions[chatID])
	return out
}

func (e *GameEngine) markQuestionUsed(chatID int64, questionText string) {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	e.usedQuestions[chatID] = append(e.usedQuestions[chatID], questionText)
}

func (e *GameEngine) setTurnCursor(chatID int64, cursor int) {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	e.turnCursor[chatID] = cursor
}

func (e *GameEngine) nextTurnCursor(chatID int64, playerCount int) int {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	cur := e.turnCursor[chatID]
	next := (cur + 1) % playerCount
	return next
}

func (e *GameEngine) setOnlyOneLeft(chatID int64, v bool) {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	e.onlyOneLeft[chatID] = v
}

func (e *GameEngine) onlyOneFlagSet(chatID int64) bool {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	return e.onlyOneLeft[chatID]
}

func (e *GameEngine) clearChatState(chatID int64) {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()
	delete(e.turnCursor, chatID)
	delete(e.onlyOneLeft, chatID)
}
