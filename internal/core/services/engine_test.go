package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kts-backend/fow-bot/internal/cache"
	"github.com/kts-backend/fow-bot/internal/core/domain"
)

const testChatID int64 = 2_000_000_042

func newTestEngine(store *fakeStore, messaging *fakeMessaging) *GameEngine {
	// addr == "" keeps the leaderboard cache a transparent passthrough
	// to the store, same as a test environment with no Redis.
	leaderboard := cache.New(store, "", time.Second)
	return NewGameEngine(store, messaging, leaderboard, zerolog.Nop())
}

// seedGame installs a game in progress directly into the fake store,
// bypassing Start, so each test only has to state the state it cares
// about.
func seedGame(t *testing.T, store *fakeStore, answer string, status domain.State, players []domain.User, turnUserID int64) *domain.Game {
	t.Helper()
	require.NoError(t, store.UpsertUsers(context.Background(), players))

	game := &domain.Game{
		ChatID:     testChatID,
		Status:     status,
		TurnUserID: turnUserID,
		Question:   domain.Question{ID: 1, QuestionText: "тестовый вопрос", AnswerText: answer},
	}
	require.NoError(t, store.InsertGame(context.Background(), game))

	scores := make([]domain.GameScore, 0, len(players))
	for _, p := range players {
		scores = append(scores, domain.GameScore{GameID: game.ID, UserVkID: p.VkID, UserIsActive: true})
	}
	require.NoError(t, store.InsertScores(context.Background(), scores))

	game.Players = players
	game.Scores = scores
	store.games[testChatID] = game
	return game
}

func player(vkID int64, name, lastName string) domain.User {
	return domain.User{VkID: vkID, Name: name, LastName: lastName}
}

// S1: a single correct letter that completes the answer's whole letter
// set wins the game outright and credits both the occurrence count and
// the +10 win bonus.
func TestProcess_SingleLetterCompletesWord_Wins(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	game := seedGame(t, store, "aaa", domain.StateLetter, []domain.User{p1, p2}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "a", p1.VkID)
	require.NoError(t, err)

	finished, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinish, finished.Status)

	users, err := store.ListUsersByVkIds(context.Background(), []int64{p1.VkID})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(13), users[0].TotalPoints, "3 occurrences of 'a' plus the 10-point win bonus")

	assert.Equal(t, game.ID, finished.ID)
}

// Property: a correct letter credits the occurrence count of that
// letter in the answer, not a flat +1.
func TestProcess_CorrectLetter_CreditsOccurrenceCount(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	seedGame(t, store, "banana", domain.StateLetter, []domain.User{p1, p2}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "a", p1.VkID)
	require.NoError(t, err)

	game, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)
	require.Equal(t, domain.StateLetter, game.Status, "game continues: 'a' alone doesn't complete banana's letter set")

	for _, sc := range game.Scores {
		if sc.UserVkID == p1.VkID {
			assert.Equal(t, int64(3), sc.Points, "banana contains 3 occurrences of 'a'")
		}
	}
}

// S2: a wrong letter does not end the game; it records the miss and
// passes the turn to the next active player.
func TestProcess_WrongLetter_PassesTurn(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	seedGame(t, store, "cat", domain.StateLetter, []domain.User{p1, p2}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "z", p1.VkID)
	require.NoError(t, err)

	game, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Equal(t, p2.VkID, game.TurnUserID, "turn passes to the other player after a miss")
	assert.Equal(t, domain.StatePicking, game.Status, "a wrong answer resets the state to picking so the next turn-holder must choose an action again")
}

// S3: a wrong word eliminates the guesser. With three active players,
// eliminating one still leaves two: the game continues but the
// only-one-left flag engages for the remaining pair.
func TestProcess_WrongWord_EliminatesDownToOnlyOneLeft(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	p3 := player(3, "Carl", "Sokolov")
	seedGame(t, store, "cat", domain.StateWord, []domain.User{p1, p2, p3}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "dog", p1.VkID)
	require.NoError(t, err)

	game, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)

	var p1Score *domain.GameScore
	for i := range game.Scores {
		if game.Scores[i].UserVkID == p1.VkID {
			p1Score = &game.Scores[i]
		}
	}
	require.NotNil(t, p1Score)
	assert.False(t, p1Score.UserIsActive, "a wrong word eliminates the guesser")
	assert.True(t, engine.onlyOneFlagSet(testChatID), "two active players left engages the forced-word flag")
	assert.Equal(t, domain.StatePicking, game.Status, "a wrong answer resets the state to picking so the next turn-holder must choose an action again")
}

// A non-fatal wrong word with three or more survivors left also resets
// the state to picking, same as a wrong letter: the next turn-holder
// must press an action button again before a guess is accepted.
func TestProcess_WrongWord_WithSurvivorsLeft_ResetsToPicking(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	p3 := player(3, "Carl", "Sokolov")
	p4 := player(4, "Dana", "Orlova")
	seedGame(t, store, "cat", domain.StateWord, []domain.User{p1, p2, p3, p4}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "dog", p1.VkID)
	require.NoError(t, err)

	game, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePicking, game.Status)
	assert.False(t, engine.onlyOneFlagSet(testChatID), "three survivors remain, too many to force word interpretation")
}

// S4: once the only-one-left flag is set, any subsequent input from
// the turn-holder other than the stop button is interpreted as a word
// attempt — even the "choose a letter" button label — regardless of
// the game's nominal status.
func TestProcess_OnlyOneLeft_ForcesWordInterpretation(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	game := seedGame(t, store, "cat", domain.StatePicking, []domain.User{p1, p2}, p2.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)
	engine.setOnlyOneLeft(testChatID, true)

	err := engine.Process(context.Background(), testChatID, LetterButton, p2.VkID)
	require.NoError(t, err)

	assert.NotContains(t, messaging.lastText(), "выберите букву!", "must not be treated as an action selection")

	updated, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)
	var p2Score *domain.GameScore
	for i := range updated.Scores {
		if updated.Scores[i].UserVkID == p2.VkID {
			p2Score = &updated.Scores[i]
		}
	}
	require.NotNil(t, p2Score)
	assert.False(t, p2Score.UserIsActive, "the button label mismatches the answer and is scored as a wrong word")
	_ = game
}

// S5: input from anyone other than the chat's current turn-holder is
// silently dropped — no message is sent and no state changes.
func TestProcess_StaleActor_SilentlyDropped(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	seedGame(t, store, "cat", domain.StateLetter, []domain.User{p1, p2}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "a", p2.VkID)
	require.NoError(t, err)

	assert.Equal(t, 0, messaging.count(), "no message is sent for an out-of-turn actor")

	game, err := store.GetLatestGame(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Equal(t, p1.VkID, game.TurnUserID, "turn state is untouched")
}

// Property: at most one active game exists per chat at a time. Process
// on a chat whose latest game has already finished is a silent no-op,
// never resurrecting state.
func TestProcess_FinishedGame_IsNoOp(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	seedGame(t, store, "cat", domain.StateFinish, []domain.User{p1}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	err := engine.Process(context.Background(), testChatID, "a", p1.VkID)
	require.NoError(t, err)
	assert.Equal(t, 0, messaging.count())
}

// Property: total_points across all users only ever increases by
// exactly the sum of the finishing game's per-user score deltas — no
// more, no less.
func TestProcess_WinEndGame_ConservesTotalPoints(t *testing.T) {
	store := newFakeStore()
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	seedGame(t, store, "cat", domain.StateWord, []domain.User{p1, p2}, p1.VkID)

	messaging := newFakeMessaging()
	engine := newTestEngine(store, messaging)

	require.NoError(t, engine.Process(context.Background(), testChatID, "cat", p1.VkID))

	users, err := store.ListAllUsersByPoints(context.Background())
	require.NoError(t, err)

	var total int64
	for _, u := range users {
		total += u.TotalPoints
	}
	assert.Equal(t, int64(10), total, "only the winner's +10 flat word bonus is credited")
}

// Property: a Start call on a chat with no remaining unused questions
// returns (nil, nil) rather than an error, and sends the out-of-
// questions notice.
func TestStart_NoQuestionsRemaining_ReturnsNilResult(t *testing.T) {
	store := newFakeStore()
	messaging := newFakeMessaging(player(1, "Anna", "Ivanova"))
	engine := newTestEngine(store, messaging)

	result, err := engine.Start(context.Background(), testChatID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, messaging.count())
}

// Property: Start assigns the first fetched member the first turn and
// persists one score row per member.
func TestStart_AssignsFirstMemberFirstTurn(t *testing.T) {
	store := newFakeStore()
	store.questions = []domain.Question{{ID: 7, QuestionText: "q", AnswerText: "fox"}}
	p1 := player(1, "Anna", "Ivanova")
	p2 := player(2, "Boris", "Petrov")
	messaging := newFakeMessaging(p1, p2)
	engine := newTestEngine(store, messaging)

	result, err := engine.Start(context.Background(), testChatID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, p1.VkID, result.FirstTurn.VkID)
	assert.Equal(t, domain.StatePicking, result.Game.Status)
	assert.Len(t, result.Game.Scores, 2)
}
