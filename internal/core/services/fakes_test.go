package services

import (
	"context"
	"sync"

	"github.com/kts-backend/fow-bot/internal/core/domain"
	"github.com/kts-backend/fow-bot/internal/core/ports"
)

// fakeStore is an in-memory ports.Store for exercising the GameEngine
// without a database, following the pack's hand-written-fake-over-
// repository-port test pattern.
type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]domain.User
	questions []domain.Question
	games     map[int64]*domain.Game
	scores    map[int64][]domain.GameScore
	nextGame  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:  make(map[int64]domain.User),
		games:  make(map[int64]*domain.Game),
		scores: make(map[int64][]domain.GameScore),
	}
}

func (s *fakeStore) GetLatestGame(ctx context.Context, chatID int64) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[chatID]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Scores = append([]domain.GameScore(nil), s.scores[g.ID]...)
	cp.Players = make([]domain.User, 0, len(cp.Scores))
	for _, sc := range cp.Scores {
		cp.Players = append(cp.Players, s.users[sc.UserVkID])
	}
	return &cp, nil
}

func (s *fakeStore) PickRandomQuestionExcluding(ctx context.Context, exclude []string) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	excluded := map[string]bool{}
	for _, e := range exclude {
		excluded[e] = true
	}
	for _, q := range s.questions {
		if !excluded[q.QuestionText] {
			cp := q
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) UpsertUsers(ctx context.Context, users []domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		if _, exists := s.users[u.VkID]; !exists {
			s.users[u.VkID] = u
		}
	}
	return nil
}

func (s *fakeStore) InsertGame(ctx context.Context, game *domain.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGame++
	game.ID = s.nextGame
	cp := *game
	s.games[game.ChatID] = &cp
	return nil
}

func (s *fakeStore) InsertScores(ctx context.Context, scores []domain.GameScore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range scores {
		s.scores[sc.GameID] = append(s.scores[sc.GameID], sc)
	}
	return nil
}

func (s *fakeStore) UpdateGame(ctx context.Context, id int64, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.ID != id {
			continue
		}
		if v, ok := patch["status"]; ok {
			g.Status = v.(domain.State)
		}
		if v, ok := patch["last_message"]; ok {
			g.LastMessage = v.(string)
		}
		if v, ok := patch["letters_revealed"]; ok {
			g.LettersRevealed = v.(string)
		}
		if v, ok := patch["turn_user_id"]; ok {
			g.TurnUserID = v.(int64)
		}
	}
	return nil
}

func (s *fakeStore) UpdateScore(ctx context.Context, gameID, userVkID int64, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.scores[gameID]
	for i := range rows {
		if rows[i].UserVkID != userVkID {
			continue
		}
		if v, ok := patch["points"]; ok {
			rows[i].Points = v.(int64)
		}
		if v, ok := patch["user_is_active"]; ok {
			rows[i].UserIsActive = v.(bool)
		}
	}
	return nil
}

func (s *fakeStore) BulkIncrementUserPoints(ctx context.Context, deltas map[int64]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, delta := range deltas {
		u := s.users[id]
		u.TotalPoints += delta
		s.users[id] = u
	}
	return nil
}

func (s *fakeStore) ListUsersByVkIds(ctx context.Context, ids []int64) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAllUsersByPoints(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

// fakeMessaging is an in-memory ports.MessagingClient recording every
// outbound send for assertion.
type fakeMessaging struct {
	mu      sync.Mutex
	members []domain.User
	sent    []sentMessage
}

type sentMessage struct {
	ChatID int64
	Text   string
}

func newFakeMessaging(members ...domain.User) *fakeMessaging {
	return &fakeMessaging{members: members}
}

func (m *fakeMessaging) LongPoll(ctx context.Context) ([]ports.Update, error) {
	return nil, nil
}

func (m *fakeMessaging) SendMessage(ctx context.Context, chatID int64, text string, keyboard []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *fakeMessaging) FetchMembers(ctx context.Context, peerID int64) ([]domain.User, error) {
	return m.members, nil
}

func (m *fakeMessaging) PreviewKeyboard() []byte { return []byte(`{"kind":"preview"}`) }
func (m *fakeMessaging) DefaultKeyboard() []byte  { return []byte(`{"kind":"default"}`) }
func (m *fakeMessaging) GameKeyboard() []byte     { return []byte(`{"kind":"game"}`) }

func (m *fakeMessaging) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *fakeMessaging) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
