package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/masterboy376/cphere/internal/core/domain"
)

// Store keeps users, chats, messages and notifications in process memory.
// It backs the "memory" store driver and the service tests.
type Store struct {
	mu            sync.RWMutex
	users         map[string]domain.User
	chats         map[string]domain.Chat
	messages      map[string][]domain.Message // chat_id → messages in insertion order
	notifications map[string]domain.Notification
	resets        map[string]resetToken // token hash → holder
}

type resetToken struct {
	userID    string
	expiresAt time.Time
}

func NewStore() *Store {
	return &Store{
		users:         make(map[string]domain.User),
		chats:         make(map[string]domain.Chat),
		messages:      make(map[string][]domain.Message),
		notifications: make(map[string]domain.Notification),
		resets:        make(map[string]resetToken),
	}
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrUserExists
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Store) SearchUsers(_ context.Context, query string, limit int) ([]domain.User, error) {
	q := strings.ToLower(query)
	s.mu.RLock()
	out := []domain.User{}
	for _, u := range s.users {
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetResetToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return domain.ErrUserNotFound
	}
	for h, rt := range s.resets {
		if rt.userID == userID {
			delete(s.resets, h)
		}
	}
	s.resets[tokenHash] = resetToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Store) ResetPassword(_ context.Context, tokenHash, passwordHash string, now time.Time) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.resets[tokenHash]
	if !ok || !now.Before(rt.expiresAt) {
		return nil, domain.ErrInvalidResetToken
	}
	delete(s.resets, tokenHash)
	u, ok := s.users[rt.userID]
	if !ok {
		return nil, domain.ErrInvalidResetToken
	}
	u.PasswordHash = passwordHash
	s.users[u.ID] = u
	return &u, nil
}

// Sweep drops reset tokens that expired before now.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for h, rt := range s.resets {
		if !now.Before(rt.expiresAt) {
			delete(s.resets, h)
			n++
		}
	}
	return n
}

func (s *Store) LoadOrCreateChat(_ context.Context, chatID string, participants []string) (*domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		return cloneChat(c), nil
	}
	if len(participants) == 0 {
		return nil, domain.ErrChatNotFound
	}
	c := domain.NewChat(chatID, participants)
	s.chats[chatID] = *c
	return cloneChat(*c), nil
}

func (s *Store) FindChatByParticipants(_ context.Context, participants []string) (*domain.Chat, error) {
	want := domain.NormalizeParticipants(participants)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.chats {
		if slices.Equal(c.ParticipantIDs, want) {
			return cloneChat(c), nil
		}
	}
	return nil, domain.ErrChatNotFound
}

func (s *Store) ListChatsForUser(_ context.Context, userID string) ([]domain.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Chat
	for _, c := range s.chats {
		if c.HasParticipant(userID) {
			out = append(out, *cloneChat(c))
		}
	}
	slices.SortFunc(out, func(a, b domain.Chat) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) PersistMessage(_ context.Context, msg *domain.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := *msg
	if m.ID == "" {
		m.ID = domain.NewID()
	}
	s.messages[m.ChatID] = append(s.messages[m.ChatID], m)
	return m.ID, nil
}

func (s *Store) ListMessages(_ context.Context, chatID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.messages[chatID])
	slices.SortStableFunc(out, func(a, b domain.Message) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) LastMessage(ctx context.Context, chatID string) (*domain.Message, error) {
	msgs, _ := s.ListMessages(ctx, chatID)
	if len(msgs) == 0 {
		return nil, domain.ErrMessageNotFound
	}
	return &msgs[len(msgs)-1], nil
}

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) MarkHandled(_ context.Context, id, recipientID string) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID || n.IsHandled {
		return nil, domain.ErrNotificationNotFound
	}
	n.IsHandled = true
	s.notifications[id] = n
	return &n, nil
}

func (s *Store) ListForUser(_ context.Context, recipientID string) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b domain.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func cloneChat(c domain.Chat) *domain.Chat {
	c.ParticipantIDs = slices.Clone(c.ParticipantIDs)
	return &c
}
