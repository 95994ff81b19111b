package repository

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/promptvprompt/server-go/internal/game"
	"github.com/promptvprompt/server-go/internal/user"
)

// In-memory store implementations, used when the server runs without a
// database and as deterministic fixtures in tests.

// MemoryGameStore is an in-memory game.SessionStore.
type MemoryGameStore struct {
	mu    sync.RWMutex
	games map[string]game.GameSession
}

// NewMemoryGameStore creates an empty in-memory session store.
func NewMemoryGameStore() *MemoryGameStore {
	return &MemoryGameStore{games: make(map[string]game.GameSession)}
}

// Save stores a copy of the session, making the write atomic with respect
// to concurrent readers.
func (s *MemoryGameStore) Save(ctx context.Context, session *game.GameSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[session.ID] = *session
	return nil
}

// FindByID returns a copy of the stored session.
func (s *MemoryGameStore) FindByID(ctx context.Context, gameID string) (*game.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.games[gameID]
	if !ok {
		return nil, &game.NotFoundError{Resource: "game", ID: gameID}
	}
	copied := session
	return &copied, nil
}

// MemoryTurnStore is an in-memory game.TurnStore.
type MemoryTurnStore struct {
	mu    sync.RWMutex
	turns []game.GameTurn
}

// NewMemoryTurnStore creates an empty in-memory turn store.
func NewMemoryTurnStore() *MemoryTurnStore {
	return &MemoryTurnStore{turns: make([]game.GameTurn, 0, 64)}
}

// Save appends a copy of the turn.
func (s *MemoryTurnStore) Save(ctx context.Context, turn *game.GameTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, *turn)
	return nil
}

// CountByGamePlayerPhase counts stored turns matching all three keys.
func (s *MemoryTurnStore) CountByGamePlayerPhase(ctx context.Context, gameID, playerID string, phase game.GamePhase) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, t := range s.turns {
		if t.GameID == gameID && t.PlayerID == playerID && t.Phase == phase {
			count++
		}
	}
	return count, nil
}

// FindOrderedByGamePlayerPhase lists matching turns ordered by turn number.
func (s *MemoryTurnStore) FindOrderedByGamePlayerPhase(ctx context.Context, gameID, playerID string, phase game.GamePhase) ([]*game.GameTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]*game.GameTurn, 0, 8)
	for i := range s.turns {
		t := s.turns[i]
		if t.GameID == gameID && t.PlayerID == playerID && t.Phase == phase {
			copied := t
			matched = append(matched, &copied)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TurnNumber < matched[j].TurnNumber
	})
	return matched, nil
}

// MemoryTemplateStore is an in-memory game.TemplateStore.
type MemoryTemplateStore struct {
	mu        sync.RWMutex
	templates []game.ScenarioTemplate
}

// NewMemoryTemplateStore creates a template store seeded with the given
// templates.
func NewMemoryTemplateStore(templates ...game.ScenarioTemplate) *MemoryTemplateStore {
	return &MemoryTemplateStore{templates: templates}
}

// Add registers a template.
func (s *MemoryTemplateStore) Add(template game.ScenarioTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = append(s.templates, template)
}

// SelectRandomActive picks one active template at random.
func (s *MemoryTemplateStore) SelectRandomActive(ctx context.Context) (*game.ScenarioTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]game.ScenarioTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		if t.IsActive {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return nil, &game.NotFoundError{Resource: "scenario template"}
	}

	picked := active[rand.Intn(len(active))]
	return &picked, nil
}

// MemoryUserStore is an in-memory user.Store.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]user.User
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]user.User)}
}

// Create stores a copy of the user.
func (s *MemoryUserStore) Create(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	s.users[u.ID] = *u
	return nil
}

// GetByID returns a copy of the stored user.
func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	copied := u
	return &copied, nil
}

// GetByEmail returns the user with the given email.
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

// ExistsByEmail reports whether any user has the given email.
func (s *MemoryUserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByDisplayName reports whether any user has the given display name.
func (s *MemoryUserStore) ExistsByDisplayName(ctx context.Context, displayName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.DisplayName == displayName {
			return true, nil
		}
	}
	return false, nil
}

// UpdateProfile replaces a user's profile.
func (s *MemoryUserStore) UpdateProfile(ctx context.Context, userID string, profile user.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.Profile = profile
	s.users[userID] = u
	return nil
}
