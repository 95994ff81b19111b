package user

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	users map[string]*User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*User)}
}

func (s *fakeStore) Create(ctx context.Context, u *User) error {
	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user not found")
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user not found")
}

func (s *fakeStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ExistsByDisplayName(ctx context.Context, displayName string) (bool, error) {
	for _, u := range s.users {
		if u.DisplayName == displayName {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) UpdateProfile(ctx context.Context, userID string, profile Profile) error {
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.Profile = profile
	return nil
}

func newTestManager() (*Manager, *fakeStore) {
	store := newFakeStore()
	return NewManager(store, zap.NewNop()), store
}

func TestRegister(t *testing.T) {
	m, _ := newTestManager()

	u, err := m.Register(context.Background(), "alice@example.com", "s3cret", "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "alice", u.DisplayName)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Register(ctx, "alice@example.com", "pw", "alice")
	require.NoError(t, err)

	_, err = m.Register(ctx, "alice@example.com", "pw", "alice2")
	assert.EqualError(t, err, "email is already registered")

	_, err = m.Register(ctx, "other@example.com", "pw", "alice")
	assert.EqualError(t, err, "username is already taken")
}

func TestRegisterRequiresAllFields(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.Register(context.Background(), "", "pw", "alice")
	assert.Error(t, err)
	_, err = m.Register(context.Background(), "alice@example.com", "", "alice")
	assert.Error(t, err)
	_, err = m.Register(context.Background(), "alice@example.com", "pw", "")
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	registered, err := m.Register(ctx, "alice@example.com", "s3cret", "alice")
	require.NoError(t, err)

	u, err := m.Authenticate(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, u.ID)

	_, err = m.Authenticate(ctx, "alice@example.com", "wrong")
	assert.EqualError(t, err, "invalid credentials")

	_, err = m.Authenticate(ctx, "nobody@example.com", "s3cret")
	assert.EqualError(t, err, "invalid credentials")
}

func TestPlayerExists(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	u, err := m.Register(ctx, "alice@example.com", "pw", "alice")
	require.NoError(t, err)

	exists, err := m.PlayerExists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.PlayerExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecordGameResultWinLoss(t *testing.T) {
	m, store := newTestManager()
	ctx := context.Background()

	winner, err := m.Register(ctx, "alice@example.com", "pw", "alice")
	require.NoError(t, err)
	loser, err := m.Register(ctx, "bob@example.com", "pw", "bob")
	require.NoError(t, err)

	require.NoError(t, m.RecordGameResult(ctx, winner.ID, loser.ID, winner.ID))

	w := store.users[winner.ID].Profile
	assert.Equal(t, 1, w.GamesPlayed)
	assert.Equal(t, 1, w.Wins)
	assert.Equal(t, 0, w.Losses)
	assert.Equal(t, 1, w.DailyGamesPlayed)
	require.NotNil(t, w.LastGameDate)

	l := store.users[loser.ID].Profile
	assert.Equal(t, 1, l.GamesPlayed)
	assert.Equal(t, 0, l.Wins)
	assert.Equal(t, 1, l.Losses)
}

func TestRecordGameResultDraw(t *testing.T) {
	m, store := newTestManager()
	ctx := context.Background()

	p1, err := m.Register(ctx, "alice@example.com", "pw", "alice")
	require.NoError(t, err)
	p2, err := m.Register(ctx, "bob@example.com", "pw", "bob")
	require.NoError(t, err)

	require.NoError(t, m.RecordGameResult(ctx, p1.ID, p2.ID, ""))

	for _, id := range []string{p1.ID, p2.ID} {
		profile := store.users[id].Profile
		assert.Equal(t, 1, profile.GamesPlayed)
		assert.Equal(t, 1, profile.Draws)
		assert.Equal(t, 0, profile.Wins)
		assert.Equal(t, 0, profile.Losses)
	}
}

func TestRecordGameResultDailyReset(t *testing.T) {
	m, store := newTestManager()
	ctx := context.Background()

	p1, err := m.Register(ctx, "alice@example.com", "pw", "alice")
	require.NoError(t, err)
	p2, err := m.Register(ctx, "bob@example.com", "pw", "bob")
	require.NoError(t, err)

	day1 := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	m.now = func() time.Time { return day1 }
	require.NoError(t, m.RecordGameResult(ctx, p1.ID, p2.ID, p1.ID))
	require.NoError(t, m.RecordGameResult(ctx, p1.ID, p2.ID, p2.ID))
	assert.Equal(t, 2, store.users[p1.ID].Profile.DailyGamesPlayed)

	// Just past midnight UTC the daily counter starts over.
	day2 := time.Date(2025, 3, 11, 0, 5, 0, 0, time.UTC)
	m.now = func() time.Time { return day2 }
	require.NoError(t, m.RecordGameResult(ctx, p1.ID, p2.ID, ""))

	profile := store.users[p1.ID].Profile
	assert.Equal(t, 3, profile.GamesPlayed)
	assert.Equal(t, 1, profile.DailyGamesPlayed)
	assert.Equal(t, day2, *profile.LastGameDate)
}
