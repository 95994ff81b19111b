package game_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptvprompt/server-go/internal/game"
	"github.com/promptvprompt/server-go/internal/repository"
)

const (
	playerOne = "player-1"
	playerTwo = "player-2"
)

// stubJudge is a deterministic AI judge for tests.
type stubJudge struct {
	mu             sync.Mutex
	response       string
	summary        string
	revealedBy     map[string]bool
	generateErr    error
	summarizeCalls int
	verdictCalls   int
}

func newStubJudge() *stubJudge {
	return &stubJudge{
		response:   "AI says no!",
		summary:    "Summary",
		revealedBy: make(map[string]bool),
	}
}

func (j *stubJudge) GenerateResponse(ctx context.Context, session *game.GameSession, playerID, message string, phase game.GamePhase) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.generateErr != nil {
		return "", &game.ServiceUnavailableError{Err: j.generateErr}
	}
	return j.response, nil
}

func (j *stubJudge) SummarizeDefense(ctx context.Context, turns []*game.GameTurn) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summarizeCalls++
	return j.summary, nil
}

func (j *stubJudge) CheckSecretRevealed(ctx context.Context, session *game.GameSession, turns []*game.GameTurn) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.verdictCalls++
	if len(turns) == 0 {
		return false, nil
	}
	return j.revealedBy[turns[0].PlayerID], nil
}

// stubDirectory resolves a fixed set of player IDs.
type stubDirectory struct {
	known map[string]bool
}

func (d *stubDirectory) PlayerExists(ctx context.Context, playerID string) (bool, error) {
	return d.known[playerID], nil
}

// stubStats records result calls.
type stubStats struct {
	mu      sync.Mutex
	results []string
}

func (s *stubStats) RecordGameResult(ctx context.Context, playerOneID, playerTwoID, winnerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, winnerID)
	return nil
}

type fixture struct {
	svc      *game.Service
	sessions *repository.MemoryGameStore
	turns    *repository.MemoryTurnStore
	judge    *stubJudge
	stats    *stubStats
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	judge := newStubJudge()
	sessions := repository.NewMemoryGameStore()
	turns := repository.NewMemoryTurnStore()
	templates := repository.NewMemoryTemplateStore(game.ScenarioTemplate{
		ID:                "template-1",
		Name:              "Teenager Gossip",
		CharacterTemplate: "A teenager guarding the {{thing}}",
		SecretTemplate:    "The password is {{password}}",
		Variables:         map[string]string{"thing": "group chat", "password": "blue42"},
		IsActive:          true,
	})
	stats := &stubStats{}

	svc := game.NewService(
		sessions, turns, templates,
		&stubDirectory{known: map[string]bool{playerOne: true, playerTwo: true}},
		judge, stats,
		game.Config{}, zap.NewNop(),
	)

	return &fixture{svc: svc, sessions: sessions, turns: turns, judge: judge, stats: stats}
}

func (f *fixture) createGame(t *testing.T) *game.GameSession {
	t.Helper()
	session, err := f.svc.CreateGameFromMatch(context.Background(), playerOne, playerTwo)
	require.NoError(t, err)
	return session
}

// seedTurns inserts n committed turns for one player in one phase.
func (f *fixture) seedTurns(t *testing.T, gameID, playerID string, phase game.GamePhase, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := f.turns.Save(context.Background(), &game.GameTurn{
			ID:            fmt.Sprintf("%s-%s-%s-%d", gameID, playerID, phase, i),
			GameID:        gameID,
			PlayerID:      playerID,
			Phase:         phase,
			TurnNumber:    i,
			PlayerMessage: fmt.Sprintf("message %d", i),
			AIResponse:    "AI says no!",
			CreatedAt:     time.Now(),
		})
		require.NoError(t, err)
	}
}

func TestCreateGameFromMatch(t *testing.T) {
	f := newFixture(t)

	session := f.createGame(t)

	assert.Equal(t, game.PhaseDefense, session.Phase)
	assert.Equal(t, game.StatusDefensePhase, session.Status)
	assert.Equal(t, playerOne, session.PlayerOneID)
	assert.Equal(t, playerTwo, session.PlayerTwoID)
	assert.Equal(t, "A teenager guarding the group chat", session.GeneratedCharacter)
	assert.Equal(t, "The password is blue42", session.GeneratedSecret)
	assert.Equal(t, game.DefaultMaxTurnsPerPhase, session.MaxTurnsPerPhase)
	assert.Equal(t, game.DefaultMaxCharsPerMessage, session.MaxCharsPerMessage)
	assert.False(t, session.IsTransitioning)
	assert.Empty(t, session.WinnerID)
}

func TestCreateGameFromMatchUnknownPlayer(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateGameFromMatch(context.Background(), playerOne, "player-3")
	require.Error(t, err)
	assert.True(t, game.IsNotFound(err))
}

func TestSubmitTurnUnknownGame(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitTurn(context.Background(), "no-such-game", playerOne, "Hello")
	require.Error(t, err)
	assert.True(t, game.IsNotFound(err))
}

func TestSubmitTurnLimitReached(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 5)

	_, err := f.svc.SubmitTurn(context.Background(), session.ID, playerOne, "Test message")
	require.Error(t, err)
	assert.True(t, game.IsInvalidState(err))
	assert.EqualError(t, err, "Turn limit reached")
}

func TestSubmitTurnCreatesTurnWithAIResponse(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 2)

	turn, err := f.svc.SubmitTurn(context.Background(), session.ID, playerOne, "Test message")
	require.NoError(t, err)

	assert.Equal(t, session.ID, turn.GameID)
	assert.Equal(t, playerOne, turn.PlayerID)
	assert.Equal(t, game.PhaseDefense, turn.Phase)
	assert.Equal(t, 3, turn.TurnNumber)
	assert.Equal(t, "Test message", turn.PlayerMessage)
	assert.Equal(t, "AI says no!", turn.AIResponse)

	count, err := f.svc.GetTurnCount(context.Background(), session.ID, playerOne, game.PhaseDefense)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSubmitTurnJudgeFailureLeavesNoTurn(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.judge.generateErr = fmt.Errorf("upstream timeout")

	_, err := f.svc.SubmitTurn(context.Background(), session.ID, playerOne, "Hello")
	require.Error(t, err)
	assert.True(t, game.IsServiceUnavailable(err))

	count, err := f.svc.GetTurnCount(context.Background(), session.ID, playerOne, game.PhaseDefense)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestGetTurnCount(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 3)

	count, err := f.svc.GetTurnCount(context.Background(), session.ID, playerOne, game.PhaseDefense)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = f.svc.GetTurnCount(context.Background(), session.ID, playerTwo, game.PhaseDefense)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestCheckPhaseTransitionIncompleteTurns(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 4)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseDefense, 3)

	require.NoError(t, f.svc.CheckPhaseTransition(context.Background(), session.ID))

	reloaded, err := f.svc.GetGame(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseDefense, reloaded.Phase)
	assert.Equal(t, 0, f.judge.summarizeCalls)
}

func TestCheckPhaseTransitionBothComplete(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 5)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseDefense, 5)

	before := time.Now()
	require.NoError(t, f.svc.CheckPhaseTransition(context.Background(), session.ID))

	reloaded, err := f.svc.GetGame(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseAttack, reloaded.Phase)
	assert.Equal(t, game.StatusAttackPhase, reloaded.Status)
	assert.True(t, reloaded.IsTransitioning)
	assert.Equal(t, "Summary", reloaded.PlayerOneDefenseSummary)
	assert.Equal(t, "Summary", reloaded.PlayerTwoDefenseSummary)
	require.NotNil(t, reloaded.TransitionEndsAt)
	assert.True(t, reloaded.TransitionEndsAt.After(before))
	assert.Equal(t, 2, f.judge.summarizeCalls)
}

func TestCheckPhaseTransitionIdempotent(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 5)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseDefense, 5)

	require.NoError(t, f.svc.CheckPhaseTransition(context.Background(), session.ID))
	require.NoError(t, f.svc.CheckPhaseTransition(context.Background(), session.ID))

	// The second call is a no-op: no further summarization, no re-write.
	assert.Equal(t, 2, f.judge.summarizeCalls)
}

func TestCheckPhaseTransitionConcurrentFiresOnce(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 5)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseDefense, 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.CheckPhaseTransition(context.Background(), session.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, f.judge.summarizeCalls)
}

func TestEndTransition(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 5)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseDefense, 5)
	require.NoError(t, f.svc.CheckPhaseTransition(context.Background(), session.ID))

	require.NoError(t, f.svc.EndTransition(context.Background(), session.ID))

	reloaded, err := f.svc.GetGame(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsTransitioning)
	assert.Nil(t, reloaded.TransitionEndsAt)

	// Calling again on a settled session changes nothing.
	require.NoError(t, f.svc.EndTransition(context.Background(), session.ID))
}

func TestCheckGameEndNotInAttackPhase(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)

	complete, err := f.svc.CheckGameEnd(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 0, f.judge.verdictCalls)
}

func TestCheckGameEndIncompleteTurns(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	forceAttackPhase(t, f, session)
	f.seedTurns(t, session.ID, playerOne, game.PhaseAttack, 5)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseAttack, 3)

	complete, err := f.svc.CheckGameEnd(context.Background(), session.ID)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 0, f.judge.verdictCalls)
}

func TestDetermineWinnerOutcomes(t *testing.T) {
	tests := []struct {
		name          string
		p1Revealed    bool
		p2Revealed    bool
		wantWinner    string
		wantEndReason game.GameEndReason
	}{
		{"only player one reveals", true, false, playerOne, game.EndReasonFullConviction},
		{"only player two reveals", false, true, playerTwo, game.EndReasonFullConviction},
		{"both reveal", true, true, "", game.EndReasonDraw},
		{"neither reveals", false, false, "", game.EndReasonDraw},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			session := f.createGame(t)
			forceAttackPhase(t, f, session)
			f.seedTurns(t, session.ID, playerOne, game.PhaseAttack, 5)
			f.seedTurns(t, session.ID, playerTwo, game.PhaseAttack, 5)
			f.judge.revealedBy[playerOne] = tt.p1Revealed
			f.judge.revealedBy[playerTwo] = tt.p2Revealed

			complete, err := f.svc.CheckGameEnd(context.Background(), session.ID)
			require.NoError(t, err)
			assert.True(t, complete)

			reloaded, err := f.svc.GetGame(context.Background(), session.ID)
			require.NoError(t, err)
			assert.Equal(t, game.StatusCompleted, reloaded.Status)
			assert.Equal(t, tt.wantWinner, reloaded.WinnerID)
			assert.Equal(t, tt.wantEndReason, reloaded.EndReason)
		})
	}
}

func TestDetermineWinnerIdempotent(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	forceAttackPhase(t, f, session)
	f.seedTurns(t, session.ID, playerOne, game.PhaseAttack, 5)
	f.seedTurns(t, session.ID, playerTwo, game.PhaseAttack, 5)
	f.judge.revealedBy[playerOne] = true

	require.NoError(t, f.svc.DetermineWinner(context.Background(), session.ID))
	require.NoError(t, f.svc.DetermineWinner(context.Background(), session.ID))

	assert.Equal(t, 2, f.judge.verdictCalls)

	f.stats.mu.Lock()
	defer f.stats.mu.Unlock()
	assert.Len(t, f.stats.results, 1)
	assert.Equal(t, playerOne, f.stats.results[0])
}

func TestSubmitTurnConcurrentNearLimit(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	f.seedTurns(t, session.ID, playerOne, game.PhaseDefense, 4)

	const submitters = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.svc.SubmitTurn(context.Background(), session.ID, playerOne, fmt.Sprintf("race %d", n))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	count, err := f.svc.GetTurnCount(context.Background(), session.ID, playerOne, game.PhaseDefense)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

// TestFullGameFlow drives a complete game: interleaved defense turns trigger
// the automatic transition, interleaved attack turns trigger winner
// determination.
func TestFullGameFlow(t *testing.T) {
	f := newFixture(t)
	session := f.createGame(t)
	ctx := context.Background()

	f.judge.revealedBy[playerOne] = true

	for i := 0; i < 5; i++ {
		_, err := f.svc.SubmitTurn(ctx, session.ID, playerOne, fmt.Sprintf("defend %d", i+1))
		require.NoError(t, err)
		_, err = f.svc.SubmitTurn(ctx, session.ID, playerTwo, fmt.Sprintf("defend %d", i+1))
		require.NoError(t, err)
	}

	mid, err := f.svc.GetGame(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, game.PhaseAttack, mid.Phase)
	assert.Equal(t, game.StatusAttackPhase, mid.Status)
	assert.NotEmpty(t, mid.PlayerOneDefenseSummary)
	assert.NotEmpty(t, mid.PlayerTwoDefenseSummary)
	require.NotNil(t, mid.TransitionEndsAt)
	assert.True(t, mid.TransitionEndsAt.After(time.Now().Add(-time.Second)))

	for i := 0; i < 5; i++ {
		_, err := f.svc.SubmitTurn(ctx, session.ID, playerTwo, fmt.Sprintf("attack %d", i+1))
		require.NoError(t, err)
		_, err = f.svc.SubmitTurn(ctx, session.ID, playerOne, fmt.Sprintf("attack %d", i+1))
		require.NoError(t, err)
	}

	final, err := f.svc.GetGame(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, game.StatusCompleted, final.Status)
	assert.Equal(t, playerOne, final.WinnerID)
	assert.Equal(t, game.EndReasonFullConviction, final.EndReason)

	// No further turns are accepted once the game is complete.
	_, err = f.svc.SubmitTurn(ctx, session.ID, playerOne, "one more")
	require.Error(t, err)
	assert.EqualError(t, err, "Game not in progress")
}

// forceAttackPhase moves a session directly to the attack phase, bypassing
// the defense turns.
func forceAttackPhase(t *testing.T, f *fixture, session *game.GameSession) {
	t.Helper()
	session.Phase = game.PhaseAttack
	session.Status = game.StatusAttackPhase
	session.PlayerOneDefenseSummary = "Summary"
	session.PlayerTwoDefenseSummary = "Summary"
	require.NoError(t, f.sessions.Save(context.Background(), session))
}
