package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Defaults applied when a Config field is zero.
const (
	DefaultMaxTurnsPerPhase   = 5
	DefaultMaxCharsPerMessage = 250
	DefaultTransitionWindow   = 5 * time.Second
)

// Config holds the fixed per-game configuration applied at creation.
type Config struct {
	MaxTurnsPerPhase   int
	MaxCharsPerMessage int
	TransitionWindow   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTurnsPerPhase <= 0 {
		c.MaxTurnsPerPhase = DefaultMaxTurnsPerPhase
	}
	if c.MaxCharsPerMessage <= 0 {
		c.MaxCharsPerMessage = DefaultMaxCharsPerMessage
	}
	if c.TransitionWindow <= 0 {
		c.TransitionWindow = DefaultTransitionWindow
	}
	return c
}

// Service drives the game-session state machine: creation from a match,
// turn submission, phase transition, and winner determination. All state
// changes for a given game are serialized through a per-game lock.
type Service struct {
	sessions  SessionStore
	turns     TurnStore
	templates TemplateStore
	players   PlayerDirectory
	judge     Judge
	stats     StatsRecorder

	cfg    Config
	locks  *sessionLocks
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a game service. stats may be nil if no profile
// bookkeeping is wanted.
func NewService(
	sessions SessionStore,
	turns TurnStore,
	templates TemplateStore,
	players PlayerDirectory,
	judge Judge,
	stats StatsRecorder,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		sessions:  sessions,
		turns:     turns,
		templates: templates,
		players:   players,
		judge:     judge,
		stats:     stats,
		cfg:       cfg.withDefaults(),
		locks:     newSessionLocks(),
		logger:    logger,
		now:       time.Now,
	}
}

// CreateGameFromMatch creates a new session for two matched players. The
// scenario character and secret are rendered once from a randomly selected
// active template.
func (s *Service) CreateGameFromMatch(ctx context.Context, playerOneID, playerTwoID string) (*GameSession, error) {
	for _, playerID := range []string{playerOneID, playerTwoID} {
		exists, err := s.players.PlayerExists(ctx, playerID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, &NotFoundError{Resource: "player", ID: playerID}
		}
	}

	template, err := s.templates.SelectRandomActive(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	session := &GameSession{
		ID:                 uuid.NewString(),
		PlayerOneID:        playerOneID,
		PlayerTwoID:        playerTwoID,
		TemplateID:         template.ID,
		GeneratedCharacter: template.RenderCharacter(),
		GeneratedSecret:    template.RenderSecret(),
		Phase:              PhaseDefense,
		Status:             StatusDefensePhase,
		MaxTurnsPerPhase:   s.cfg.MaxTurnsPerPhase,
		MaxCharsPerMessage: s.cfg.MaxCharsPerMessage,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("game created",
		zap.String("game_id", session.ID),
		zap.String("player_one", playerOneID),
		zap.String("player_two", playerTwoID),
		zap.String("template", template.Name),
	)

	return session, nil
}

// GetGame returns the session with the given ID.
func (s *Service) GetGame(ctx context.Context, gameID string) (*GameSession, error) {
	return s.sessions.FindByID(ctx, gameID)
}

// GetTurnCount returns the committed turn count for one player in one phase.
func (s *Service) GetTurnCount(ctx context.Context, gameID, playerID string, phase GamePhase) (int, error) {
	return s.turns.CountByGamePlayerPhase(ctx, gameID, playerID, phase)
}

// GetTurns returns one player's turns for a phase, ordered by turn number.
func (s *Service) GetTurns(ctx context.Context, gameID, playerID string, phase GamePhase) ([]*GameTurn, error) {
	return s.turns.FindOrderedByGamePlayerPhase(ctx, gameID, playerID, phase)
}

// SubmitTurn validates and records one turn: it obtains the in-character AI
// response and persists the turn, all under the per-game lock so that
// concurrent submissions cannot exceed the turn limit. Phase-transition and
// game-end evaluation run afterwards as a best-effort follow-up; their
// failure is logged and never undoes the recorded turn.
func (s *Service) SubmitTurn(ctx context.Context, gameID, playerID, message string) (*GameTurn, error) {
	turn, err := s.submitTurnLocked(ctx, gameID, playerID, message)
	if err != nil {
		return nil, err
	}

	if err := s.CheckPhaseTransition(ctx, gameID); err != nil {
		s.logger.Error("phase transition check failed",
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}
	if _, err := s.CheckGameEnd(ctx, gameID); err != nil {
		s.logger.Error("game end check failed",
			zap.String("game_id", gameID),
			zap.Error(err),
		)
	}

	return turn, nil
}

func (s *Service) submitTurnLocked(ctx context.Context, gameID, playerID, message string) (*GameTurn, error) {
	s.locks.Lock(gameID)
	defer s.locks.Unlock(gameID)

	session, err := s.sessions.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if err := ValidateTurn(session, playerID, message); err != nil {
		return nil, err
	}

	count, err := s.turns.CountByGamePlayerPhase(ctx, gameID, playerID, session.Phase)
	if err != nil {
		return nil, err
	}
	if count >= session.MaxTurnsPerPhase {
		return nil, &InvalidStateError{Message: "Turn limit reached"}
	}

	response, err := s.judge.GenerateResponse(ctx, session, playerID, message, session.Phase)
	if err != nil {
		return nil, err
	}

	turn := &GameTurn{
		ID:            uuid.NewString(),
		GameID:        gameID,
		PlayerID:      playerID,
		Phase:         session.Phase,
		TurnNumber:    count + 1,
		PlayerMessage: message,
		AIResponse:    response,
		CreatedAt:     s.now(),
	}

	if err := s.turns.Save(ctx, turn); err != nil {
		return nil, err
	}

	s.logger.Debug("turn submitted",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.String("phase", string(session.Phase)),
		zap.Int("turn_number", turn.TurnNumber),
	)

	return turn, nil
}

// CheckPhaseTransition advances a DEFENSE session to ATTACK once both
// players have used all their defense turns. The threshold read, summary
// generation, and session write all happen under the per-game lock, and the
// phase is re-checked after acquiring it, so the transition executes at most
// once per session.
func (s *Service) CheckPhaseTransition(ctx context.Context, gameID string) error {
	s.locks.Lock(gameID)
	defer s.locks.Unlock(gameID)

	session, err := s.sessions.FindByID(ctx, gameID)
	if err != nil {
		return err
	}

	if session.Phase != PhaseDefense {
		return nil
	}

	for _, playerID := range []string{session.PlayerOneID, session.PlayerTwoID} {
		count, err := s.turns.CountByGamePlayerPhase(ctx, gameID, playerID, PhaseDefense)
		if err != nil {
			return err
		}
		if count < session.MaxTurnsPerPhase {
			return nil
		}
	}

	playerOneSummary, err := s.summarizeDefense(ctx, session, session.PlayerOneID)
	if err != nil {
		return err
	}
	playerTwoSummary, err := s.summarizeDefense(ctx, session, session.PlayerTwoID)
	if err != nil {
		return err
	}

	endsAt := s.now().Add(s.cfg.TransitionWindow)
	session.IsTransitioning = true
	session.TransitionEndsAt = &endsAt
	session.Phase = PhaseAttack
	session.Status = StatusAttackPhase
	session.PlayerOneDefenseSummary = playerOneSummary
	session.PlayerTwoDefenseSummary = playerTwoSummary
	session.UpdatedAt = s.now()

	if err := s.sessions.Save(ctx, session); err != nil {
		return err
	}

	s.logger.Info("game transitioned to attack phase",
		zap.String("game_id", gameID),
		zap.Time("transition_ends_at", endsAt),
	)

	return nil
}

func (s *Service) summarizeDefense(ctx context.Context, session *GameSession, playerID string) (string, error) {
	turns, err := s.turns.FindOrderedByGamePlayerPhase(ctx, session.ID, playerID, PhaseDefense)
	if err != nil {
		return "", err
	}
	return s.judge.SummarizeDefense(ctx, turns)
}

// EndTransition clears the advisory transition window once it has elapsed.
// Calling it on a session that is not transitioning is a no-op.
func (s *Service) EndTransition(ctx context.Context, gameID string) error {
	s.locks.Lock(gameID)
	defer s.locks.Unlock(gameID)

	session, err := s.sessions.FindByID(ctx, gameID)
	if err != nil {
		return err
	}

	if !session.IsTransitioning {
		return nil
	}

	session.IsTransitioning = false
	session.TransitionEndsAt = nil
	session.UpdatedAt = s.now()

	return s.sessions.Save(ctx, session)
}

// CheckGameEnd evaluates whether an ATTACK session is finished and, if both
// players have used all their attack turns, determines the winner. It
// returns whether the game is complete after evaluation.
func (s *Service) CheckGameEnd(ctx context.Context, gameID string) (bool, error) {
	s.locks.Lock(gameID)
	defer s.locks.Unlock(gameID)

	session, err := s.sessions.FindByID(ctx, gameID)
	if err != nil {
		return false, err
	}

	if session.Status == StatusCompleted {
		return true, nil
	}
	if session.Phase != PhaseAttack {
		return false, nil
	}

	for _, playerID := range []string{session.PlayerOneID, session.PlayerTwoID} {
		count, err := s.turns.CountByGamePlayerPhase(ctx, gameID, playerID, PhaseAttack)
		if err != nil {
			return false, err
		}
		if count < session.MaxTurnsPerPhase {
			return false, nil
		}
	}

	if err := s.determineWinnerLocked(ctx, session); err != nil {
		return false, err
	}

	return true, nil
}

// DetermineWinner judges both players' attack transcripts and records the
// outcome. Completed sessions are left untouched, so concurrent
// re-evaluation writes the outcome at most once.
func (s *Service) DetermineWinner(ctx context.Context, gameID string) error {
	s.locks.Lock(gameID)
	defer s.locks.Unlock(gameID)

	session, err := s.sessions.FindByID(ctx, gameID)
	if err != nil {
		return err
	}
	if session.Status == StatusCompleted {
		return nil
	}

	return s.determineWinnerLocked(ctx, session)
}

// determineWinnerLocked applies the outcome table. Exactly one player
// extracting the secret is a full conviction; anything else is a draw.
// Callers must hold the per-game lock.
func (s *Service) determineWinnerLocked(ctx context.Context, session *GameSession) error {
	playerOneRevealed, err := s.checkSecretRevealed(ctx, session, session.PlayerOneID)
	if err != nil {
		return err
	}
	playerTwoRevealed, err := s.checkSecretRevealed(ctx, session, session.PlayerTwoID)
	if err != nil {
		return err
	}

	switch {
	case playerOneRevealed && !playerTwoRevealed:
		session.WinnerID = session.PlayerOneID
		session.EndReason = EndReasonFullConviction
	case playerTwoRevealed && !playerOneRevealed:
		session.WinnerID = session.PlayerTwoID
		session.EndReason = EndReasonFullConviction
	default:
		session.WinnerID = ""
		session.EndReason = EndReasonDraw
	}

	session.Status = StatusCompleted
	session.UpdatedAt = s.now()

	if err := s.sessions.Save(ctx, session); err != nil {
		return err
	}

	s.logger.Info("game completed",
		zap.String("game_id", session.ID),
		zap.String("winner", session.WinnerID),
		zap.String("end_reason", string(session.EndReason)),
	)

	if s.stats != nil {
		if err := s.stats.RecordGameResult(ctx, session.PlayerOneID, session.PlayerTwoID, session.WinnerID); err != nil {
			s.logger.Error("failed to record game result",
				zap.String("game_id", session.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *Service) checkSecretRevealed(ctx context.Context, session *GameSession, playerID string) (bool, error) {
	turns, err := s.turns.FindOrderedByGamePlayerPhase(ctx, session.ID, playerID, PhaseAttack)
	if err != nil {
		return false, err
	}
	return s.judge.CheckSecretRevealed(ctx, session, turns)
}
