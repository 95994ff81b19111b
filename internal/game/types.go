package game

import (
	"context"
	"strings"
	"time"
)

// GamePhase represents the content phase of a game session.
type GamePhase string

const (
	PhaseDefense GamePhase = "DEFENSE"
	PhaseAttack  GamePhase = "ATTACK"
)

// GameStatus represents the externally observable lifecycle of a session.
type GameStatus string

const (
	StatusWaitingForPlayer GameStatus = "WAITING_FOR_PLAYER"
	StatusDefensePhase     GameStatus = "DEFENSE_PHASE"
	StatusAttackPhase      GameStatus = "ATTACK_PHASE"
	StatusCompleted        GameStatus = "COMPLETED"
	StatusAbandoned        GameStatus = "ABANDONED"
)

// InProgress reports whether turns may still be submitted in this status.
func (s GameStatus) InProgress() bool {
	return s == StatusDefensePhase || s == StatusAttackPhase
}

// GameEndReason records why a completed game ended.
type GameEndReason string

const (
	EndReasonNone           GameEndReason = ""
	EndReasonFullConviction GameEndReason = "FULL_CONVICTION"
	EndReasonDraw           GameEndReason = "DRAW"
	EndReasonForfeit        GameEndReason = "FORFEIT"
)

// GameSession is the central aggregate: two players, a generated scenario,
// and the phase/status state machine driven by turn submissions.
type GameSession struct {
	ID          string
	PlayerOneID string
	PlayerTwoID string
	TemplateID  string

	// Scenario payload, derived once at creation. The secret is shown only
	// to the AI, never to the attacking player.
	GeneratedCharacter string
	GeneratedSecret    string

	Phase  GamePhase
	Status GameStatus

	MaxTurnsPerPhase   int
	MaxCharsPerMessage int

	IsTransitioning  bool
	TransitionEndsAt *time.Time

	PlayerOneDefenseSummary string
	PlayerTwoDefenseSummary string

	WinnerID  string
	EndReason GameEndReason

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPlayer reports whether the given player participates in this session.
func (g *GameSession) HasPlayer(playerID string) bool {
	return playerID == g.PlayerOneID || playerID == g.PlayerTwoID
}

// OpponentOf returns the other participant's ID, or "" for non-participants.
func (g *GameSession) OpponentOf(playerID string) string {
	switch playerID {
	case g.PlayerOneID:
		return g.PlayerTwoID
	case g.PlayerTwoID:
		return g.PlayerOneID
	default:
		return ""
	}
}

// TransitionCountdown returns the remaining whole seconds of the advisory
// transition window, or 0 if no transition is in progress at now.
func (g *GameSession) TransitionCountdown(now time.Time) int {
	if !g.IsTransitioning || g.TransitionEndsAt == nil {
		return 0
	}
	remaining := g.TransitionEndsAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}

// GameTurn is one message exchange within a phase, numbered per player per
// phase starting at 1. Turns are immutable once created.
type GameTurn struct {
	ID            string
	GameID        string
	PlayerID      string
	Phase         GamePhase
	TurnNumber    int
	PlayerMessage string
	AIResponse    string
	CreatedAt     time.Time
}

// ScenarioTemplate is the source a session's character and secret are
// rendered from. Placeholders of the form {{name}} are substituted from
// Variables.
type ScenarioTemplate struct {
	ID                string
	Name              string
	CharacterTemplate string
	SecretTemplate    string
	Variables         map[string]string
	IsActive          bool
	CreatedAt         time.Time
}

// RenderCharacter interpolates the character template.
func (t *ScenarioTemplate) RenderCharacter() string {
	return interpolate(t.CharacterTemplate, t.Variables)
}

// RenderSecret interpolates the secret template.
func (t *ScenarioTemplate) RenderSecret() string {
	return interpolate(t.SecretTemplate, t.Variables)
}

func interpolate(template string, variables map[string]string) string {
	out := template
	for key, value := range variables {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// SessionStore persists game sessions. Save is an atomic full-record write:
// a concurrent reader sees either the previous or the new session, never a
// mix of the two.
type SessionStore interface {
	Save(ctx context.Context, session *GameSession) error
	FindByID(ctx context.Context, gameID string) (*GameSession, error)
}

// TurnStore persists game turns. Counts and listings reflect committed
// turns only.
type TurnStore interface {
	Save(ctx context.Context, turn *GameTurn) error
	CountByGamePlayerPhase(ctx context.Context, gameID, playerID string, phase GamePhase) (int, error)
	FindOrderedByGamePlayerPhase(ctx context.Context, gameID, playerID string, phase GamePhase) ([]*GameTurn, error)
}

// TemplateStore resolves scenario templates.
type TemplateStore interface {
	SelectRandomActive(ctx context.Context) (*ScenarioTemplate, error)
}

// PlayerDirectory resolves player identities.
type PlayerDirectory interface {
	PlayerExists(ctx context.Context, playerID string) (bool, error)
}

// Judge is the AI adjudicator: in-character responses, defense summaries,
// and secret-reveal verdicts. Its reasoning is opaque; any method may fail
// transiently with a ServiceUnavailableError.
type Judge interface {
	GenerateResponse(ctx context.Context, session *GameSession, playerID, message string, phase GamePhase) (string, error)
	SummarizeDefense(ctx context.Context, turns []*GameTurn) (string, error)
	CheckSecretRevealed(ctx context.Context, session *GameSession, turns []*GameTurn) (bool, error)
}

// StatsRecorder receives final game results for profile bookkeeping.
// winnerID is empty for a draw.
type StatsRecorder interface {
	RecordGameResult(ctx context.Context, playerOneID, playerTwoID, winnerID string) error
}
