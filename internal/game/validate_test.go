package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSession() *GameSession {
	return &GameSession{
		ID:                 "game-1",
		PlayerOneID:        "player-1",
		PlayerTwoID:        "player-2",
		Phase:              PhaseDefense,
		Status:             StatusDefensePhase,
		MaxTurnsPerPhase:   5,
		MaxCharsPerMessage: 250,
	}
}

func TestValidateTurnAccepts(t *testing.T) {
	session := validSession()
	require.NoError(t, ValidateTurn(session, "player-1", "Hello there"))
	require.NoError(t, ValidateTurn(session, "player-2", strings.Repeat("a", 250)))
}

func TestValidateTurnGameNotInProgress(t *testing.T) {
	for _, status := range []GameStatus{StatusWaitingForPlayer, StatusCompleted, StatusAbandoned} {
		session := validSession()
		session.Status = status

		err := ValidateTurn(session, "player-1", "Hello")
		require.Error(t, err)
		assert.True(t, IsInvalidState(err))
		assert.EqualError(t, err, "Game not in progress")
	}
}

func TestValidateTurnMessageTooLong(t *testing.T) {
	session := validSession()

	err := ValidateTurn(session, "player-1", strings.Repeat("a", 251))
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.EqualError(t, err, "Message exceeds 250 characters")
}

func TestValidateTurnLengthCountsRunes(t *testing.T) {
	session := validSession()
	// 250 multi-byte runes are within the limit even though the byte length
	// is far larger.
	require.NoError(t, ValidateTurn(session, "player-1", strings.Repeat("é", 250)))

	err := ValidateTurn(session, "player-1", strings.Repeat("é", 251))
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
}

func TestValidateTurnPlayerNotInGame(t *testing.T) {
	session := validSession()

	err := ValidateTurn(session, "player-3", "Hello")
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.EqualError(t, err, "Player not in this game")
}

// The state check outranks the length check, and the length check outranks
// the membership check.
func TestValidateTurnCheckOrder(t *testing.T) {
	session := validSession()
	session.Status = StatusCompleted
	err := ValidateTurn(session, "player-3", strings.Repeat("a", 300))
	assert.EqualError(t, err, "Game not in progress")

	session = validSession()
	err = ValidateTurn(session, "player-3", strings.Repeat("a", 300))
	assert.EqualError(t, err, "Message exceeds 250 characters")
}
