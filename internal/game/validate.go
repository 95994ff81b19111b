package game

import (
	"fmt"
	"unicode/utf8"
)

// ValidateTurn checks an incoming turn against session state. The checks are
// pure and run in a fixed order so error reporting is deterministic: state
// first, then content, then membership.
func ValidateTurn(session *GameSession, playerID, message string) error {
	if !session.Status.InProgress() {
		return &InvalidStateError{Message: "Game not in progress"}
	}

	if utf8.RuneCountInString(message) > session.MaxCharsPerMessage {
		return &InvalidInputError{
			Message: fmt.Sprintf("Message exceeds %d characters", session.MaxCharsPerMessage),
		}
	}

	if !session.HasPlayer(playerID) {
		return &InvalidInputError{Message: "Player not in this game"}
	}

	return nil
}
