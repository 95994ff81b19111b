package matchmaking

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// WaitingPlayer is one entry in the matchmaking queue.
type WaitingPlayer struct {
	PlayerID     string
	ConnectionID string
	JoinedAt     time.Time
}

// Match pairs the two earliest-joined waiting players. It is consumed
// immediately to create a game session and never persisted.
type Match struct {
	PlayerOne WaitingPlayer
	PlayerTwo WaitingPlayer
}

// Queue holds players waiting for an opponent and pairs them strictly in
// join order. All operations share one mutex so each waiting player is
// paired exactly once.
type Queue struct {
	mu      sync.Mutex
	waiting []WaitingPlayer
	logger  *zap.Logger
}

// NewQueue creates an empty matchmaking queue.
func NewQueue(logger *zap.Logger) *Queue {
	return &Queue{
		waiting: make([]WaitingPlayer, 0, 16),
		logger:  logger,
	}
}

// AddPlayer appends a waiting player and, if at least two players are now
// waiting, removes the two earliest-joined and returns them as a match.
// Returns nil while the player is still waiting. Duplicate joins are the
// caller's responsibility to prevent via connection identity.
func (q *Queue) AddPlayer(playerID, connectionID string) *Match {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiting = append(q.waiting, WaitingPlayer{
		PlayerID:     playerID,
		ConnectionID: connectionID,
		JoinedAt:     time.Now(),
	})

	if len(q.waiting) < 2 {
		q.logger.Debug("player queued",
			zap.String("player_id", playerID),
			zap.Int("queue_size", len(q.waiting)),
		)
		return nil
	}

	match := &Match{
		PlayerOne: q.waiting[0],
		PlayerTwo: q.waiting[1],
	}
	q.waiting = append(q.waiting[:0:0], q.waiting[2:]...)

	q.logger.Info("players matched",
		zap.String("player_one", match.PlayerOne.PlayerID),
		zap.String("player_two", match.PlayerTwo.PlayerID),
		zap.Int("queue_size", len(q.waiting)),
	)

	return match
}

// RemovePlayer drops a waiting player, typically on disconnect. Returns
// whether the player was found.
func (q *Queue) RemovePlayer(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, p := range q.waiting {
		if p.PlayerID == playerID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			q.logger.Debug("player left queue",
				zap.String("player_id", playerID),
				zap.Int("queue_size", len(q.waiting)),
			)
			return true
		}
	}
	return false
}

// Size returns the number of players currently waiting.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
