package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promptvprompt/server-go/internal/config"
	"github.com/promptvprompt/server-go/internal/game"
	"github.com/promptvprompt/server-go/internal/matchmaking"
	"github.com/promptvprompt/server-go/internal/user"
)

// Server exposes the game core over HTTP and websocket. It is a thin I/O
// layer: all game rules live in the game service.
type Server struct {
	cfg    config.ServerConfig
	logger *zap.Logger

	hub   *Hub
	games *game.Service
	queue *matchmaking.Queue
	users *user.Manager

	httpServer *http.Server
}

// New creates a server wired to the given core components.
func New(cfg config.ServerConfig, games *game.Service, queue *matchmaking.Queue, users *user.Manager, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		hub:    NewHub(logger),
		games:  games,
		queue:  queue,
		users:  users,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/game/{id}", s.handleGetGame)
	mux.HandleFunc("POST /api/game/{id}/submit-turn", s.handleSubmitTurn)

	s.httpServer = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}

	return s
}

// Start runs the hub and the HTTP listener until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("address", s.cfg.Address))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// ==================== Matchmaking ====================

type gameFoundPayload struct {
	Game gameView `json:"game"`
}

type queueJoinedPayload struct {
	Position int `json:"position"`
}

func (s *Server) handleJoinQueue(client *Client, userID string) {
	client.UserID = userID

	match := s.queue.AddPlayer(userID, client.ID)
	if match == nil {
		s.hub.SendTo(client.ID, "queueJoined", queueJoinedPayload{Position: s.queue.Size()})
		return
	}

	session, err := s.games.CreateGameFromMatch(
		context.Background(),
		match.PlayerOne.PlayerID,
		match.PlayerTwo.PlayerID,
	)
	if err != nil {
		s.logger.Error("failed to create game from match",
			zap.String("player_one", match.PlayerOne.PlayerID),
			zap.String("player_two", match.PlayerTwo.PlayerID),
			zap.Error(err),
		)
		s.hub.SendTo(match.PlayerOne.ConnectionID, "matchFailed", nil)
		s.hub.SendTo(match.PlayerTwo.ConnectionID, "matchFailed", nil)
		return
	}

	payload := gameFoundPayload{Game: newGameView(session)}
	s.hub.SendTo(match.PlayerOne.ConnectionID, "gameFound", payload)
	s.hub.SendTo(match.PlayerTwo.ConnectionID, "gameFound", payload)
}

func (s *Server) handleJoinGameRoom(client *Client, gameID, userID string) {
	session, err := s.games.GetGame(context.Background(), gameID)
	if err != nil {
		return
	}
	if !session.HasPlayer(userID) {
		return
	}

	client.UserID = userID
	client.JoinGame(gameID)
	s.logger.Debug("client joined game room",
		zap.String("connection_id", client.ID),
		zap.String("game_id", gameID),
	)
}

// ==================== Game HTTP routes ====================

type submitTurnRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type turnView struct {
	TurnNumber    int    `json:"turnNumber"`
	PlayerMessage string `json:"playerMessage"`
	AIResponse    string `json:"aiResponse"`
}

type turnSubmittedPayload struct {
	UserID        string `json:"userId"`
	MessageCount  int    `json:"messageCount"`
	PlayerMessage string `json:"playerMessage"`
	AIResponse    string `json:"aiResponse"`
	IsTransition  bool   `json:"isTransition"`
}

type gameCompletePayload struct {
	WinnerID  string `json:"winnerId"`
	EndReason string `json:"endReason"`
}

func (s *Server) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	var req submitTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()

	session, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	if !session.HasPlayer(req.UserID) {
		writeError(w, http.StatusForbidden, "You are spectating")
		return
	}

	phaseBefore := session.Phase
	turn, err := s.games.SubmitTurn(ctx, gameID, req.UserID, req.Message)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	updated, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	isTransition := phaseBefore != updated.Phase
	isComplete := updated.Status == game.StatusCompleted

	s.hub.ToGame(gameID, "turnSubmitted", turnSubmittedPayload{
		UserID:        req.UserID,
		MessageCount:  turn.TurnNumber,
		PlayerMessage: turn.PlayerMessage,
		AIResponse:    turn.AIResponse,
		IsTransition:  isTransition,
	})

	if isTransition {
		go s.runTransitionCountdown(updated)
	}

	if isComplete {
		s.hub.ToGame(gameID, "gameComplete", gameCompletePayload{
			WinnerID:  updated.WinnerID,
			EndReason: string(updated.EndReason),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": turnView{
			TurnNumber:    turn.TurnNumber,
			PlayerMessage: turn.PlayerMessage,
			AIResponse:    turn.AIResponse,
		},
		"isGameComplete": isComplete,
		"isTransition":   isTransition,
	})
}

type transitionPhasePayload struct {
	IsTransitioning         bool   `json:"isTransitioning"`
	Countdown               int    `json:"countdown,omitempty"`
	PlayerOneDefenseSummary string `json:"playerOneDefenseSummary,omitempty"`
	PlayerTwoDefenseSummary string `json:"playerTwoDefenseSummary,omitempty"`
}

// runTransitionCountdown ticks the advisory transition window down once per
// second, then clears the transition flag. Each player's client picks the
// opposing summary out of the payload.
func (s *Server) runTransitionCountdown(session *game.GameSession) {
	countdown := session.TransitionCountdown(time.Now())

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for ; countdown > 0; countdown-- {
		s.hub.ToGame(session.ID, "transitionPhase", transitionPhasePayload{
			IsTransitioning:         true,
			Countdown:               countdown,
			PlayerOneDefenseSummary: session.PlayerOneDefenseSummary,
			PlayerTwoDefenseSummary: session.PlayerTwoDefenseSummary,
		})
		<-ticker.C
	}

	if err := s.games.EndTransition(context.Background(), session.ID); err != nil {
		s.logger.Error("failed to end transition",
			zap.String("game_id", session.ID),
			zap.Error(err),
		)
	}

	s.hub.ToGame(session.ID, "transitionPhase", transitionPhasePayload{
		IsTransitioning: false,
	})
}

// gameView is the client-facing session representation. The generated
// secret never leaves the server.
type gameView struct {
	ID                      string     `json:"id"`
	PlayerOneID             string     `json:"playerOneId"`
	PlayerTwoID             string     `json:"playerTwoId"`
	GeneratedCharacter      string     `json:"generatedCharacter"`
	Phase                   string     `json:"phase"`
	Status                  string     `json:"status"`
	MaxTurnsPerPhase        int        `json:"maxTurnsPerPhase"`
	MaxCharsPerMessage      int        `json:"maxCharsPerMessage"`
	IsTransitioning         bool       `json:"isTransitioning"`
	TransitionEndsAt        *time.Time `json:"transitionEndsAt,omitempty"`
	PlayerOneDefenseSummary string     `json:"playerOneDefenseSummary,omitempty"`
	PlayerTwoDefenseSummary string     `json:"playerTwoDefenseSummary,omitempty"`
	WinnerID                string     `json:"winnerId,omitempty"`
	EndReason               string     `json:"endReason,omitempty"`
}

func newGameView(session *game.GameSession) gameView {
	return gameView{
		ID:                      session.ID,
		PlayerOneID:             session.PlayerOneID,
		PlayerTwoID:             session.PlayerTwoID,
		GeneratedCharacter:      session.GeneratedCharacter,
		Phase:                   string(session.Phase),
		Status:                  string(session.Status),
		MaxTurnsPerPhase:        session.MaxTurnsPerPhase,
		MaxCharsPerMessage:      session.MaxCharsPerMessage,
		IsTransitioning:         session.IsTransitioning,
		TransitionEndsAt:        session.TransitionEndsAt,
		PlayerOneDefenseSummary: session.PlayerOneDefenseSummary,
		PlayerTwoDefenseSummary: session.PlayerTwoDefenseSummary,
		WinnerID:                session.WinnerID,
		EndReason:               string(session.EndReason),
	}
}

type transitionView struct {
	IsTransitioning bool   `json:"isTransitioning"`
	Countdown       int    `json:"countdown,omitempty"`
	NewPhase        string `json:"newPhase,omitempty"`
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := r.URL.Query().Get("userId")

	ctx := r.Context()

	session, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	if !session.HasPlayer(userID) {
		writeError(w, http.StatusForbidden, "You are spectating")
		return
	}

	transition := transitionView{IsTransitioning: false}
	if countdown := session.TransitionCountdown(time.Now()); countdown > 0 {
		transition = transitionView{
			IsTransitioning: true,
			Countdown:       countdown,
			NewPhase:        string(session.Phase),
		}
	}

	myCount, err := s.games.GetTurnCount(ctx, gameID, userID, session.Phase)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	opponentCount, err := s.games.GetTurnCount(ctx, gameID, session.OpponentOf(userID), session.Phase)
	if err != nil {
		s.writeGameError(w, err)
		return
	}

	turns, err := s.games.GetTurns(ctx, gameID, userID, session.Phase)
	if err != nil {
		s.writeGameError(w, err)
		return
	}
	turnViews := make([]turnView, 0, len(turns))
	for _, t := range turns {
		turnViews = append(turnViews, turnView{
			TurnNumber:    t.TurnNumber,
			PlayerMessage: t.PlayerMessage,
			AIResponse:    t.AIResponse,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"game":                 newGameView(session),
		"myMessageCount":       myCount,
		"opponentMessageCount": opponentCount,
		"gameTurns":            turnViews,
		"isGameComplete":       session.Status == game.StatusCompleted,
		"transition":           transition,
	})
}

// ==================== Auth routes ====================

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
}

func newUserView(u *user.User) userView {
	return userView{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		GamesPlayed: u.Profile.GamesPlayed,
		Wins:        u.Profile.Wins,
		Losses:      u.Profile.Losses,
		Draws:       u.Profile.Draws,
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.users.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, newUserView(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, newUserView(u))
}

// ==================== Helpers ====================

func (s *Server) writeGameError(w http.ResponseWriter, err error) {
	switch {
	case game.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case game.IsInvalidState(err), game.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case game.IsServiceUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
