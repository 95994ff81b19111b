package ai

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/promptvprompt/server-go/internal/game"
)

// Config holds the OpenAI judge settings.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// OpenAIJudge adjudicates games through the OpenAI chat completions API:
// in-character responses during play, defense summaries at the phase
// boundary, and YES/NO secret-reveal verdicts at game end.
type OpenAIJudge struct {
	client    *openai.Client
	turns     game.TurnStore
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewOpenAIJudge creates a judge backed by the OpenAI API. The turn store is
// used to replay each player's conversation history into response prompts.
func NewOpenAIJudge(cfg Config, turns game.TurnStore, logger *zap.Logger) *OpenAIJudge {
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 150
	}

	return &OpenAIJudge{
		client:    openai.NewClient(cfg.APIKey),
		turns:     turns,
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// GenerateResponse produces the AI's in-character reply to one player
// message. During ATTACK the prompt carries the opponent's defense summary
// and the player's own attack history; during DEFENSE it carries the
// player's defense history.
func (j *OpenAIJudge) GenerateResponse(ctx context.Context, session *game.GameSession, playerID, message string, phase game.GamePhase) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(session)},
	}

	if phase == game.PhaseAttack {
		// The attacker faces the AI as trained by the opponent's defense.
		summary := session.PlayerOneDefenseSummary
		if playerID == session.PlayerOneID {
			summary = session.PlayerTwoDefenseSummary
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Defense training: " + summary,
		})
	}

	history, err := j.turns.FindOrderedByGamePlayerPhase(ctx, session.ID, playerID, phase)
	if err != nil {
		return "", err
	}
	for _, turn := range history {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.PlayerMessage},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.AIResponse},
		)
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	return j.complete(ctx, messages, j.maxTokens)
}

// SummarizeDefense condenses one player's defense transcript into the
// training summary carried into the attack phase.
func (j *OpenAIJudge) SummarizeDefense(ctx context.Context, turns []*game.GameTurn) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: summarizeSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: formatTranscript(turns, "Player")},
	}
	return j.complete(ctx, messages, j.maxTokens)
}

// CheckSecretRevealed asks the judge whether an attack transcript extracted
// the session's secret.
func (j *OpenAIJudge) CheckSecretRevealed(ctx context.Context, session *game.GameSession, turns []*game.GameTurn) (bool, error) {
	conversation := formatTranscript(turns, "Attacker")
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: verdictPrompt(session.GeneratedSecret, conversation)},
	}

	reply, err := j.complete(ctx, messages, 5)
	if err != nil {
		return false, err
	}

	verdict := parseVerdict(reply)
	j.logger.Debug("secret reveal verdict",
		zap.String("game_id", session.ID),
		zap.Bool("revealed", verdict),
	)
	return verdict, nil
}

func (j *OpenAIJudge) complete(ctx context.Context, messages []openai.ChatCompletionMessage, maxTokens int) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Messages:    messages,
		Temperature: 1,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		j.logger.Warn("openai request failed", zap.Error(err))
		return "", &game.ServiceUnavailableError{Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &game.ServiceUnavailableError{Err: errNoChoices}
	}
	return resp.Choices[0].Message.Content, nil
}

var errNoChoices = errors.New("completion returned no choices")
