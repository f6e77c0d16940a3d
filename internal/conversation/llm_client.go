package conversation

import (
	"context"

	"github.com/imjd-ai/saba-backend/internal/session"
)

// LLMRequest is a completion request against the configured model.
type LLMRequest struct {
	// System is the assembled instruction context.
	System string
	// History is the bounded conversation history, last turn being the
	// message to answer.
	History []session.Turn
}

// LLMResponse carries the completion text and token accounting.
type LLMResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMClient is the completion backend boundary.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
