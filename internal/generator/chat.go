package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/util"
	"github.com/lamim/uxie/pkg/models"
)

// ErrChatUnavailable is returned when no chat model is configured
var ErrChatUnavailable = errors.New("chat model not configured")

// ChatRequest is one turn of the course tutor conversation
type ChatRequest struct {
	CourseTitle       string
	CourseDescription string
	Language          models.Language
	History           []api.Message // alternating user/assistant turns, newest last
}

// Chat answers the latest user message in the context of a course
func (g *Generator) Chat(ctx context.Context, req ChatRequest) (string, error) {
	return g.ChatStream(ctx, req, nil)
}

// ChatStream is Chat with incremental delivery; onDelta receives each
// fragment as it arrives. A nil onDelta disables streaming.
func (g *Generator) ChatStream(ctx context.Context, req ChatRequest, onDelta func(string)) (string, error) {
	if g.chat == nil {
		return "", ErrChatUnavailable
	}
	if len(req.History) == 0 {
		return "", fmt.Errorf("chat history is empty")
	}

	system, err := util.RenderTemplate(g.templates.ChatSystem, map[string]interface{}{
		"CourseTitle":       req.CourseTitle,
		"CourseDescription": req.CourseDescription,
		"Language":          req.Language.DisplayName(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render chat system prompt: %w", err)
	}

	messages := make([]api.Message, 0, len(req.History)+1)
	messages = append(messages, api.Message{Role: "system", Content: system})
	for _, m := range req.History {
		if m.Role == "system" {
			continue
		}
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	reply, err := g.chat.Chat(ctx, messages, onDelta)
	g.metrics.IncrementGeneration("chat", err == nil)
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}
	return util.StripThinkTags(reply), nil
}
