package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"omnihub/api/internal/assist"
	"omnihub/api/internal/store"
)

const assistHistoryLimit = 20

type AssistMessageView struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

func assistMessageView(m store.AssistMessage) AssistMessageView {
	return AssistMessageView{
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) requireAssist() error {
	if s.assist == nil || !s.assist.Configured() {
		return domainError(http.StatusServiceUnavailable, "ASSIST_UNAVAILABLE", "assistant is not configured", nil)
	}
	return nil
}

// AssistChat appends the user message, replays recent history to the model,
// and stores the reply. projectID may be blank for a general conversation;
// when set the conversation is scoped to that project.
func (s *Service) AssistChat(ctx context.Context, userID, projectID, message string) (AssistMessageView, error) {
	if err := s.requireAssist(); err != nil {
		return AssistMessageView{}, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return AssistMessageView{}, validationError("message is required", nil)
	}
	if projectID != "" {
		if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
			return AssistMessageView{}, err
		}
	}

	if err := s.store.AppendAssistMessage(ctx, store.AssistMessage{
		UserID:    userID,
		ProjectID: projectID,
		Role:      "user",
		Content:   message,
	}); err != nil {
		return AssistMessageView{}, err
	}

	history, err := s.store.ListAssistMessages(ctx, userID, projectID, assistHistoryLimit)
	if err != nil {
		return AssistMessageView{}, err
	}
	prompt := make([]assist.Message, 0, len(history))
	for _, m := range history {
		prompt = append(prompt, assist.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := s.assist.Complete(ctx, prompt)
	if err != nil {
		return AssistMessageView{}, domainError(http.StatusBadGateway, "ASSIST_ERROR", "assistant request failed", nil)
	}

	out := store.AssistMessage{
		UserID:    userID,
		ProjectID: projectID,
		Role:      "assistant",
		Content:   reply,
	}
	if err := s.store.AppendAssistMessage(ctx, out); err != nil {
		return AssistMessageView{}, err
	}
	out.CreatedAt = time.Now()
	return assistMessageView(out), nil
}

func (s *Service) AssistHistory(ctx context.Context, userID, projectID string, limit int) ([]AssistMessageView, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if projectID != "" {
		if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
			return nil, err
		}
	}
	messages, err := s.store.ListAssistMessages(ctx, userID, projectID, limit)
	if err != nil {
		return nil, err
	}
	views := make([]AssistMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, assistMessageView(m))
	}
	return views, nil
}

func (s *Service) ClearAssistHistory(ctx context.Context, userID, projectID string) error {
	return s.store.ClearAssistMessages(ctx, userID, projectID)
}
