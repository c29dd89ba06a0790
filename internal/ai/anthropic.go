// Package ai suggests subtasks for Door tasks using the Anthropic API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"mission-board/internal/service"
)

const (
	suggestionCount = 4
	maxTokens       = 1024
)

// messageCreator is the slice of the SDK the client uses.
type messageCreator interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Client wraps the Anthropic API for subtask suggestions.
type Client struct {
	messages messageCreator
	model    anthropic.Model
	prompt   *template.Template
}

// NewClient creates a suggester. An empty apiKey is reported as missing credentials.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("anthropic client: %w", service.ErrMissingCredentials)
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newClient(&client.Messages, model)
}

func newClient(messages messageCreator, model string) (*Client, error) {
	tmpl, err := template.New("subtasks").Parse(subtaskPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse subtask template: %w", err)
	}
	return &Client{
		messages: messages,
		model:    anthropic.Model(model),
		prompt:   tmpl,
	}, nil
}

// SuggestSubtasks asks the model for four subtasks of the given task.
func (c *Client) SuggestSubtasks(ctx context.Context, req service.SuggestRequest) ([]service.Suggestion, error) {
	prompt, err := c.renderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	message, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
			return nil, fmt.Errorf("anthropic rejected the API key: %w", service.ErrMissingCredentials)
		}
		return nil, fmt.Errorf("anthropic request: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return parseSuggestions(block.Text)
		}
	}
	return nil, errors.New("unexpected response format: no text block")
}

type promptData struct {
	Title       string
	Description string
	Previous    []service.Suggestion
	Feedback    string
	Count       int
}

func (c *Client) renderPrompt(req service.SuggestRequest) (string, error) {
	var buf bytes.Buffer
	err := c.prompt.Execute(&buf, promptData{
		Title:       req.Title,
		Description: req.Description,
		Previous:    req.PreviousAttempt,
		Feedback:    req.Feedback,
		Count:       suggestionCount,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// parseSuggestions pulls the JSON array out of the model's reply.
func parseSuggestions(text string) ([]service.Suggestion, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("unexpected response format: no JSON array in %q", truncate(text, 80))
	}

	var raw []service.Suggestion
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	suggestions := make([]service.Suggestion, 0, suggestionCount)
	for _, s := range raw {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			continue
		}
		suggestions = append(suggestions, service.Suggestion{
			Title:       title,
			Description: strings.TrimSpace(s.Description),
		})
		if len(suggestions) == suggestionCount {
			break
		}
	}
	if len(suggestions) == 0 {
		return nil, errors.New("model returned no usable subtasks")
	}
	return suggestions, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

const subtaskPromptTemplate = `Break the following task into exactly {{.Count}} concrete subtasks that can each be finished in one sitting.

**Task:** {{.Title}}
{{if .Description}}
**Details:**
{{.Description}}
{{end}}
{{- if .Previous}}
A previous attempt suggested:
{{range .Previous}}- {{.Title}}{{if .Description}}: {{.Description}}{{end}}
{{end}}
{{- end}}
{{- if .Feedback}}
The user gave this feedback on it: {{.Feedback}}
{{end}}
Reply with only a JSON array of {{.Count}} objects, each with "title" and "description" string fields.`
