package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaiapi "github.com/sashabaranov/go-openai"

	"atelier/pkg/models"
)

const defaultSystemPrompt = "You are a project assistant. When the user asks you to build " +
	"something, reply with a short explanation followed by the generated files as fenced " +
	"code blocks. Title each block with its relative file path, e.g. ```tsx app/button.tsx."

// OpenAIGenerator adapts the OpenAI chat-completion API to the Generator
// contract.
type OpenAIGenerator struct {
	api       *openaiapi.Client
	model     string
	maxTokens int
	system    string
	timeout   time.Duration
}

// OpenAIOptions tunes the adapter. Zero values fall back to defaults.
type OpenAIOptions struct {
	Model        string
	MaxTokens    int
	SystemPrompt string
	Timeout      time.Duration
}

// NewOpenAIGenerator builds an adapter around the given API token.
func NewOpenAIGenerator(token string, opts OpenAIOptions) *OpenAIGenerator {
	model := opts.Model
	if model == "" {
		model = openaiapi.GPT4o
	}
	system := opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	return &OpenAIGenerator{
		api:       openaiapi.NewClient(token),
		model:     model,
		maxTokens: opts.MaxTokens,
		system:    system,
		timeout:   opts.Timeout,
	}
}

// Generate sends the conversation to the completion API and converts the
// reply into text plus an optional artifact parsed from fenced code blocks.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Reply, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	apiReq := openaiapi.ChatCompletionRequest{
		Model:               g.model,
		MaxCompletionTokens: g.maxTokens,
		Messages:            g.toAPIMessages(req.History),
	}
	resp, err := g.api.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("completion returned no choices")
	}
	text := resp.Choices[0].Message.Content
	return Reply{Text: text, Artifact: ParseArtifact(text)}, nil
}

func (g *OpenAIGenerator) toAPIMessages(history []models.Message) []openaiapi.ChatCompletionMessage {
	out := make([]openaiapi.ChatCompletionMessage, 0, len(history)+1)
	out = append(out, openaiapi.ChatCompletionMessage{
		Role:    openaiapi.ChatMessageRoleSystem,
		Content: g.system,
	})
	for _, m := range history {
		// error turns carry no useful model context
		if m.Type == models.TypeError {
			continue
		}
		role := openaiapi.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openaiapi.ChatMessageRoleAssistant
		}
		out = append(out, openaiapi.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// ParseArtifact extracts fenced code blocks from reply text into an
// artifact. The info string after the language is treated as the file path
// (```tsx app/button.tsx); unnamed blocks get a numbered snippet name.
// Returns nil when the reply carries no code blocks.
func ParseArtifact(text string) *Artifact {
	lines := strings.Split(text, "\n")
	files := map[string]string{}
	var cur []string
	var curName string
	inBlock := false
	n := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inBlock {
				files[curName] = strings.Join(cur, "\n")
				cur = nil
				inBlock = false
				continue
			}
			inBlock = true
			n++
			curName = blockName(strings.TrimPrefix(trimmed, "```"), n)
			continue
		}
		if inBlock {
			cur = append(cur, line)
		}
	}
	// unterminated block: keep what we have
	if inBlock && len(cur) > 0 {
		files[curName] = strings.Join(cur, "\n")
	}
	if len(files) == 0 {
		return nil
	}
	return &Artifact{Title: artifactTitle(lines), Files: files}
}

func blockName(info string, n int) string {
	parts := strings.Fields(info)
	if len(parts) >= 2 {
		return parts[1]
	}
	ext := "txt"
	if len(parts) == 1 && parts[0] != "" {
		ext = parts[0]
	}
	return fmt.Sprintf("snippet-%d.%s", n, ext)
}

func artifactTitle(lines []string) string {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "```") {
			continue
		}
		if len(t) > 80 {
			t = t[:80]
		}
		return t
	}
	return "Generated fragment"
}
