package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"triagebot/internal/config"
	"triagebot/internal/domain"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

// Classification is one classifier verdict for one ticket.
type Classification struct {
	Category           string
	Priority           string
	Analysis           string
	PotentialCauses    []string
	SuggestedSolutions []string
	Confidence         float64
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
	Cost         float64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.Cost += other.Cost
}

// Client classifies tickets through one LLM provider. It owns the
// per-call timeout and cost accounting; retries belong to the caller.
type Client struct {
	provider   string
	model      string
	anthropic  anthropic.Client
	openAIKey  string
	timeout    time.Duration
	inputRate  float64 // $ per million input tokens
	outputRate float64
	glossary   *Glossary
}

func NewClient(cfg config.Config) (*Client, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}

	c := &Client{
		provider:   cfg.LLMProvider,
		model:      cfg.LLMModel,
		openAIKey:  cfg.OpenAIAPIKey,
		timeout:    cfg.ClassifyTimeout(),
		inputRate:  cfg.InputCostPerMTok,
		outputRate: cfg.OutputCostPerMTok,
	}
	if c.model == "" {
		if c.provider == "openai" {
			c.model = defaultOpenAIModel
		} else {
			c.model = defaultAnthropicModel
		}
	}
	if c.provider == "anthropic" {
		c.anthropic = anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))
	}
	if cfg.GlossaryPath != "" {
		g, err := LoadGlossary(cfg.GlossaryPath)
		if err != nil {
			return nil, err
		}
		c.glossary = g
	}
	return c, nil
}

// Classify runs one classification call. Failures come back as a
// *CallError so callers can branch on the kind.
func (c *Client) Classify(ctx context.Context, t domain.Ticket) (Classification, Usage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	systemPrompt, userPrompt := buildPrompts(t)

	var responseText string
	var usage Usage
	var callErr *CallError
	switch c.provider {
	case "openai":
		responseText, usage, callErr = c.callOpenAI(callCtx, systemPrompt, userPrompt)
	default:
		responseText, usage, callErr = c.callAnthropic(callCtx, systemPrompt, userPrompt)
	}
	usage.Cost = c.cost(usage.InputTokens, usage.OutputTokens)
	if callErr != nil {
		return Classification{}, usage, callErr
	}

	cl, err := parseClassification(responseText)
	if err != nil {
		return Classification{}, usage, Errf(KindInvalidResponse, "ticket %d: %v", t.ID, err)
	}
	if c.glossary != nil {
		cl = c.glossary.Apply(t, cl)
	}
	return cl, usage, nil
}

func (c *Client) cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1_000_000*c.inputRate + float64(outputTokens)/1_000_000*c.outputRate
}

func buildPrompts(t domain.Ticket) (string, string) {
	systemPrompt := `You are a support ticket analyst. Always respond with valid JSON only. Never include markdown, explanations, or extra text. Ensure all strings are properly escaped.`

	tags := t.Tags
	if tags == "" {
		tags = "None"
	}
	userPrompt := fmt.Sprintf(`Analyze this support ticket and respond ONLY with valid JSON.

Ticket:
Title: %s
Description: %s
Status: %s
Tags: %s

Respond with ONLY this JSON structure (no markdown, no extra text):
{
  "category": "bug" or "billing" or "feature_request" or "question" or "support" or "other",
  "priority": "low" or "medium" or "high",
  "analysis": "brief explanation of the issue (1-2 sentences)",
  "potential_causes": ["cause 1", "cause 2", "cause 3"],
  "suggested_solutions": ["solution 1", "solution 2", "solution 3"],
  "confidence": 0.0 to 1.0
}`, t.Title, t.Description, t.Status, tags)
	return systemPrompt, userPrompt
}

type classificationWire struct {
	Category           string   `json:"category"`
	Priority           string   `json:"priority"`
	Analysis           string   `json:"analysis"`
	PotentialCauses    []string `json:"potential_causes"`
	SuggestedSolutions []string `json:"suggested_solutions"`
	Confidence         float64  `json:"confidence"`
}

func parseClassification(responseText string) (Classification, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var wire classificationWire
	if err := json.Unmarshal([]byte(responseText), &wire); err != nil {
		return Classification{}, fmt.Errorf("parsing classification response: %w (response: %s)", err, responseText)
	}

	category := normalizeCategory(wire.Category)
	if category == "" {
		return Classification{}, fmt.Errorf("empty category in response")
	}
	priority := strings.ToLower(strings.TrimSpace(wire.Priority))
	if !domain.ValidPriority(priority) {
		return Classification{}, fmt.Errorf("invalid priority %q in response", wire.Priority)
	}
	if strings.TrimSpace(wire.Analysis) == "" {
		return Classification{}, fmt.Errorf("empty analysis in response")
	}

	confidence := wire.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Classification{
		Category:           category,
		Priority:           priority,
		Analysis:           strings.TrimSpace(wire.Analysis),
		PotentialCauses:    trimList(wire.PotentialCauses),
		SuggestedSolutions: trimList(wire.SuggestedSolutions),
		Confidence:         confidence,
	}, nil
}

// normalizeCategory folds model spelling variants ("Feature Request",
// "feature-request") onto the canonical open-string form.
func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func trimList(items []string) []string {
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Client) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, *CallError) {
	message, err := c.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", Usage{}, classifyErr(err)
	}
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, Errf(KindInvalidResponse, "no text content in Anthropic response")
}
