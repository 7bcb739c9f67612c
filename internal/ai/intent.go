package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/constants"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/swap"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// ParserConfig holds configuration for the intent parser.
type ParserConfig struct {
	// OpenRouter / LLM settings.
	APIKey string
	// Model name as understood by OpenRouter, e.g. "openai/gpt-4.1-mini".
	Model   string
	BaseURL string

	Logger *logrus.Logger
}

// Parser turns a sentence such as "swap 25 ada for min, 1% slippage" into a
// validated swap intent.
type Parser struct {
	llm    llms.Model
	logger *logrus.Logger
	now    func() time.Time
}

func NewParser(cfg ParserConfig) (*Parser, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENROUTER_API_KEY is required", apperr.ErrInvalidParameters)
	}
	if cfg.Model == "" {
		cfg.Model = "openai/gpt-4.1-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	cfg.Logger.WithField("model", cfg.Model).Info("initialized intent parser")
	return &Parser{llm: llm, logger: cfg.Logger, now: time.Now}, nil
}

// Parse asks the model for a JSON intent and validates it. The model never
// sees wallet addresses or amounts in smallest units.
func (p *Parser) Parse(ctx context.Context, text string) (*models.SwapIntent, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty request", apperr.ErrInvalidParameters)
	}
	if len(text) > 500 {
		return nil, fmt.Errorf("%w: request longer than 500 characters", apperr.ErrInvalidParameters)
	}

	resp, err := llms.GenerateFromSinglePrompt(ctx, p.llm, intentPrompt(text),
		llms.WithMaxTokens(256),
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: intent model: %v", apperr.ErrUpstreamUnavailable, err)
	}

	intent, err := DecodeIntent(resp)
	if err != nil {
		p.logger.WithError(err).WithField("response", truncate(resp, 200)).Warn("unusable intent from model")
		return nil, err
	}
	intent.RequestedAt = p.now().UTC()

	p.logger.WithFields(logrus.Fields{
		"from":       intent.FromToken,
		"to":         intent.ToToken,
		"amount":     intent.Amount.String(),
		"confidence": intent.Confidence,
	}).Debug("parsed swap intent")
	return intent, nil
}

func intentPrompt(text string) string {
	tickers := make([]string, 0, len(constants.TokenUnits)+1)
	tickers = append(tickers, constants.NativeTicker)
	for t := range constants.TokenUnits {
		tickers = append(tickers, t)
	}

	return fmt.Sprintf(`
You extract a single token swap from a user's message on the Cardano network.

Known tickers: %s. A token may also be given as policy id + hex asset name.

Respond with ONLY a JSON object, no prose and no code fences:
{"from_token": string, "to_token": string, "amount": string, "slippage": number or null, "reason": string, "confidence": number}

Rules:
- amount is in display units of from_token exactly as the user wrote it, e.g. "25" or "0.5".
- slippage is a fraction: "1%%" becomes 0.01. Use null when the user gives none.
- confidence is between 0 and 1.
- If the message is not a swap request, return {"from_token": "", "to_token": "", "amount": "0", "slippage": null, "reason": "<why>", "confidence": 0}.

User message:
%s
`, strings.Join(tickers, ", "), text)
}

// DecodeIntent parses a model response and validates the result.
func DecodeIntent(raw string) (*models.SwapIntent, error) {
	body := stripFences(raw)
	if start, end := strings.Index(body, "{"), strings.LastIndex(body, "}"); start >= 0 && end > start {
		body = body[start : end+1]
	}

	var intent models.SwapIntent
	if err := json.Unmarshal([]byte(body), &intent); err != nil {
		return nil, fmt.Errorf("%w: could not understand the request", apperr.ErrInvalidParameters)
	}
	intent.FromToken = strings.TrimSpace(intent.FromToken)
	intent.ToToken = strings.TrimSpace(intent.ToToken)

	if err := swap.ValidateIntent(&intent); err != nil {
		if intent.Reason != "" {
			return nil, fmt.Errorf("%w (%s)", err, intent.Reason)
		}
		return nil, err
	}
	return &intent, nil
}

// stripFences removes a ```json ... ``` wrapper from model output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
