package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/reqctx"
	"google.golang.org/genai"
)

var ErrNotConfigured = errors.New("price advisor is not configured")

type Suggestion struct {
	Amount float64 `json:"amount"`
	Model  string  `json:"model"`
}

// PriceAdvisor asks Gemini for a counter-offer price.
type PriceAdvisor struct {
	client *genai.Client
	model  string
	log    zerolog.Logger
}

// NewPriceAdvisor returns nil, nil when apiKey is empty so callers can run without the advisor.
func NewPriceAdvisor(ctx context.Context, apiKey, model string, log zerolog.Logger) (*PriceAdvisor, error) {
	if apiKey == "" {
		return nil, nil
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &PriceAdvisor{client: client, model: model, log: log}, nil
}

func (a *PriceAdvisor) Suggest(ctx context.Context, in SuggestionInput) (*Suggestion, error) {
	if a == nil || a.client == nil {
		return nil, ErrNotConfigured
	}
	log := a.log.With().
		Str("rid", reqctx.RID(ctx)).
		Uint64("negotiation_id", reqctx.NegotiationID(ctx)).
		Str("model", a.model).
		Logger()

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(BuildCounterPrompt(in))}, genai.RoleUser),
	}
	temp := float32(0.2)
	config := &genai.GenerateContentConfig{Temperature: &temp}

	start := time.Now()
	res, err := a.client.Models.GenerateContent(ctx, a.model, contents, config)
	if err != nil {
		log.Warn().Err(err).Msg("gemini generate failed")
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	raw := res.Text()
	val, err := ParsePrice(raw)
	if err != nil {
		text := strings.ReplaceAll(raw, "\n", " ")
		if len(text) > 80 {
			text = text[:80]
		}
		log.Warn().Err(err).Str("text", text).Msg("suggestion not parsed")
		return nil, err
	}
	log.Info().Float64("amount", val).Dur("elapsed", time.Since(start)).Msg("suggestion ready")
	return &Suggestion{Amount: val, Model: a.model}, nil
}
