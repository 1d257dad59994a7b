package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shinyyama/barter-backend/internal/reqctx"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// ValuationInput is what the oracle sees about an item.
type ValuationInput struct {
	Title       string
	Description string
	ImageRef    string
}

// ContentGenerator is the slice of the genai Models API used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiValuer struct {
	models ContentGenerator
	model  string
	images ImageSource
	log    logrus.FieldLogger
}

// NewGeminiClient builds a Gemini API client. An empty key lets the SDK read GOOGLE_API_KEY / GEMINI_API_KEY.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	return genai.NewClient(ctx, cfg)
}

// NewGeminiValuer wires a generator (usually client.Models). images may be nil for text-only valuation.
func NewGeminiValuer(models ContentGenerator, model string, images ImageSource, log logrus.FieldLogger) *GeminiValuer {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GeminiValuer{models: models, model: model, images: images, log: log}
}

func (v *GeminiValuer) Estimate(ctx context.Context, in ValuationInput) (*PriceEstimate, error) {
	if v == nil || v.models == nil {
		return nil, errors.New("gemini client is not configured")
	}
	log := v.log.WithFields(logrus.Fields{
		"component": "valuation",
		"rid":       reqctx.RID(ctx),
		"item_id":   reqctx.ItemID(ctx),
	})
	start := time.Now()

	instruction, details := BuildValuationPrompt(in.Title, in.Description)
	parts := []*genai.Part{
		genai.NewPartFromText(instruction),
		genai.NewPartFromText(details),
	}
	if ref := strings.TrimSpace(in.ImageRef); ref != "" && v.images != nil {
		img, err := v.images.Load(ctx, ref)
		if err != nil {
			log.WithError(err).Warn("stage=image_skip")
		} else {
			parts = append(parts, genai.NewPartFromBytes(img.Data, img.MimeType))
		}
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	temp := float32(0)
	config := &genai.GenerateContentConfig{
		Temperature: &temp,
	}

	log.WithField("model", v.model).Debug("stage=gemini_start")
	res, err := v.models.GenerateContent(ctx, v.model, contents, config)
	if err != nil {
		log.WithError(err).WithField("model", v.model).Warn("stage=gemini_fail")
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	raw := res.Text()
	est, err := ParsePriceEstimate(raw)
	if err != nil {
		text := truncateRunes(strings.ReplaceAll(raw, "\n", " "), 80)
		log.WithError(err).WithField("text", text).Warn("stage=parse_fail")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"min":     est.Min,
		"max":     est.Max,
		"totalMs": time.Since(start).Milliseconds(),
	}).Info("stage=parse_ok")
	return est, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
