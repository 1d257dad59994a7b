package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(f.text, genai.RoleModel)},
		},
	}, nil
}

type fakeImages struct {
	img *Image
	err error
}

func (f fakeImages) Load(context.Context, string) (*Image, error) {
	return f.img, f.err
}

func TestGeminiValuerEstimate(t *testing.T) {
	gen := &fakeGenerator{text: "Minimum price: $80\nMaximum price: $120\nJustification: Popular model"}
	log, _ := test.NewNullLogger()
	v := NewGeminiValuer(gen, "", nil, log)

	est, err := v.Estimate(context.Background(), ValuationInput{Title: "Road bike", Description: "Aluminium frame"})
	require.NoError(t, err)
	assert.Equal(t, 80.0, est.Min)
	assert.Equal(t, 120.0, est.Max)
	assert.Equal(t, 100.0, est.Midpoint())
	assert.Equal(t, "gemini-2.5-flash", gen.model)
	require.Len(t, gen.contents, 1)
	assert.Len(t, gen.contents[0].Parts, 2)
	assert.Contains(t, gen.contents[0].Parts[1].Text, "Road bike")
}

func TestGeminiValuerAttachesImage(t *testing.T) {
	gen := &fakeGenerator{text: "42"}
	img := &Image{Data: []byte("\x89PNG\r\n\x1a\n"), MimeType: "image/png"}
	v := NewGeminiValuer(gen, "gemini-test", fakeImages{img: img}, nil)

	est, err := v.Estimate(context.Background(), ValuationInput{Title: "Lamp", Description: "Brass", ImageRef: "gs://b/o.png"})
	require.NoError(t, err)
	assert.Equal(t, 42.0, est.Min)
	require.Len(t, gen.contents[0].Parts, 3)
	require.NotNil(t, gen.contents[0].Parts[2].InlineData)
	assert.Equal(t, "image/png", gen.contents[0].Parts[2].InlineData.MIMEType)
}

func TestGeminiValuerImageFailureFallsBackToText(t *testing.T) {
	gen := &fakeGenerator{text: "Minimum price: $5\nMaximum price: $15"}
	log, hook := test.NewNullLogger()
	v := NewGeminiValuer(gen, "m", fakeImages{err: ErrImageTooLarge}, log)

	est, err := v.Estimate(context.Background(), ValuationInput{Title: "Mug", Description: "Ceramic", ImageRef: "https://x/y.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, est.Midpoint())
	assert.Len(t, gen.contents[0].Parts, 2)
	require.NotNil(t, hook.LastEntry())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "stage=image_skip" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestGeminiValuerErrors(t *testing.T) {
	upstream := errors.New("quota exceeded")
	v := NewGeminiValuer(&fakeGenerator{err: upstream}, "m", nil, nil)
	_, err := v.Estimate(context.Background(), ValuationInput{Title: "x", Description: "y"})
	require.ErrorIs(t, err, upstream)

	v = NewGeminiValuer(&fakeGenerator{text: "cannot tell"}, "m", nil, nil)
	_, err = v.Estimate(context.Background(), ValuationInput{Title: "x", Description: "y"})
	require.ErrorIs(t, err, ErrParseFailed)

	var nilValuer *GeminiValuer
	_, err = nilValuer.Estimate(context.Background(), ValuationInput{})
	require.Error(t, err)
}

func TestGeminiValuerParseFailLogsWholeRunes(t *testing.T) {
	gen := &fakeGenerator{text: strings.Repeat("値段は分かりません。", 20)}
	log, hook := test.NewNullLogger()
	v := NewGeminiValuer(gen, "m", nil, log)

	_, err := v.Estimate(context.Background(), ValuationInput{Title: "Vase", Description: "Old"})
	require.ErrorIs(t, err, ErrParseFailed)

	var text string
	for _, e := range hook.AllEntries() {
		if e.Message == "stage=parse_fail" {
			text, _ = e.Data["text"].(string)
		}
	}
	require.NotEmpty(t, text)
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, 80, utf8.RuneCountInString(text))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 80))
	assert.Equal(t, "héé", truncateRunes("héééé", 3))
}
