package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

type stubVision struct {
	attrs pipeline.InferredAttributes
	err   error
	calls int
}

func (s *stubVision) Infer(_ context.Context, _ pipeline.VisionRequest) (pipeline.InferredAttributes, error) {
	s.calls++
	return s.attrs, s.err
}

func modelAttrs() pipeline.InferredAttributes {
	return pipeline.InferredAttributes{
		JewelType:     "ring",
		Gemstone:      "sapphire",
		GemstoneColor: "blue",
		MetalColor:    "white",
		Source:        pipeline.SourceModel,
		Confidence: map[string]float64{
			"jewel_type":     0.85,
			"gemstone":       0.80,
			"gemstone_color": 0.75,
			"metal_color":    0.85,
		},
	}
}

func TestInferPrefersVision(t *testing.T) {
	t.Parallel()

	vision := &stubVision{attrs: modelAttrs()}
	e := New(vision, zap.NewNop())

	got := e.Infer(context.Background(), pipeline.NormalizedProduct{
		Name:   "Mystery Piece",
		Images: []string{"https://cdn.example.com/a.jpg"},
	})

	assert.Equal(t, 1, vision.calls)
	assert.Equal(t, pipeline.SourceModel, got.Source)
	assert.Equal(t, "ring", got.JewelType)
	assert.Equal(t, "sapphire", got.Gemstone)
	assert.InDelta(t, 0.85, got.Confidence["jewel_type"], 1e-9)
}

func TestInferPreservesSkipReason(t *testing.T) {
	t.Parallel()

	vision := &stubVision{attrs: pipeline.InferredAttributes{
		Source:     pipeline.SourceModel,
		SkipReason: "generic category: jewellery",
	}}
	e := New(vision, zap.NewNop())

	got := e.Infer(context.Background(), pipeline.NormalizedProduct{
		Name:      "All Jewellery",
		JewelType: "ring",
		Images:    []string{"https://cdn.example.com/a.jpg"},
	})

	assert.Equal(t, "generic category: jewellery", got.SkipReason)
	assert.Empty(t, got.JewelType, "a flagged listing is not backfilled")
}

func TestInferFallsBackOnVisionError(t *testing.T) {
	t.Parallel()

	vision := &stubVision{err: pipeline.ErrVisionUnavailable}
	e := New(vision, zap.NewNop())

	got := e.Infer(context.Background(), pipeline.NormalizedProduct{
		Name:     "Classic Diamond Ring",
		Gemstone: "diamond",
		Metal:    "18kt white gold",
		Images:   []string{"https://cdn.example.com/a.jpg"},
	})

	assert.Equal(t, pipeline.SourceFallback, got.Source)
	assert.Equal(t, "diamond", got.Gemstone)
	assert.Equal(t, "white", got.GemstoneColor)
	assert.Equal(t, "white", got.MetalColor)
	assert.InDelta(t, 0.50, got.Confidence["gemstone"], 1e-9)
}

func TestFallbackConfidenceBelowModel(t *testing.T) {
	t.Parallel()

	product := pipeline.NormalizedProduct{
		Name:      "Sapphire Pendant",
		Gemstone:  "sapphire",
		JewelType: "pendant",
		Metal:     "sterling silver",
		Images:    []string{"https://cdn.example.com/a.jpg"},
	}

	withModel := New(&stubVision{attrs: modelAttrs()}, zap.NewNop()).
		Infer(context.Background(), pipeline.NormalizedProduct{Name: "x", Images: product.Images})
	withRules := RuleInfer(product)

	for key, conf := range withRules.Confidence {
		require.Contains(t, withModel.Confidence, key)
		assert.Less(t, conf, withModel.Confidence[key],
			"rule confidence for %s should sit below model confidence", key)
	}
}

func TestInferSkipsVisionWithoutImages(t *testing.T) {
	t.Parallel()

	vision := &stubVision{attrs: modelAttrs()}
	e := New(vision, zap.NewNop())

	got := e.Infer(context.Background(), pipeline.NormalizedProduct{
		Name:  "Plain Gold Band Ring",
		Metal: "22kt yellow gold",
	})

	assert.Equal(t, 0, vision.calls)
	assert.Equal(t, pipeline.SourceFallback, got.Source)
	assert.Equal(t, "ring", got.JewelType)
	assert.Equal(t, "gold", got.MetalColor)
}

func TestInferNilVisionClient(t *testing.T) {
	t.Parallel()

	e := New(nil, zap.NewNop())
	got := e.Infer(context.Background(), pipeline.NormalizedProduct{
		Name:   "Emerald Stud Earrings",
		Images: []string{"https://cdn.example.com/a.jpg"},
	})
	assert.Equal(t, pipeline.SourceFallback, got.Source)
	assert.Equal(t, "earring", got.JewelType)
}

func TestMergeKeepsExtractedFields(t *testing.T) {
	t.Parallel()

	attrs := modelAttrs()
	attrs.Gemstone = "ruby"
	e := New(&stubVision{attrs: attrs}, zap.NewNop())

	got := e.Infer(context.Background(), pipeline.NormalizedProduct{
		Name:     "Emerald Halo Ring",
		Gemstone: "emerald",
		Images:   []string{"https://cdn.example.com/a.jpg"},
	})

	assert.Equal(t, "emerald", got.Gemstone)
	assert.InDelta(t, 1.0, got.Confidence["gemstone"], 1e-9)
}

func TestRuleInferTotal(t *testing.T) {
	t.Parallel()

	got := RuleInfer(pipeline.NormalizedProduct{})
	assert.Equal(t, pipeline.SourceFallback, got.Source)
	assert.NotNil(t, got.Confidence)
	assert.Empty(t, got.JewelType)
}

func TestParseVisionReply(t *testing.T) {
	t.Parallel()

	attrs, err := parseVisionReply("jewel_type: ring\ngemstone: sapphire\ngemstone_color: blue\nmetal_color: gold\n")
	require.NoError(t, err)
	assert.Equal(t, "ring", attrs.JewelType)
	assert.Equal(t, "sapphire", attrs.Gemstone)
	assert.Equal(t, "blue", attrs.GemstoneColor)
	assert.Equal(t, "gold", attrs.MetalColor)
	assert.Equal(t, pipeline.SourceModel, attrs.Source)
}

func TestParseVisionReplyGenericCategory(t *testing.T) {
	t.Parallel()

	attrs, err := parseVisionReply("jewel_type: jewelry\ngemstone: none\nmetal_color: unknown\n")
	require.NoError(t, err)
	assert.Empty(t, attrs.JewelType)
	assert.Contains(t, attrs.SkipReason, "generic category")
}

func TestParseVisionReplyGarbage(t *testing.T) {
	t.Parallel()

	_, err := parseVisionReply("I cannot identify this product.")
	require.Error(t, err)
	assert.False(t, errors.Is(err, pipeline.ErrVisionUnavailable))
}
