// Package summarize produces the one-line marketing summary and the vibe
// label for a jewel. Vibe classification is deterministic over a closed
// set so results are stable across runs.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// vibeKeywords maps each vibe to the name and description keywords that
// select it. Checked in pipeline.Vibes priority order.
var vibeKeywords = map[string][]string{
	pipeline.VibeWedding:    {"wedding", "bridal", "bride"},
	pipeline.VibeEngagement: {"engagement", "proposal", "solitaire"},
	pipeline.VibeFestive:    {"festive", "festival", "holiday", "celebration", "diwali", "christmas"},
	pipeline.VibeFormal:     {"formal", "evening", "gala", "statement"},
	pipeline.VibeParty:      {"party", "cocktail", "sparkle", "dazzle"},
	pipeline.VibeDateNight:  {"date", "romantic", "romance", "love"},
	pipeline.VibeEveryday:   {"everyday", "daily", "office", "minimal", "simple"},
	pipeline.VibeCasual:     {"casual", "boho", "beach", "fun"},
}

// Summarizer builds summaries, optionally through a text model.
type Summarizer struct {
	model  pipeline.TextModel
	logger *zap.Logger
}

// New constructs a Summarizer. model may be nil; the template branch is
// always available.
func New(model pipeline.TextModel, logger *zap.Logger) *Summarizer {
	return &Summarizer{model: model, logger: logger}
}

// Summarize returns the summary text and vibe for the jewel. It never
// fails and never returns an empty summary.
func (s *Summarizer) Summarize(ctx context.Context, product pipeline.NormalizedProduct, attrs pipeline.InferredAttributes) pipeline.Summary {
	vibe := ClassifyVibe(product, attrs)
	text := s.generate(ctx, product, attrs, vibe)
	if text == "" {
		text = TemplateSummary(product, attrs, vibe)
	}
	return pipeline.Summary{Text: text, Vibe: vibe}
}

// ClassifyVibe picks a vibe from the closed set. Name and description
// keywords win first in priority order, then a diamond ring implies
// engagement, then everything defaults to everyday.
func ClassifyVibe(product pipeline.NormalizedProduct, attrs pipeline.InferredAttributes) string {
	haystack := strings.ToLower(product.Name + " " + product.Description)
	for _, vibe := range pipeline.Vibes {
		for _, kw := range vibeKeywords[vibe] {
			if strings.Contains(haystack, kw) {
				return vibe
			}
		}
	}
	if attrs.Gemstone == "diamond" && attrs.JewelType == "ring" {
		return pipeline.VibeEngagement
	}
	return pipeline.VibeEveryday
}

// TemplateSummary renders the deterministic fallback sentence. At minimum
// the product name is always present, so the result is never empty.
func TemplateSummary(product pipeline.NormalizedProduct, attrs pipeline.InferredAttributes, vibe string) string {
	name := product.Name
	if name == "" {
		name = "This piece"
	}

	var parts []string
	if attrs.Gemstone != "" {
		parts = append(parts, attrs.Gemstone)
	}
	if product.Metal != "" {
		parts = append(parts, product.Metal)
	}

	switch len(parts) {
	case 0:
		return fmt.Sprintf("%s is %s %s piece.", name, article(vibe), vibe)
	case 1:
		return fmt.Sprintf("%s features %s, %s %s choice.", name, parts[0], article(vibe), vibe)
	default:
		return fmt.Sprintf("%s pairs %s with %s, %s %s choice.", name, parts[0], parts[1], article(vibe), vibe)
	}
}

func article(word string) string {
	if word == "" {
		return "a"
	}
	switch word[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	}
	return "a"
}

func (s *Summarizer) generate(ctx context.Context, product pipeline.NormalizedProduct, attrs pipeline.InferredAttributes, vibe string) string {
	if s.model == nil {
		return ""
	}
	prompt := fmt.Sprintf(
		"Write one short sentence describing this jewelry item for shoppers. Name: %s. Metal: %s. Gemstone: %s. Occasion: %s. Reply with the sentence only.",
		product.Name, product.Metal, attrs.Gemstone, vibe)
	text, err := s.model.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("summary generation failed, using template",
			zap.String("source_url", product.SourceURL), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}
