package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// Confidence assigned to each attribute when the vision model produced it.
const (
	confJewelType     = 0.85
	confGemstone      = 0.80
	confGemstoneColor = 0.75
	confMetalColor    = 0.85
)

const visionSystemPrompt = `You are a jewelry product analyst. Look at the product image and answer with exactly four lines in this format:

jewel_type: <ring|necklace|earring|bracelet|pendant|brooch|anklet|watch|unknown>
gemstone: <name or none>
gemstone_color: <color or none>
metal_color: <gold|silver|rose|white|black|unknown>

Use lowercase. Do not add any other text.`

// genericCategories are answers too vague to store as a jewel type.
var genericCategories = map[string]struct{}{
	"jewelry":   {},
	"jewellery": {},
	"accessory": {},
	"ornament":  {},
	"unknown":   {},
}

// VisionModel infers jewel attributes from a product image using a
// multimodal chat model.
type VisionModel struct {
	llm         llms.Model
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewVisionModel builds the OpenAI-backed vision client.
func NewVisionModel(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) (*VisionModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision model: api key required")
	}
	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("create vision model: %w", err)
	}
	return &VisionModel{
		llm:         llm,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}, nil
}

// Infer sends the first product image to the model and parses the line
// formatted reply. Transport and parse failures are reported as
// pipeline.ErrVisionUnavailable so callers can fall back to rules.
func (v *VisionModel) Infer(ctx context.Context, req pipeline.VisionRequest) (pipeline.InferredAttributes, error) {
	if req.ImageURL == "" {
		return pipeline.InferredAttributes{}, fmt.Errorf("%w: no image", pipeline.ErrVisionUnavailable)
	}

	userText := fmt.Sprintf("Product name: %s\nListed metal: %s\nListed price: %s", req.Name, req.Metal, req.Price)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, visionSystemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(userText),
				llms.ImageURLPart(req.ImageURL),
			},
		},
	}

	resp, err := v.llm.GenerateContent(ctx, messages,
		llms.WithMaxTokens(v.maxTokens),
		llms.WithTemperature(v.temperature),
	)
	if err != nil {
		return pipeline.InferredAttributes{}, fmt.Errorf("%w: %v", pipeline.ErrVisionUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return pipeline.InferredAttributes{}, fmt.Errorf("%w: empty response", pipeline.ErrVisionUnavailable)
	}

	attrs, err := parseVisionReply(resp.Choices[0].Content)
	if err != nil {
		v.logger.Warn("unparseable vision reply", zap.String("image_url", req.ImageURL), zap.Error(err))
		return pipeline.InferredAttributes{}, fmt.Errorf("%w: %v", pipeline.ErrVisionUnavailable, err)
	}
	return attrs, nil
}

// parseVisionReply reads the strict key: value line format. Unknown keys are
// ignored; a reply with no recognized keys is an error.
func parseVisionReply(reply string) (pipeline.InferredAttributes, error) {
	attrs := pipeline.InferredAttributes{
		Source:     pipeline.SourceModel,
		Confidence: make(map[string]float64),
	}
	matched := 0
	for _, line := range strings.Split(reply, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" || value == "none" {
			continue
		}
		switch key {
		case "jewel_type":
			matched++
			if _, generic := genericCategories[value]; generic {
				attrs.SkipReason = "generic category: " + value
				continue
			}
			attrs.JewelType = value
			attrs.Confidence["jewel_type"] = confJewelType
		case "gemstone":
			matched++
			attrs.Gemstone = value
			attrs.Confidence["gemstone"] = confGemstone
		case "gemstone_color":
			matched++
			attrs.GemstoneColor = value
			attrs.Confidence["gemstone_color"] = confGemstoneColor
		case "metal_color":
			matched++
			if value != "unknown" {
				attrs.MetalColor = value
				attrs.Confidence["metal_color"] = confMetalColor
			}
		}
	}
	if matched == 0 {
		return pipeline.InferredAttributes{}, fmt.Errorf("no attribute lines in reply")
	}
	return attrs, nil
}
