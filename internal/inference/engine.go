// Package inference fills in jewel attributes that extraction could not
// read from the page. It prefers a vision model looking at the product
// image and degrades to deterministic rules when the model is missing or
// fails. Inference never fails a product: the rule branch is total.
package inference

import (
	"context"

	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// Engine runs the two inference branches.
type Engine struct {
	vision pipeline.VisionClient
	logger *zap.Logger
}

// New builds an Engine. vision may be nil, in which case only the rule
// branch runs.
func New(vision pipeline.VisionClient, logger *zap.Logger) *Engine {
	return &Engine{vision: vision, logger: logger}
}

// Infer returns attributes for the product. The vision branch is tried
// first when an image exists; any vision failure falls back to rules.
func (e *Engine) Infer(ctx context.Context, product pipeline.NormalizedProduct) pipeline.InferredAttributes {
	if e.vision != nil && len(product.Images) > 0 {
		req := pipeline.VisionRequest{
			ImageURL: product.Images[0],
			Name:     product.Name,
			Metal:    product.Metal,
			Price:    product.PriceCurrency,
		}
		attrs, err := e.vision.Infer(ctx, req)
		if err == nil {
			if attrs.SkipReason != "" {
				// The model judged this a generic listing; nothing to
				// backfill for a product that will not be stored.
				return attrs
			}
			return e.mergeKnown(product, attrs)
		}
		e.logger.Warn("vision inference failed, using rules",
			zap.String("source_url", product.SourceURL),
			zap.Error(err))
	}
	return RuleInfer(product)
}

// mergeKnown keeps extracted page values over model guesses where the page
// was explicit, and backfills model gaps from the rules at fallback
// confidence.
func (e *Engine) mergeKnown(product pipeline.NormalizedProduct, attrs pipeline.InferredAttributes) pipeline.InferredAttributes {
	if attrs.Confidence == nil {
		attrs.Confidence = make(map[string]float64)
	}
	if product.JewelType != "" {
		attrs.JewelType = product.JewelType
		attrs.Confidence["jewel_type"] = 1.0
	}
	if product.Gemstone != "" {
		attrs.Gemstone = product.Gemstone
		attrs.Confidence["gemstone"] = 1.0
	}

	rules := RuleInfer(product)
	if attrs.JewelType == "" && rules.JewelType != "" {
		attrs.JewelType = rules.JewelType
		attrs.Confidence["jewel_type"] = fallbackConfidence
	}
	if attrs.Gemstone == "" && rules.Gemstone != "" {
		attrs.Gemstone = rules.Gemstone
		attrs.Confidence["gemstone"] = fallbackConfidence
	}
	if attrs.GemstoneColor == "" && rules.GemstoneColor != "" {
		attrs.GemstoneColor = rules.GemstoneColor
		attrs.Confidence["gemstone_color"] = fallbackConfidence
	}
	if attrs.MetalColor == "" && rules.MetalColor != "" {
		attrs.MetalColor = rules.MetalColor
		attrs.Confidence["metal_color"] = fallbackConfidence
	}
	return attrs
}
