package inference

import (
	"strings"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// fallbackConfidence marks attributes derived from rules rather than the
// vision model.
const fallbackConfidence = 0.50

// gemstoneColors maps a gemstone to its most common color.
var gemstoneColors = map[string]string{
	"diamond":        "white",
	"ruby":           "red",
	"sapphire":       "blue",
	"emerald":        "green",
	"pearl":          "white",
	"amethyst":       "purple",
	"topaz":          "blue",
	"garnet":         "red",
	"opal":           "white",
	"turquoise":      "blue",
	"aquamarine":     "blue",
	"peridot":        "green",
	"citrine":        "yellow",
	"tanzanite":      "blue",
	"cubic zirconia": "white",
	"moissanite":     "white",
}

// metalColors maps a canonical metal to its visible color.
var metalColors = map[string]string{
	"yellow gold":     "gold",
	"white gold":      "white",
	"rose gold":       "rose",
	"sterling silver": "silver",
	"silver":          "silver",
	"platinum":        "silver",
	"palladium":       "silver",
	"titanium":        "silver",
	"stainless steel": "silver",
}

// RuleInfer derives attributes from the normalized fields alone. It is
// total: any input yields a usable result, possibly with empty fields.
func RuleInfer(product pipeline.NormalizedProduct) pipeline.InferredAttributes {
	attrs := pipeline.InferredAttributes{
		Source:     pipeline.SourceFallback,
		Confidence: make(map[string]float64),
	}

	if product.JewelType != "" {
		attrs.JewelType = strings.ToLower(product.JewelType)
		attrs.Confidence["jewel_type"] = fallbackConfidence
	} else if t := typeFromName(product.Name); t != "" {
		attrs.JewelType = t
		attrs.Confidence["jewel_type"] = fallbackConfidence
	}

	if product.Gemstone != "" {
		attrs.Gemstone = strings.ToLower(product.Gemstone)
		attrs.Confidence["gemstone"] = fallbackConfidence
	}

	if attrs.Gemstone != "" {
		if color := product.Color; color != "" {
			attrs.GemstoneColor = strings.ToLower(color)
		} else if color, ok := gemstoneColors[attrs.Gemstone]; ok {
			attrs.GemstoneColor = color
		}
		if attrs.GemstoneColor != "" {
			attrs.Confidence["gemstone_color"] = fallbackConfidence
		}
	}

	if color := metalColorOf(product.Metal); color != "" {
		attrs.MetalColor = color
		attrs.Confidence["metal_color"] = fallbackConfidence
	}

	return attrs
}

func typeFromName(name string) string {
	lower := strings.ToLower(name)
	for _, t := range []string{"ring", "necklace", "pendant", "earring", "bracelet", "bangle", "brooch", "anklet", "watch", "chain"} {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return ""
}

// metalColorOf strips any karat prefix, then looks up the metal color.
func metalColorOf(metal string) string {
	lower := strings.ToLower(strings.TrimSpace(metal))
	if lower == "" {
		return ""
	}
	for key, color := range metalColors {
		if strings.Contains(lower, key) {
			return color
		}
	}
	if strings.Contains(lower, "gold") {
		return "gold"
	}
	return ""
}
