package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

func TestMetalKaratVariantsCollapse(t *testing.T) {
	t.Parallel()

	variants := []string{
		"18K yellow gold",
		"18kt yellow gold",
		"18 kt yellow gold",
		"18 Karat Yellow Gold",
	}
	for _, v := range variants {
		assert.Equal(t, "18kt yellow gold", Metal(v), "input %q", v)
	}
}

func TestMetalSynonyms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Sterling Silver", "sterling silver"},
		{"14k White Gold", "14kt white gold"},
		{"Pink Gold", "rose gold"},
		{"PLATINUM", "platinum"},
		{"Rose Gold Vermeil", "rose gold"},
		{"unobtanium", "unobtanium"}, // unrecognized preserved verbatim
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Metal(tc.in), "input %q", tc.in)
	}
}

func TestMetalIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"18K Yellow Gold", "sterling silver", "platinum",
		"22 karat rose gold", "mystery alloy",
	}
	for _, in := range inputs {
		once := Metal(in)
		assert.Equal(t, once, Metal(once), "normalization must be a fixed point for %q", in)
	}
}

func TestPriceParsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		amount   float64
		currency string
	}{
		{"$1,299.50", 1299.50, "USD"},
		{"€1.299,50", 1299.50, "EUR"},
		{"₹45,000", 45000, "INR"},
		{"£89", 89, "GBP"},
		{"1299.50 USD", 1299.50, "USD"},
		{"1.299", 1299, ""}, // EU thousands grouping, no currency
		{"499 dollars", 499, "USD"},
	}
	for _, tc := range tests {
		amount, currency := Price(tc.in)
		require.NotNil(t, amount, "input %q", tc.in)
		assert.InDelta(t, tc.amount, *amount, 0.001, "input %q", tc.in)
		assert.Equal(t, tc.currency, currency, "input %q", tc.in)
	}
}

func TestPriceUnparseableDegradesGracefully(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "call for price", "N/A"} {
		amount, currency := Price(in)
		assert.Nil(t, amount, "input %q", in)
		assert.Empty(t, currency, "input %q", in)
	}

	// Currency symbol with no number keeps the currency.
	amount, currency := Price("$ TBD")
	assert.Nil(t, amount)
	assert.Equal(t, "USD", currency)
}

func TestJewelTypeSynonyms(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"Wedding Band", "ring"},
		{"Pendant", "necklace"},
		{"Hoop Earrings", "earring"},
		{"Bangle", "bracelet"},
		{"tiara", "tiara"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, JewelType(tc.in), "input %q", tc.in)
	}
}

func TestGemstoneSynonyms(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cubic zirconia", Gemstone("CZ"))
	assert.Equal(t, "cubic zirconia", Gemstone("Cubic Zirconia"))
	assert.Equal(t, "diamond", Gemstone("Diamond Solitaire"))
	assert.Equal(t, "painite", Gemstone("painite"))
}

func TestProductCarriesUnnormalizedFieldsForward(t *testing.T) {
	t.Parallel()

	raw := pipeline.RawProduct{
		SourceURL:   "https://shop.example/ring-1",
		Name:        "Aurora Ring",
		PriceText:   "$2,450.00",
		Metal:       "18 kt white gold",
		Gemstone:    "sapphire",
		JewelType:   "band",
		Color:       "Blue",
		Description: "A sapphire ring.",
		Images:      []string{"https://shop.example/i.jpg"},
		Metadata:    map[string]string{"og:title": "Aurora Ring"},
	}

	got := Product(raw)

	assert.Equal(t, "Aurora Ring", got.Name)
	assert.Equal(t, "18kt white gold", got.Metal)
	assert.Equal(t, "ring", got.JewelType)
	assert.Equal(t, "blue", got.Color)
	require.NotNil(t, got.PriceAmount)
	assert.InDelta(t, 2450.0, *got.PriceAmount, 0.001)
	assert.Equal(t, "USD", got.PriceCurrency)
	assert.Equal(t, raw.Description, got.Description)
	assert.Equal(t, raw.Images, got.Images)
	assert.Equal(t, raw.Metadata, got.Metadata)
	assert.Equal(t, raw.SourceURL, got.SourceURL)
}

func TestProductIsIdempotent(t *testing.T) {
	t.Parallel()

	raw := pipeline.RawProduct{
		Name:      "Test",
		PriceText: "$10.00",
		Metal:     "18K Yellow Gold",
		Gemstone:  "Ruby",
		JewelType: "stud",
	}
	once := Product(raw)
	again := Product(pipeline.RawProduct{
		SourceURL: once.SourceURL,
		Name:      once.Name,
		PriceText: "$10.00",
		Metal:     once.Metal,
		Gemstone:  once.Gemstone,
		JewelType: once.JewelType,
		Color:     once.Color,
	})
	assert.Equal(t, once.Metal, again.Metal)
	assert.Equal(t, once.Gemstone, again.Gemstone)
	assert.Equal(t, once.JewelType, again.JewelType)
}
