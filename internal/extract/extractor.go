// Package extract parses fetched pages into raw candidate product records.
// Extraction is heuristic and selector-based: malformed markup degrades to
// partial or absent fields, never to a failure.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// Extractor turns a CandidatePage into a RawProduct.
type Extractor struct {
	maxImages int
}

// New constructs an Extractor. maxImages caps the raw image URL list.
func New(maxImages int) *Extractor {
	if maxImages <= 0 {
		maxImages = 5
	}
	return &Extractor{maxImages: maxImages}
}

var (
	metalPattern = regexp.MustCompile(`(?i)\b(\d+\s*(?:k|kt|karat)\s*(?:white\s+gold|yellow\s+gold|rose\s+gold|gold)|white\s+gold|yellow\s+gold|rose\s+gold|pink\s+gold|sterling\s+silver|platinum|palladium|titanium|stainless\s+steel|silver)\b`)
	gemPattern   = regexp.MustCompile(`(?i)\b(diamond|ruby|sapphire|emerald|pearl|amethyst|topaz|garnet|opal|turquoise|aquamarine|peridot|citrine|tanzanite|cubic\s+zirconia|cz|moissanite)\b`)
	typePattern  = regexp.MustCompile(`(?i)\b(ring|band|necklace|pendant|chain|earring|stud|hoop|bracelet|bangle|cuff|brooch|anklet|watch)\b`)
	colorPattern = regexp.MustCompile(`(?i)\b(white|yellow|rose|pink|black|blue|green|red|purple|silver|gold)\b`)
)

// Extract parses the page body. It returns pipeline.ErrNotProductPage when
// the page carries no product signal at all (no price and no images).
func (e *Extractor) Extract(page pipeline.CandidatePage) (pipeline.RawProduct, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return pipeline.RawProduct{}, fmt.Errorf("parse page %s: %w", page.URL, err)
	}

	priceText, originalText := extractPrice(doc)
	images := e.extractImages(doc, page.URL)

	if priceText == "" && len(images) == 0 {
		return pipeline.RawProduct{}, pipeline.ErrNotProductPage
	}

	bodyText := doc.Find("body").Text()

	raw := pipeline.RawProduct{
		SourceURL:         page.URL,
		Name:              extractName(doc, page.Title),
		PriceText:         priceText,
		OriginalPriceText: originalText,
		Metal:             firstMatch(metalPattern, bodyText),
		Gemstone:          firstMatch(gemPattern, bodyText),
		JewelType:         firstMatch(typePattern, bodyText),
		Color:             firstMatch(colorPattern, bodyText),
		Description:       extractDescription(doc),
		Images:            images,
		Metadata:          extractMetadata(doc),
	}
	return raw, nil
}

// IsProductPage reports whether the document shows product-detail signals.
// The crawler uses it to decide between harvesting a page and following its
// links.
func IsProductPage(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if doc.Find(`[itemtype*="Product"]`).Length() > 0 {
		return true
	}
	if doc.Find(`[class*="product"] [class*="price"], [class*="pdp"]`).Length() > 0 {
		return true
	}
	lower := strings.ToLower(doc.Find("body").Text())
	for _, phrase := range []string{"add to cart", "add to bag", "buy now"} {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func extractName(doc *goquery.Document, pageTitle string) string {
	if v := strings.TrimSpace(doc.Find(`[itemprop="name"]`).First().Text()); v != "" {
		return v
	}
	if v, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(doc.Find(`h1[class*="product"], h1[class*="title"]`).First().Text()); v != "" {
		return v
	}
	if v := strings.TrimSpace(doc.Find("h1").First().Text()); v != "" {
		return v
	}
	if v := strings.TrimSpace(pageTitle); v != "" {
		return v
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// extractPrice returns the preferred price text (sale price when the page
// shows both) and the pre-discount original, if any.
func extractPrice(doc *goquery.Document) (price, original string) {
	container := doc.Find(`[class*="product-price"], [class*="price-wrapper"], div[class*="price"], span[class*="price"]`).First()
	if container.Length() > 0 {
		sale := container.Find(`ins, [class*="sale-price"], [class*="sale_price"], [class*="discount"], [class*="special"]`).First()
		if sale.Length() > 0 {
			price = strings.TrimSpace(sale.Text())
		}
		orig := container.Find(`del, [class*="mrp"], [class*="original"], [class*="regular"], [class*="was-price"]`).First()
		if orig.Length() > 0 {
			original = strings.TrimSpace(orig.Text())
		}
		if price == "" {
			price = strings.TrimSpace(container.Text())
		}
	}

	if price == "" {
		elem := doc.Find(`[itemprop="price"]`).First()
		if v, ok := elem.Attr("content"); ok && v != "" {
			price = v
		} else {
			price = strings.TrimSpace(elem.Text())
		}
		if price != "" {
			if cur, ok := doc.Find(`[itemprop="priceCurrency"]`).Attr("content"); ok {
				price = cur + price
			}
		}
	}

	if price == "" {
		price = strings.TrimSpace(doc.Find(`[class*="price"], [class*="cost"], [class*="amount"]`).First().Text())
	}
	return price, original
}

var imageSelectors = []string{
	`img[itemprop="image"]`,
	`img[class*="product"]`,
	`img[class*="gallery"]`,
	`[class*="product-image"] img`,
	`[class*="product-gallery"] img`,
}

func (e *Extractor) extractImages(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	var images []string
	seen := make(map[string]struct{})
	for _, sel := range imageSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, ok := s.Attr("src")
			if !ok || src == "" || strings.HasPrefix(src, "data:") {
				return true
			}
			abs := resolveURL(base, src)
			if abs == "" {
				return true
			}
			if _, dup := seen[abs]; dup {
				return true
			}
			seen[abs] = struct{}{}
			images = append(images, abs)
			return len(images) < e.maxImages
		})
		if len(images) > 0 {
			break
		}
	}
	return images
}

func extractDescription(doc *goquery.Document) string {
	if v := strings.TrimSpace(doc.Find(`[itemprop="description"]`).First().Text()); len(v) > 20 {
		return v
	}
	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && len(strings.TrimSpace(v)) > 20 {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && len(strings.TrimSpace(v)) > 20 {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(doc.Find(`[class*="description"], [class*="details"]`).First().Text()); len(v) > 20 {
		return v
	}
	return ""
}

// extractMetadata harvests schema.org itemprops and OpenGraph meta tags into
// a free-form map kept on the record for auditing.
func extractMetadata(doc *goquery.Document) map[string]string {
	meta := make(map[string]string)
	doc.Find("[itemprop]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("itemprop")
		if prop == "" {
			return
		}
		value, ok := s.Attr("content")
		if !ok || value == "" {
			value = strings.TrimSpace(s.Text())
		}
		if value != "" {
			meta["schema_"+prop] = value
		}
	})
	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		value, _ := s.Attr("content")
		if prop != "" && value != "" {
			meta[prop] = value
		}
	})
	return meta
}

func firstMatch(re *regexp.Regexp, text string) string {
	return strings.TrimSpace(re.FindString(text))
}

func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		parsed = base.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}
