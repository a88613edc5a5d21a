// Package pipeline defines core types shared across the scraping subsystems.
package pipeline

import "time"

// JobStatus represents the lifecycle state of a scrape job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// IsTerminal reports whether the status ends the job lifecycle.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// JobStats tracks per-job pipeline counters. A job that ran to completion
// reports success even when individual pages errored; the error count here is
// the only record of those.
type JobStats struct {
	PagesCrawled     int `json:"pages_crawled"`
	PagesSkipped     int `json:"pages_skipped"`
	ProductsFound    int `json:"products_found"`
	ProductsStored   int `json:"products_stored"`
	ImagesDownloaded int `json:"images_downloaded"`
	Errors           int `json:"errors"`
}

// Job represents the metadata persisted for each submitted scrape request.
type Job struct {
	ID           string     `json:"id"`
	URL          string     `json:"url"`
	Status       JobStatus  `json:"status"`
	Submitted    time.Time  `json:"submitted_at"`
	Started      *time.Time `json:"started_at,omitempty"`
	Finished     *time.Time `json:"finished_at,omitempty"`
	Stats        JobStats   `json:"stats"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// CandidatePage is a fetched page awaiting extraction. It exists only within
// a job's processing window and is never persisted.
type CandidatePage struct {
	URL          string
	Body         []byte
	Title        string
	FetchedAt    time.Time
	UsedHeadless bool
}

// RawProduct is the extractor's unvalidated view of a candidate page.
type RawProduct struct {
	SourceURL string
	Name      string
	PriceText string
	// OriginalPriceText holds the pre-discount price when the page shows both.
	OriginalPriceText string
	Metal             string
	Gemstone          string
	JewelType         string
	Color             string
	Description       string
	Images            []string
	Metadata          map[string]string
}

// NormalizedProduct carries canonical vocabulary where derivable and the raw
// value verbatim where not. A nil PriceAmount means the price text did not
// parse.
type NormalizedProduct struct {
	SourceURL     string
	Name          string
	Metal         string
	Gemstone      string
	JewelType     string
	Color         string
	PriceAmount   *float64
	PriceCurrency string
	Description   string
	Images        []string
	Metadata      map[string]string
}

// AttributeSource distinguishes model-derived attributes from rule-based
// fallback values.
type AttributeSource string

// Provenance values for InferredAttributes.
const (
	SourceModel    AttributeSource = "model"
	SourceFallback AttributeSource = "fallback"
)

// InferredAttributes holds visual attributes with per-field confidence in
// [0,1]. Fallback confidences are fixed lower than model confidences so the
// two paths stay distinguishable downstream.
type InferredAttributes struct {
	JewelType     string             `json:"jewel_type,omitempty"`
	Gemstone      string             `json:"gemstone,omitempty"`
	GemstoneColor string             `json:"gemstone_color,omitempty"`
	MetalColor    string             `json:"metal_color,omitempty"`
	Confidence    map[string]float64 `json:"confidence,omitempty"`
	Source        AttributeSource    `json:"source"`
	// SkipReason is set when the model judged the page a generic category
	// listing rather than a specific product.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Summary is the generated product description plus occasion tag.
type Summary struct {
	Text string `json:"text"`
	Vibe string `json:"vibe"`
}

// The closed set of occasion tags.
const (
	VibeWedding    = "wedding"
	VibeEngagement = "engagement"
	VibeCasual     = "casual"
	VibeFestive    = "festive"
	VibeFormal     = "formal"
	VibeDateNight  = "date-night"
	VibeEveryday   = "everyday"
	VibeParty      = "party"
)

// Vibes lists the occasion tags in classification priority order.
var Vibes = []string{
	VibeWedding, VibeEngagement, VibeFestive, VibeFormal,
	VibeParty, VibeDateNight, VibeEveryday, VibeCasual,
}

// Jewel is the merged, persisted product record. Identity is the canonical
// source URL; a second sighting of the same URL updates the existing row.
type Jewel struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	SourceURL     string             `json:"source_url"`
	JewelType     string             `json:"jewel_type,omitempty"`
	Metal         string             `json:"metal,omitempty"`
	Gemstone      string             `json:"gemstone,omitempty"`
	GemstoneColor string             `json:"gemstone_color,omitempty"`
	MetalColor    string             `json:"metal_color,omitempty"`
	Color         string             `json:"color,omitempty"`
	PriceAmount   *float64           `json:"price_amount,omitempty"`
	PriceCurrency string             `json:"price_currency,omitempty"`
	Inferred      InferredAttributes `json:"inferred_attributes"`
	Vibe          string             `json:"vibe,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	Images        []string           `json:"images,omitempty"`
	RawMetadata   map[string]string  `json:"raw_metadata,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// JewelFilter selects jewels in list queries. Zero values mean "any".
type JewelFilter struct {
	Vibe      string
	Metal     string
	JewelType string
	Limit     int
	Offset    int
}

// JewelPage is one page of a filtered jewel listing.
type JewelPage struct {
	Items  []Jewel `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
