// Package images fetches product image bytes and hands them to an
// ImageStore. Download failures are per-image: a broken image never fails
// the product.
package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// maxImageBytes caps a single download to keep a hostile page from
// exhausting memory.
const maxImageBytes = 10 << 20

// Downloader fetches image URLs and stores them under a per-product prefix.
type Downloader struct {
	client    *http.Client
	store     pipeline.ImageStore
	hasher    pipeline.Hasher
	maxImages int
	userAgent string
	logger    *zap.Logger
}

// New builds a Downloader. store may be nil, which disables downloads.
func New(store pipeline.ImageStore, hasher pipeline.Hasher, maxImages int, timeout time.Duration, userAgent string, logger *zap.Logger) *Downloader {
	if maxImages <= 0 {
		maxImages = 5
	}
	return &Downloader{
		client:    &http.Client{Timeout: timeout},
		store:     store,
		hasher:    hasher,
		maxImages: maxImages,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Download fetches up to maxImages of the given URLs and stores each one.
// It returns the stored paths and reports the count to the observer.
// Failed images are logged and skipped.
func (d *Downloader) Download(ctx context.Context, sourceURL string, urls []string, obs pipeline.StatsObserver) []string {
	if d.store == nil || len(urls) == 0 {
		return nil
	}
	if len(urls) > d.maxImages {
		urls = urls[:d.maxImages]
	}

	prefix, err := d.hasher.Hash([]byte(sourceURL))
	if err != nil {
		d.logger.Error("hash source url", zap.String("source_url", sourceURL), zap.Error(err))
		return nil
	}

	var stored []string
	for i, imageURL := range urls {
		p, err := d.fetchOne(ctx, prefix, i, imageURL)
		if err != nil {
			d.logger.Warn("image download failed",
				zap.String("image_url", imageURL), zap.Error(err))
			continue
		}
		stored = append(stored, p)
	}
	if len(stored) > 0 {
		obs.ImagesDownloaded(len(stored))
	}
	return stored
}

func (d *Downloader) fetchOne(ctx context.Context, prefix string, index int, imageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("not an image: %s", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image body")
	}

	name := fmt.Sprintf("%d%s", index, extensionFor(contentType))
	storedPath, err := d.store.PutImage(ctx, path.Join(prefix, name), contentType, data)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return storedPath, nil
}

// extensionFor maps common image content types to file extensions.
func extensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/jpeg"):
		return ".jpg"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	case strings.HasPrefix(contentType, "image/avif"):
		return ".avif"
	default:
		return ".img"
	}
}
