package orchestrator

import (
	"sync/atomic"

	"github.com/gemfetch/jewelcrawler/internal/pipeline"
)

// jobStats accumulates pipeline counters with atomics so every worker can
// report without coordination.
type jobStats struct {
	pagesCrawled     atomic.Int64
	pagesSkipped     atomic.Int64
	productsFound    atomic.Int64
	productsStored   atomic.Int64
	imagesDownloaded atomic.Int64
	errors           atomic.Int64
}

func (s *jobStats) PageCrawled()         { s.pagesCrawled.Add(1) }
func (s *jobStats) PageSkipped()         { s.pagesSkipped.Add(1) }
func (s *jobStats) ProductFound()        { s.productsFound.Add(1) }
func (s *jobStats) ProductStored()       { s.productsStored.Add(1) }
func (s *jobStats) ImagesDownloaded(n int) { s.imagesDownloaded.Add(int64(n)) }
func (s *jobStats) ErrorOccurred()       { s.errors.Add(1) }

func (s *jobStats) snapshot() pipeline.JobStats {
	return pipeline.JobStats{
		PagesCrawled:     int(s.pagesCrawled.Load()),
		PagesSkipped:     int(s.pagesSkipped.Load()),
		ProductsFound:    int(s.productsFound.Load()),
		ProductsStored:   int(s.productsStored.Load()),
		ImagesDownloaded: int(s.imagesDownloaded.Load()),
		Errors:           int(s.errors.Load()),
	}
}
