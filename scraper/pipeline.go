package scraper

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"flatsync/models"
)

// PipelineStats counts detail fetch outcomes. Updated with atomic
// increments by concurrent workers.
type PipelineStats struct {
	Attempted atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
}

// Pipeline fans detail fetches out over a bounded worker pool and hands
// successful records to a single consumer through a bounded queue.
type Pipeline struct {
	details     DetailFetcher
	concurrency int
	throttleMin time.Duration
	throttleMax time.Duration
}

func NewPipeline(details DetailFetcher, concurrency int, throttleMin, throttleMax time.Duration) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		details:     details,
		concurrency: concurrency,
		throttleMin: throttleMin,
		throttleMax: throttleMax,
	}
}

// QueueCapacity is the hand-off queue size for a given fetch concurrency.
func QueueCapacity(concurrency int) int {
	c := 2 * concurrency
	if c < 64 {
		c = 64
	}
	return c
}

// Run fetches every code and sends successful records to out. The send
// blocks when the queue is full; backpressure, not dropping. Run returns
// after all workers finish (or cancellation) and never closes out, since
// the caller owns the channel. Per-code failures are counted and skipped;
// only cancellation aborts the pool.
func (p *Pipeline) Run(ctx context.Context, codes []int64, out chan<- *models.ListingDetail) (*PipelineStats, error) {
	stats := &PipelineStats{}
	jobs := make(chan int64)

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				p.fetchOne(ctx, code, out, stats)
			}
		}()
	}

feed:
	for _, code := range codes {
		select {
		case jobs <- code:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return stats, ctx.Err()
}

func (p *Pipeline) fetchOne(ctx context.Context, code int64, out chan<- *models.ListingDetail, stats *PipelineStats) {
	stats.Attempted.Add(1)

	if err := p.throttle(ctx); err != nil {
		stats.Failed.Add(1)
		return
	}

	detail, err := p.details.FetchDetail(ctx, code)
	if err != nil {
		log.Printf("[warn] detail fetch code=%d failed: %v", code, err)
		stats.Failed.Add(1)
		return
	}

	select {
	case out <- detail:
		stats.Succeeded.Add(1)
	case <-ctx.Done():
		stats.Failed.Add(1)
	}
}

// throttle sleeps a random duration inside the configured window; zero
// bounds disable throttling.
func (p *Pipeline) throttle(ctx context.Context) error {
	if p.throttleMin <= 0 || p.throttleMax <= 0 {
		return ctx.Err()
	}

	delay := p.throttleMin
	if span := p.throttleMax - p.throttleMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span) + 1))
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
