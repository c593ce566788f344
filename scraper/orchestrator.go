package scraper

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"flatsync/config"
	"flatsync/models"
	"flatsync/services"
	"flatsync/storage"
)

// Orchestrator coordinates one crawl run: code discovery, the detail fetch
// pipeline, batched reconciliation, and the final delete sweep. Storage
// writes are funneled through the single reconciler consumer; nothing else
// touches the store during a run.
type Orchestrator struct {
	cfg     *config.Config
	pages   PageFetcher
	details DetailFetcher
	store   services.Store
	ops     *storage.OpsStore
	paused  atomic.Bool
}

func NewOrchestrator(cfg *config.Config, pages PageFetcher, details DetailFetcher, store services.Store, ops *storage.OpsStore) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		pages:   pages,
		details: details,
		store:   store,
		ops:     ops,
	}
}

func (o *Orchestrator) SetPaused(paused bool) {
	o.paused.Store(paused)
	if paused {
		log.Println("Crawler paused")
	} else {
		log.Println("Crawler resumed")
	}
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

type consumeResult struct {
	stats *services.ReconcileStats
	err   error
}

// RunCrawl executes one full crawl-and-reconcile run and returns the list
// of all stored codes after reconciliation.
func (o *Orchestrator) RunCrawl(ctx context.Context) ([]int64, error) {
	if o.paused.Load() {
		log.Println("Crawler is paused, skipping run")
		return nil, nil
	}

	links := o.cfg.Crawl.Links
	run := o.startRun()

	if before, err := o.store.CountListings(ctx); err == nil {
		log.Printf("[info] store holds %d records before run", before)
	}

	codes, reconStats, pipeStats, runErr := o.crawl(ctx, links)
	o.finishRun(run, codes, reconStats, pipeStats, runErr)
	if runErr != nil {
		return nil, runErr
	}

	if after, err := o.store.CountListings(ctx); err == nil {
		log.Printf("[info] store holds %d records after run", after)
	}

	return o.store.ListCodes(ctx)
}

func (o *Orchestrator) crawl(ctx context.Context, links []string) (*CodeSet, *services.ReconcileStats, *PipelineStats, error) {
	if len(dedupeLinks(links)) == 0 {
		return nil, nil, nil, fmt.Errorf("no usable base links configured")
	}

	discoverer := NewDiscoverer(o.pages, o.cfg.Crawl.PageConcurrency)
	codes, err := discoverer.CollectCodes(ctx, links)
	if err != nil {
		return codes, nil, nil, fmt.Errorf("discovery: %w", err)
	}
	log.Printf("[info] discovery: collected %d unique codes", codes.Len())

	reconciler := services.NewReconciler(o.store, o.cfg.Crawl.SaveBatchSize, o.cfg.Crawl.SkipUnchangedEnabled())
	if codes.Len() == 0 {
		return codes, &services.ReconcileStats{}, &PipelineStats{}, nil
	}

	// One cancellation signal spans the fetch pool and the consumer: a
	// consumer failure cancels the producers so nobody blocks on a queue
	// that will never drain.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan *models.ListingDetail, QueueCapacity(o.cfg.Crawl.DetailConcurrency))
	consumerDone := make(chan consumeResult, 1)
	go func() {
		stats, err := reconciler.Consume(runCtx, queue)
		if err != nil {
			cancel()
		}
		consumerDone <- consumeResult{stats: stats, err: err}
	}()

	pipeline := NewPipeline(
		o.details,
		o.cfg.Crawl.DetailConcurrency,
		o.cfg.Crawl.ThrottleMin(),
		o.cfg.Crawl.ThrottleMax(),
	)
	pipeStats, pipeErr := pipeline.Run(runCtx, codes.Values(), queue)
	close(queue)
	consumer := <-consumerDone

	log.Printf("[info] details processed: attempted=%d ok=%d failed=%d",
		pipeStats.Attempted.Load(), pipeStats.Succeeded.Load(), pipeStats.Failed.Load())

	if consumer.err != nil {
		return codes, consumer.stats, pipeStats, fmt.Errorf("reconcile: %w", consumer.err)
	}
	if pipeErr != nil {
		return codes, consumer.stats, pipeStats, fmt.Errorf("fetch pipeline: %w", pipeErr)
	}

	// The sweep is sequenced after the pipeline drains; it uses the parent
	// context so an already-flushed run is not torn down mid-delete.
	if _, err := reconciler.Sweep(ctx, codes.Values(), consumer.stats); err != nil {
		return codes, consumer.stats, pipeStats, err
	}

	log.Printf("[info] reconcile: inserted=%d updated=%d skipped=%d deleted=%d",
		consumer.stats.Inserted, consumer.stats.Updated, consumer.stats.Skipped, consumer.stats.Deleted)

	return codes, consumer.stats, pipeStats, nil
}

func (o *Orchestrator) startRun() *models.CrawlRun {
	run := &models.CrawlRun{StartedAt: time.Now().UTC(), Status: models.RunStatusRunning}
	if o.ops == nil {
		return run
	}
	id, err := o.ops.CreateRun(run)
	if err != nil {
		log.Printf("[warn] could not record crawl run: %v", err)
		return run
	}
	run.ID = id
	o.ops.Log(&run.ID, models.LogLevelInfo, "crawl run started")
	return run
}

func (o *Orchestrator) finishRun(run *models.CrawlRun, codes *CodeSet, recon *services.ReconcileStats, pipe *PipelineStats, runErr error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = models.RunStatusCompleted
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	}
	if codes != nil {
		run.CodesDiscovered = codes.Len()
	}
	if pipe != nil {
		run.DetailsOK = int(pipe.Succeeded.Load())
		run.DetailsFailed = int(pipe.Failed.Load())
	}
	if recon != nil {
		run.Inserted = recon.Inserted
		run.Updated = recon.Updated
		run.Skipped = recon.Skipped
		run.Deleted = recon.Deleted
	}

	if o.ops != nil && run.ID != 0 {
		if err := o.ops.UpdateRun(run); err != nil {
			log.Printf("[warn] could not update crawl run: %v", err)
		}
		o.ops.Log(&run.ID, models.LogLevelInfo, fmt.Sprintf("crawl run finished: %s", run.Status))
	}
}
