// Package services holds the reconciliation writer: the single consumer
// that drains the fetch pipeline into batched storage writes and runs the
// end-of-run delete sweep.
package services

import (
	"context"
	"fmt"
	"log"

	"flatsync/models"

	"github.com/google/uuid"
)

// Store is the persistence surface reconciliation needs. Implemented by
// storage.PostgresStore; tests use a fake.
type Store interface {
	// GetByCodes bulk-loads existing records keyed by code.
	GetByCodes(ctx context.Context, codes []int64) (map[int64]*models.ListingDetail, error)
	// SaveBatch commits one batch's inserts and updates as a single write.
	SaveBatch(ctx context.Context, inserts, updates []*models.ListingDetail) error
	// DeleteCodesNotIn removes stored records whose code is absent from
	// keep, returning the deleted codes.
	DeleteCodesNotIn(ctx context.Context, keep []int64) ([]int64, error)
	// ListCodes returns every stored non-null code.
	ListCodes(ctx context.Context) ([]int64, error)
	// CountListings reports the number of stored records.
	CountListings(ctx context.Context) (int64, error)
}

// ReconcileStats summarizes one run's writes.
type ReconcileStats struct {
	Inserted int
	Updated  int
	Skipped  int
	Deleted  int
}

// Reconciler applies insert-if-new / update-if-changed / delete-if-vanished
// against the store.
type Reconciler struct {
	store         Store
	batchSize     int
	skipUnchanged bool
}

func NewReconciler(store Store, batchSize int, skipUnchanged bool) *Reconciler {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Reconciler{store: store, batchSize: batchSize, skipUnchanged: skipUnchanged}
}

// Consume drains the hand-off queue into fixed-size batches and flushes
// each one. A flush failure is a run-level error: it is returned
// immediately and not retried here.
func (r *Reconciler) Consume(ctx context.Context, in <-chan *models.ListingDetail) (*ReconcileStats, error) {
	stats := &ReconcileStats{}
	batch := make([]*models.ListingDetail, 0, r.batchSize)

	for {
		select {
		case rec, ok := <-in:
			if !ok {
				if len(batch) > 0 {
					if err := r.flush(ctx, batch, stats); err != nil {
						return stats, err
					}
				}
				return stats, nil
			}
			batch = append(batch, rec)
			if len(batch) >= r.batchSize {
				if err := r.flush(ctx, batch, stats); err != nil {
					return stats, err
				}
				batch = batch[:0]
			}
		case <-ctx.Done():
			return stats, ctx.Err()
		}
	}
}

func (r *Reconciler) flush(ctx context.Context, batch []*models.ListingDetail, stats *ReconcileStats) error {
	// Records without a code are never persisted or matched.
	incoming := make([]*models.ListingDetail, 0, len(batch))
	codes := make([]int64, 0, len(batch))
	seen := make(map[int64]struct{}, len(batch))
	for _, rec := range batch {
		if rec.Code == nil {
			continue
		}
		if _, dup := seen[*rec.Code]; dup {
			log.Printf("[warn] reconcile: duplicate code=%d in batch, keeping first", *rec.Code)
			continue
		}
		seen[*rec.Code] = struct{}{}
		incoming = append(incoming, rec)
		codes = append(codes, *rec.Code)
	}
	if len(incoming) == 0 {
		return nil
	}

	existing, err := r.store.GetByCodes(ctx, codes)
	if err != nil {
		return fmt.Errorf("load existing records: %w", err)
	}

	var inserts, updates []*models.ListingDetail
	for _, rec := range incoming {
		prev, known := existing[*rec.Code]
		if !known {
			rec.ID = uuid.New()
			inserts = append(inserts, rec)
			log.Printf("[info] reconcile: new code=%d", *rec.Code)
			continue
		}

		if r.skipUnchanged && rec.UpdatedAt != nil && prev.UpdatedAt != nil &&
			rec.UpdatedAt.Equal(*prev.UpdatedAt) {
			stats.Skipped++
			continue
		}

		updates = append(updates, Merge(prev, rec))
		log.Printf("[info] reconcile: updated code=%d", *rec.Code)
	}

	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}
	if err := r.store.SaveBatch(ctx, inserts, updates); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	stats.Inserted += len(inserts)
	stats.Updated += len(updates)
	return nil
}

// Sweep deletes every stored record whose code was not discovered this run.
// Runs exactly once per run, strictly after all batches have flushed. The
// keep set is the discovery set: a code whose detail fetch failed was still
// seen upstream and must not be deleted.
func (r *Reconciler) Sweep(ctx context.Context, discovered []int64, stats *ReconcileStats) ([]int64, error) {
	if len(discovered) == 0 {
		log.Printf("[warn] reconcile: empty discovery set, skipping delete sweep")
		return nil, nil
	}

	deleted, err := r.store.DeleteCodesNotIn(ctx, discovered)
	if err != nil {
		return nil, fmt.Errorf("delete sweep: %w", err)
	}
	if len(deleted) > 0 {
		log.Printf("[info] reconcile: deleted vanished codes %v", deleted)
	}
	stats.Deleted += len(deleted)
	return deleted, nil
}
