package services

import (
	"context"
	"fmt"
	"time"

	"github.com/opsdash/shortage/pkg/domain/entities"
	"github.com/opsdash/shortage/pkg/domain/repositories"
	"github.com/opsdash/shortage/pkg/infrastructure/events"
)

// ShortageBoard is the embedding surface for a UI layer. It owns the two
// pieces of shared mutable state the engine has: the latest backend
// snapshot and the pending edit overlay. Everything else is derived.
//
// The board is built for a single-threaded UI event loop and uses no
// internal locking; a multi-threaded host must serialize access itself.
type ShortageBoard struct {
	backend   repositories.ShortageBackend
	submitter *ReconciliationService
	overlay   *EditOverlay
	auditLog  events.EventStore

	snapshot      []*entities.ShortageRecord
	lastRefreshed time.Time
}

// NewShortageBoard creates a board over the given backend. The audit log is
// optional; pass nil to skip audit events.
func NewShortageBoard(backend repositories.ShortageBackend, auditLog events.EventStore) *ShortageBoard {
	return &ShortageBoard{
		backend:   backend,
		submitter: NewReconciliationService(backend),
		overlay:   NewEditOverlay(),
		auditLog:  auditLog,
	}
}

// Refresh replaces the snapshot with a fresh backend fetch. Pending overlay
// entries survive the refresh; only entries whose records disappeared from
// the new snapshot are dropped.
func (b *ShortageBoard) Refresh(ctx context.Context) error {
	records, err := b.backend.FetchShortages(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch shortages: %w", err)
	}

	b.snapshot = records
	b.lastRefreshed = time.Now()
	b.overlay.Prune(records)

	if b.auditLog != nil {
		event := events.NewSnapshotRefreshedEvent(len(records), b.overlay.Len())
		if err := b.auditLog.AppendEvent(events.ReconciliationStream, event); err != nil {
			return fmt.Errorf("failed to record refresh event: %w", err)
		}
	}
	return nil
}

// Groups derives the current reconciliation view: snapshot merged with the
// overlay, grouped by item.
func (b *ShortageBoard) Groups() []*entities.GroupedShortage {
	return Group(b.snapshot, b.overlay.Edits(), b.overlay.GroupInputs())
}

// Overlay exposes the pending edits, e.g. for rendering dirty markers.
func (b *ShortageBoard) Overlay() *EditOverlay {
	return b.overlay
}

// LastRefreshed reports when the snapshot was last fetched.
func (b *ShortageBoard) LastRefreshed() time.Time {
	return b.lastRefreshed
}

// SetStock records operator stock input against one record.
func (b *ShortageBoard) SetStock(recordID entities.RecordID, input string) {
	b.overlay.SetStock(recordID, input)
}

// SetPrice records operator price input against one record.
func (b *ShortageBoard) SetPrice(recordID entities.RecordID, input string) {
	b.overlay.SetPrice(recordID, input)
}

// SetGroupStock records an aggregate stock input against a grouped row and
// apportions it across the group's members.
func (b *ShortageBoard) SetGroupStock(key entities.GroupKey, input string) error {
	group, err := b.findGroup(key)
	if err != nil {
		return err
	}
	b.overlay.SetGroupStock(group, input)
	return nil
}

// SetGroupPrice records a corrected price against a grouped row, fanning it
// out to every member.
func (b *ShortageBoard) SetGroupPrice(key entities.GroupKey, input string) error {
	group, err := b.findGroup(key)
	if err != nil {
		return err
	}
	b.overlay.SetGroupPrice(group, input)
	return nil
}

// Submit issues all pending changes as one reconciliation batch, records
// the outcome in the audit log, and refreshes the snapshot when at least
// one bucket succeeded so resolved rows leave the working set.
func (b *ShortageBoard) Submit(ctx context.Context) (*SubmissionResult, error) {
	groups := b.Groups()

	resolved := make([]*entities.GroupedShortage, 0, len(groups))
	for _, group := range groups {
		if group.IsFullyResolved() && group.EffectiveUpdatedStock() > 0 {
			resolved = append(resolved, group)
		}
	}

	result, err := b.submitter.Submit(ctx, groups, b.overlay)
	if err != nil {
		return nil, fmt.Errorf("failed to submit reconciliation: %w", err)
	}

	if b.auditLog != nil {
		summary := events.ReconciliationSubmitted{
			BatchID:         result.BatchID.String(),
			Prices:          bucketSummary(result.Prices),
			GroupedStock:    bucketSummary(result.GroupedStock),
			IndividualStock: bucketSummary(result.IndividualStock),
			FullySucceeded:  result.Succeeded(),
		}
		event := events.NewReconciliationSubmittedEvent(summary)
		if appendErr := b.auditLog.AppendEvent(events.ReconciliationStream, event); appendErr != nil {
			return result, fmt.Errorf("failed to record submission event: %w", appendErr)
		}
		if result.GroupedStock.Failed == 0 && result.IndividualStock.Failed == 0 {
			for _, group := range resolved {
				resolvedEvent := events.NewShortageResolvedEvent(group.GroupKey, group.ItemName)
				if appendErr := b.auditLog.AppendEvent(events.ReconciliationStream, resolvedEvent); appendErr != nil {
					return result, fmt.Errorf("failed to record resolution event: %w", appendErr)
				}
			}
		}
	}

	if result.AnySucceeded() {
		if err := b.Refresh(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (b *ShortageBoard) findGroup(key entities.GroupKey) (*entities.GroupedShortage, error) {
	for _, group := range b.Groups() {
		if group.GroupKey == key {
			return group, nil
		}
	}
	return nil, fmt.Errorf("no shortage group with key %q", key)
}

func bucketSummary(outcome BucketOutcome) events.BucketSummary {
	return events.BucketSummary{
		Attempted: outcome.Attempted,
		Succeeded: outcome.Succeeded,
		Failed:    outcome.Failed,
	}
}
