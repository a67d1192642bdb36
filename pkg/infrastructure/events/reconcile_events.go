package events

import (
	"github.com/opsdash/shortage/pkg/domain/entities"
)

const (
	SnapshotRefreshedEvent       = "snapshot.refreshed"
	ReconciliationSubmittedEvent = "reconciliation.submitted"
	ShortageResolvedEvent        = "shortage.resolved"
)

// ReconciliationStream is the single audit stream all submission events
// append to.
const ReconciliationStream = "reconciliation"

// BucketSummary is the audit view of one submission bucket.
type BucketSummary struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type ReconciliationSubmitted struct {
	BatchID         string        `json:"batch_id"`
	Prices          BucketSummary `json:"prices"`
	GroupedStock    BucketSummary `json:"grouped_stock"`
	IndividualStock BucketSummary `json:"individual_stock"`
	FullySucceeded  bool          `json:"fully_succeeded"`
}

type SnapshotRefreshed struct {
	RecordCount  int `json:"record_count"`
	PendingEdits int `json:"pending_edits"`
}

type ShortageResolved struct {
	GroupKey entities.GroupKey `json:"group_key"`
	ItemName string            `json:"item_name"`
}

func NewReconciliationSubmittedEvent(summary ReconciliationSubmitted) Event {
	return NewEvent(ReconciliationSubmittedEvent, ReconciliationStream, summary)
}

func NewSnapshotRefreshedEvent(recordCount, pendingEdits int) Event {
	return NewEvent(SnapshotRefreshedEvent, ReconciliationStream, SnapshotRefreshed{
		RecordCount:  recordCount,
		PendingEdits: pendingEdits,
	})
}

func NewShortageResolvedEvent(groupKey entities.GroupKey, itemName string) Event {
	return NewEvent(ShortageResolvedEvent, ReconciliationStream, ShortageResolved{
		GroupKey: groupKey,
		ItemName: itemName,
	})
}
