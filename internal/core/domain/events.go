package domain

// Event topics published by the ledger. A deployment prefix may be prepended.
const (
	TopicEntryCreated  = "ledger.entry.created"
	TopicEntryUpdated  = "ledger.entry.updated"
	TopicEntryDeleted  = "ledger.entry.deleted"
	TopicEntryPosted   = "ledger.entry.posted"
	TopicBatchComplete = "ledger.batch.processed"
	TopicStatusChanged = "ledger.status.changed"
)

// EntryEvent is the payload of every ledger.entry.* topic.
type EntryEvent struct {
	EntryID     string      `json:"entryID"`
	EntryNumber string      `json:"entryNumber"`
	Status      EntryStatus `json:"status"`
	EntryDate   string      `json:"entryDate"`
	Reference   string      `json:"reference,omitempty"`
}

// StatusChangedEvent is published when an entry moves between statuses outside of posting.
type StatusChangedEvent struct {
	EntryID        string      `json:"entryID"`
	PreviousStatus EntryStatus `json:"previousStatus"`
	Status         EntryStatus `json:"status"`
	RelatedEntryID string      `json:"relatedEntryID,omitempty"`
}
