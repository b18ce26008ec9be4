package models

// EventRecord is one ledger row per Slack event id. Creation and the
// queued→completed transition are the only writes; both are conditional
// so concurrent deliveries cannot double-apply.
type EventRecord struct {
	EventID string `gorm:"primaryKey;type:text"`

	// queued|completed
	Status string `gorm:"type:text;not null;index"`

	// UTC unix seconds.
	QueuedAt    int64  `gorm:"not null"`
	ProcessedAt *int64 `gorm:""`

	CreatedAt int64 `gorm:"autoCreateTime"`
	UpdatedAt int64 `gorm:"autoUpdateTime"`
}

func (EventRecord) TableName() string { return "event_records" }
