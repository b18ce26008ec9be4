package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/virajlab/nautifier/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedger stores ledger entries in the event_records table.
type GormLedger struct {
	db    *gorm.DB
	nowFn func() time.Time
}

type GormLedgerOptions struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewGormLedger(opts GormLedgerOptions) (*GormLedger, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("db is required")
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &GormLedger{db: opts.DB, nowFn: nowFn}, nil
}

func (l *GormLedger) TryCreate(ctx context.Context, eventID string) (bool, error) {
	eventID, err := validateEventID(eventID)
	if err != nil {
		return false, err
	}
	record := models.EventRecord{
		EventID:  eventID,
		Status:   string(StatusQueued),
		QueuedAt: l.nowFn().UTC().Unix(),
	}
	// ON CONFLICT DO NOTHING: exactly one concurrent caller inserts the row.
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (l *GormLedger) TryComplete(ctx context.Context, eventID string) (bool, error) {
	eventID, err := validateEventID(eventID)
	if err != nil {
		return false, err
	}
	now := l.nowFn().UTC().Unix()
	res := l.db.WithContext(ctx).
		Model(&models.EventRecord{}).
		Where("event_id = ? AND status = ?", eventID, string(StatusQueued)).
		Updates(map[string]any{
			"status":       string(StatusCompleted),
			"processed_at": now,
		})
	if res.Error != nil {
		return false, unavailable(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (l *GormLedger) Read(ctx context.Context, eventID string) (Entry, error) {
	eventID, err := validateEventID(eventID)
	if err != nil {
		return Entry{}, err
	}
	var record models.EventRecord
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, unavailable(err)
	}
	entry := Entry{
		EventID:  record.EventID,
		Status:   Status(record.Status),
		QueuedAt: time.Unix(record.QueuedAt, 0).UTC(),
	}
	if record.ProcessedAt != nil {
		processedAt := time.Unix(*record.ProcessedAt, 0).UTC()
		entry.ProcessedAt = &processedAt
	}
	return entry, nil
}

func (l *GormLedger) Delete(ctx context.Context, eventID string) error {
	eventID, err := validateEventID(eventID)
	if err != nil {
		return err
	}
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).Delete(&models.EventRecord{}).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// PruneCompleted deletes completed entries older than the retention window.
// Without it the ledger grows without bound.
func (l *GormLedger) PruneCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := l.nowFn().UTC().Add(-olderThan).Unix()
	res := l.db.WithContext(ctx).
		Where("status = ? AND processed_at IS NOT NULL AND processed_at < ?", string(StatusCompleted), cutoff).
		Delete(&models.EventRecord{})
	if res.Error != nil {
		return 0, unavailable(res.Error)
	}
	return res.RowsAffected, nil
}
