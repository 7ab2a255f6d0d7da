package mapping

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	"github.com/SscSPs/fare_collection_app/internal/models"
)

// TimeLayout is the text form of timestamps in the queue store.
const TimeLayout = time.RFC3339Nano

// FormatTime renders t in the queue store's text form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ToModelQueueEntry converts a domain QueueEntry to a model QueueEntry
func ToModelQueueEntry(d domain.QueueEntry) (models.QueueEntry, error) {
	payload, err := json.Marshal(d.Payload)
	if err != nil {
		return models.QueueEntry{}, fmt.Errorf("encode queue payload: %w", err)
	}
	m := models.QueueEntry{
		Sequence:      d.Sequence,
		EntryID:       d.EntryID,
		OperationType: string(d.OperationType),
		Payload:       string(payload),
		Attempts:      d.Attempts,
		LastAttempt:   nullTime(d.LastAttempt),
		NextAttemptAt: nullTime(d.NextAttemptAt),
		Status:        string(d.Status),
		FailureKind:   string(d.FailureKind),
		LastError:     d.LastError,
		CreatedAt:     FormatTime(d.CreatedAt),
	}
	if d.Conflict != nil {
		conflict, err := json.Marshal(d.Conflict)
		if err != nil {
			return models.QueueEntry{}, fmt.Errorf("encode queue conflict: %w", err)
		}
		m.Conflict = sql.NullString{String: string(conflict), Valid: true}
	}
	return m, nil
}

// ToDomainQueueEntry converts a model QueueEntry to a domain QueueEntry
func ToDomainQueueEntry(m models.QueueEntry) (domain.QueueEntry, error) {
	d := domain.QueueEntry{
		EntryID:       m.EntryID,
		Sequence:      m.Sequence,
		OperationType: domain.OperationType(m.OperationType),
		Attempts:      m.Attempts,
		Status:        domain.QueueStatus(m.Status),
		FailureKind:   domain.FailureKind(m.FailureKind),
		LastError:     m.LastError,
	}
	if err := json.Unmarshal([]byte(m.Payload), &d.Payload); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("decode payload of queue entry %s: %w", m.EntryID, err)
	}
	if m.Conflict.Valid {
		d.Conflict = &domain.ReplayConflict{}
		if err := json.Unmarshal([]byte(m.Conflict.String), d.Conflict); err != nil {
			return domain.QueueEntry{}, fmt.Errorf("decode conflict of queue entry %s: %w", m.EntryID, err)
		}
	}

	var err error
	if d.CreatedAt, err = time.Parse(TimeLayout, m.CreatedAt); err != nil {
		return domain.QueueEntry{}, fmt.Errorf("parse created_at of queue entry %s: %w", m.EntryID, err)
	}
	if d.LastAttempt, err = parseNullTime(m.LastAttempt); err != nil {
		return domain.QueueEntry{}, err
	}
	if d.NextAttemptAt, err = parseNullTime(m.NextAttemptAt); err != nil {
		return domain.QueueEntry{}, err
	}
	return d, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse queue timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
