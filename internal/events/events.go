// Package events publishes attendance record events to Kafka.
package events

import (
	"time"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
)

// DefaultTopic receives record.appended events unless configured otherwise.
const DefaultTopic = "attendance.records"

// TypeRecordAppended is the event type header value.
const TypeRecordAppended = "record.appended"

// RecordAppended is emitted after a record has been written to the backing store.
type RecordAppended struct {
	BadgeID    string    `json:"badge_id"`
	Sector     string    `json:"sector"`
	Tier       string    `json:"tier"`
	LeaderName string    `json:"leader_name"`
	Timestamp  string    `json:"timestamp"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version"`
}

const payloadVersion = "1"

func newRecordAppended(rec attendance.Record, now time.Time) RecordAppended {
	return RecordAppended{
		BadgeID:    rec.BadgeID,
		Sector:     rec.Sector,
		Tier:       rec.Tier,
		LeaderName: rec.LeaderName,
		Timestamp:  rec.Timestamp,
		OccurredAt: now.UTC(),
		Version:    payloadVersion,
	}
}
