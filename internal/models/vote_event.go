package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteEvent is an append-only record of every committed toggle. Unlike the
// ledger it keeps unlikes, so burst and device-reuse queries see every vote.
type VoteEvent struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	PostID          string    `gorm:"not null;index:idx_vote_events_post_created,priority:1" json:"post_id"`
	SessionID       string    `gorm:"not null;index" json:"session_id"`
	IPHash          string    `gorm:"not null;size:64" json:"ip_hash"`
	FingerprintHash string    `gorm:"not null;size:64;index:idx_vote_events_fingerprint_created,priority:1" json:"fingerprint_hash"`
	Liked           bool      `json:"liked"`
	CreatedAt       time.Time `gorm:"index:idx_vote_events_post_created,priority:2;index:idx_vote_events_fingerprint_created,priority:2" json:"created_at"`
}

// TableName specifies the table name
func (VoteEvent) TableName() string {
	return "vote_events"
}

// BeforeCreate assigns a UUID when the caller did not
func (e *VoteEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
