package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnonymousLike is one admitted like in the ledger. A (post, session) pair
// holds at most one row; a second admitted vote removes it.
type AnonymousLike struct {
	ID              string       `gorm:"primaryKey;type:uuid" json:"id"`
	PostID          string       `gorm:"not null;uniqueIndex:idx_anonymous_likes_post_session;index:idx_anonymous_likes_post_created,priority:1" json:"post_id"`
	SessionID       string       `gorm:"not null;uniqueIndex:idx_anonymous_likes_post_session" json:"session_id"`
	IPHash          string       `gorm:"not null;size:64" json:"-"`
	FingerprintHash string       `gorm:"not null;size:64;index" json:"-"`
	Metadata        VoteMetadata `gorm:"type:jsonb" json:"metadata"`
	CreatedAt       time.Time    `gorm:"index:idx_anonymous_likes_post_created,priority:2" json:"created_at"`
}

// TableName specifies the table name
func (AnonymousLike) TableName() string {
	return "anonymous_likes"
}

// BeforeCreate assigns a UUID when the caller did not
func (l *AnonymousLike) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// VoteMetadata records which checks a vote passed on its way in
type VoteMetadata struct {
	Timestamp             int64  `json:"timestamp"`
	ClientIP              string `json:"clientIp"`
	CaptchaVerified       bool   `json:"captchaVerified"`
	ProofOfWorkCompleted  bool   `json:"proofOfWorkCompleted"`
	TimeChallengeVerified bool   `json:"timeChallengeVerified"`
	BehaviorScore         int    `json:"behaviorScore"`
}

// Value implements the driver.Valuer interface for JSONB
func (m VoteMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for JSONB
func (m *VoteMetadata) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = VoteMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported vote metadata type %T", value)
	}
}
