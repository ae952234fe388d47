package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibeai/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// LikeInput is everything needed to toggle one like
type LikeInput struct {
	PostID          string
	SessionID       string
	IPHash          string
	FingerprintHash string
	Metadata        models.VoteMetadata
}

// VoteStats summarizes recent votes on a post
type VoteStats struct {
	Votes       int64 `gorm:"column:votes"`
	DistinctIPs int64 `gorm:"column:distinct_ips"`
}

// LikeRepository handles the like ledger and the vote event log
type LikeRepository interface {
	// ToggleLike removes the (post, session) like if present, otherwise adds it.
	// It returns the resulting state.
	ToggleLike(ctx context.Context, in LikeInput) (bool, error)
	IsLiked(ctx context.Context, postID, sessionID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int64, error)

	// DistinctSessionsForFingerprint counts sessions that voted from the
	// device since the given time
	DistinctSessionsForFingerprint(ctx context.Context, fingerprintHash string, since time.Time) (int, error)
	RecentVoteStats(ctx context.Context, postID string, since time.Time) (VoteStats, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) ToggleLike(ctx context.Context, in LikeInput) (bool, error) {
	if in.PostID == "" || in.SessionID == "" {
		return false, ErrInvalidInput
	}

	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND session_id = ?", in.PostID, in.SessionID).
			Delete(&models.AnonymousLike{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			like := models.AnonymousLike{
				PostID:          in.PostID,
				SessionID:       in.SessionID,
				IPHash:          in.IPHash,
				FingerprintHash: in.FingerprintHash,
				Metadata:        in.Metadata,
			}
			// a concurrent insert for the same pair wins; the state is liked either way
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
			liked = true
		}

		return tx.Create(&models.VoteEvent{
			PostID:          in.PostID,
			SessionID:       in.SessionID,
			IPHash:          in.IPHash,
			FingerprintHash: in.FingerprintHash,
			Liked:           liked,
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to toggle like: %w", err)
	}
	return liked, nil
}

func (r *likeRepository) IsLiked(ctx context.Context, postID, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AnonymousLike{}).
		Where("post_id = ? AND session_id = ?", postID, sessionID).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) CountLikes(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AnonymousLike{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

func (r *likeRepository) DistinctSessionsForFingerprint(ctx context.Context, fingerprintHash string, since time.Time) (int, error) {
	var sessions int64
	err := r.db.WithContext(ctx).
		Model(&models.VoteEvent{}).
		Where("fingerprint_hash = ? AND created_at >= ?", fingerprintHash, since.UTC()).
		Distinct("session_id").
		Count(&sessions).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count fingerprint sessions: %w", err)
	}
	return int(sessions), nil
}

func (r *likeRepository) RecentVoteStats(ctx context.Context, postID string, since time.Time) (VoteStats, error) {
	var stats VoteStats
	err := r.db.WithContext(ctx).
		Model(&models.VoteEvent{}).
		Select("COUNT(*) AS votes, COUNT(DISTINCT ip_hash) AS distinct_ips").
		Where("post_id = ? AND created_at >= ?", postID, since.UTC()).
		Scan(&stats).Error
	if err != nil {
		return VoteStats{}, fmt.Errorf("failed to load vote stats: %w", err)
	}
	return stats, nil
}
