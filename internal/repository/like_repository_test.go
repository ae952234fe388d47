package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vibeai/backend/internal/database"
	"github.com/vibeai/backend/internal/models"
	"gorm.io/gorm"
)

type LikeRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo LikeRepository
	ctx  context.Context
}

func (s *LikeRepositoryTestSuite) SetupTest() {
	db, err := database.Open("sqlite", ":memory:")
	s.Require().NoError(err)
	s.Require().NoError(database.MigrateDB(db))
	s.db = db
	s.repo = NewLikeRepository(db)
	s.ctx = context.Background()
}

func (s *LikeRepositoryTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func input(post, session, ip, fp string) LikeInput {
	return LikeInput{PostID: post, SessionID: session, IPHash: ip, FingerprintHash: fp}
}

func (s *LikeRepositoryTestSuite) TestToggleLike() {
	liked, err := s.repo.ToggleLike(s.ctx, input("p1", "s1", "ip1", "fp1"))
	s.Require().NoError(err)
	s.True(liked)

	isLiked, err := s.repo.IsLiked(s.ctx, "p1", "s1")
	s.Require().NoError(err)
	s.True(isLiked)

	liked, err = s.repo.ToggleLike(s.ctx, input("p1", "s1", "ip1", "fp1"))
	s.Require().NoError(err)
	s.False(liked)

	count, err := s.repo.CountLikes(s.ctx, "p1")
	s.Require().NoError(err)
	s.Zero(count)

	var events int64
	s.Require().NoError(s.db.Model(&models.VoteEvent{}).Count(&events).Error)
	s.Equal(int64(2), events)
}

func (s *LikeRepositoryTestSuite) TestToggleLikeStoresMetadata() {
	in := input("p1", "s1", "ip1", "fp1")
	in.Metadata = models.VoteMetadata{ClientIP: "10.***", CaptchaVerified: true}
	_, err := s.repo.ToggleLike(s.ctx, in)
	s.Require().NoError(err)

	var row models.AnonymousLike
	s.Require().NoError(s.db.First(&row, "post_id = ?", "p1").Error)
	s.Equal("10.***", row.Metadata.ClientIP)
	s.True(row.Metadata.CaptchaVerified)
	s.NotEmpty(row.ID)
}

func (s *LikeRepositoryTestSuite) TestToggleLikeRejectsEmptyKeys() {
	_, err := s.repo.ToggleLike(s.ctx, input("", "s1", "", ""))
	s.ErrorIs(err, ErrInvalidInput)
}

func (s *LikeRepositoryTestSuite) TestCountLikesAcrossSessions() {
	for i := 0; i < 3; i++ {
		_, err := s.repo.ToggleLike(s.ctx, input("p1", fmt.Sprintf("s%d", i), "ip", "fp"))
		s.Require().NoError(err)
	}
	count, err := s.repo.CountLikes(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *LikeRepositoryTestSuite) TestDistinctSessionsForFingerprint() {
	n, err := s.repo.DistinctSessionsForFingerprint(s.ctx, "fp", time.Now().Add(-time.Minute))
	s.Require().NoError(err)
	s.Zero(n)

	for _, sess := range []string{"a", "b", "b", "current"} {
		_, err := s.repo.ToggleLike(s.ctx, input(fmt.Sprintf("post-%s", sess), sess, "ip", "fp"))
		s.Require().NoError(err)
	}
	s.Require().NoError(s.db.Create(&models.VoteEvent{
		PostID: "old", SessionID: "stale", IPHash: "ip", FingerprintHash: "fp",
		CreatedAt: time.Now().Add(-time.Hour),
	}).Error)

	n, err = s.repo.DistinctSessionsForFingerprint(s.ctx, "fp", time.Now().Add(-10*time.Minute))
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *LikeRepositoryTestSuite) TestRecentVoteStats() {
	for i := 0; i < 6; i++ {
		_, err := s.repo.ToggleLike(s.ctx, input("hot", fmt.Sprintf("s%d", i), fmt.Sprintf("ip%d", i%2), "fp"))
		s.Require().NoError(err)
	}
	s.Require().NoError(s.db.Create(&models.VoteEvent{
		PostID: "hot", SessionID: "old", IPHash: "ip9", FingerprintHash: "fp",
		CreatedAt: time.Now().Add(-time.Hour),
	}).Error)

	stats, err := s.repo.RecentVoteStats(s.ctx, "hot", time.Now().Add(-5*time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(6), stats.Votes)
	s.Equal(int64(2), stats.DistinctIPs)
}

func TestLikeRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(LikeRepositoryTestSuite))
}

func TestToggleLikeConcurrentSessions(t *testing.T) {
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db))
	repo := NewLikeRepository(db)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ToggleLike(context.Background(), input("p", fmt.Sprintf("s%d", i), "ip", "fp"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := repo.CountLikes(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, int64(20), count)
}
