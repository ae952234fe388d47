// Package seed fills a development database with plausible vote traffic.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/vibeai/backend/internal/fingerprint"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/models"
	"github.com/vibeai/backend/internal/repository"
	"github.com/vibeai/backend/internal/voting"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db    *gorm.DB
	likes repository.LikeRepository
	ip    *voting.IPHasher
	faker *gofakeit.Faker
}

// NewSeeder creates a seeder. A zero seed picks a random one.
func NewSeeder(db *gorm.DB, ipSalt string, seed uint64) *Seeder {
	return &Seeder{
		db:    db,
		likes: repository.NewLikeRepository(db),
		ip:    voting.NewIPHasher(ipSalt),
		faker: gofakeit.New(seed),
	}
}

// visitor is one simulated browser
type visitor struct {
	sessionID       string
	ip              string
	fingerprintHash string
}

func (s *Seeder) newVisitor() visitor {
	fp := fingerprint.DeviceFingerprint{
		UserAgent:           s.faker.UserAgent(),
		ScreenResolution:    fmt.Sprintf("%dx%d", s.faker.IntRange(800, 3840), s.faker.IntRange(600, 2160)),
		Timezone:            s.faker.TimeZoneRegion(),
		Language:            s.faker.LanguageAbbreviation(),
		Platform:            s.faker.RandomString([]string{"MacIntel", "Win32", "Linux x86_64", "iPhone"}),
		HardwareConcurrency: s.faker.RandomInt([]int{2, 4, 8, 16}),
		ColorDepth:          24,
		PixelRatio:          s.faker.Float64Range(1, 3),
	}
	return visitor{
		sessionID:       fmt.Sprintf("anon_%d_%s", s.faker.Date().UnixMilli(), s.faker.LetterN(9)),
		ip:              s.faker.IPv4Address(),
		fingerprintHash: fingerprint.Generate(fp),
	}
}

func (s *Seeder) vote(ctx context.Context, postID string, v visitor) error {
	ip := s.ip.Hash(v.ip)
	_, err := s.likes.ToggleLike(ctx, repository.LikeInput{
		PostID:          postID,
		SessionID:       v.sessionID,
		IPHash:          ip,
		FingerprintHash: v.fingerprintHash,
		Metadata: models.VoteMetadata{
			Timestamp:     time.Now().UnixMilli(),
			ClientIP:      voting.PartialIP(v.ip),
			BehaviorScore: s.faker.IntRange(0, 40),
		},
	})
	return err
}

// SeedDev creates posts liked by a population of organic visitors
func (s *Seeder) SeedDev(ctx context.Context, posts, visitors int) error {
	postIDs := make([]string, posts)
	for i := range postIDs {
		postIDs[i] = s.faker.UUID()
	}

	crowd := make([]visitor, visitors)
	for i := range crowd {
		crowd[i] = s.newVisitor()
	}

	total := 0
	for _, v := range crowd {
		n := s.faker.IntRange(1, max(1, posts/4))
		for i := 0; i < n; i++ {
			postID := postIDs[s.faker.IntRange(0, posts-1)]
			if err := s.vote(ctx, postID, v); err != nil {
				return fmt.Errorf("failed to seed vote: %w", err)
			}
			total++
		}
	}

	logger.Log.Info("Seeded organic votes",
		zap.Int("posts", posts),
		zap.Int("visitors", visitors),
		zap.Int("votes", total),
	)
	return nil
}

// SeedBurst simulates a coordinated attack on one post: many sessions from a
// handful of addresses in a short window. It returns the post id.
func (s *Seeder) SeedBurst(ctx context.Context, sessions, addresses int) (string, error) {
	postID := s.faker.UUID()

	ips := make([]string, max(1, addresses))
	for i := range ips {
		ips[i] = s.faker.IPv4Address()
	}

	for i := 0; i < sessions; i++ {
		v := s.newVisitor()
		v.ip = ips[i%len(ips)]
		if err := s.vote(ctx, postID, v); err != nil {
			return "", fmt.Errorf("failed to seed burst vote: %w", err)
		}
	}

	logger.Log.Info("Seeded vote burst",
		logger.WithPostID(postID),
		zap.Int("sessions", sessions),
		zap.Int("addresses", len(ips)),
	)
	return postID, nil
}

// Clean removes all likes and vote events
func (s *Seeder) Clean(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.VoteEvent{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.AnonymousLike{}).Error
	})
}
