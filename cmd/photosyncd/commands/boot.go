package commands

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/photosync/backend/internal/api"
	"github.com/photosync/backend/internal/api/handlers"
	"github.com/photosync/backend/internal/classicstore"
	"github.com/photosync/backend/internal/cloudstore"
	"github.com/photosync/backend/internal/cloudstore/chunkstore"
	"github.com/photosync/backend/internal/cloudstore/chunkstore/fs"
	"github.com/photosync/backend/internal/cloudstore/chunkstore/s3"
	"github.com/photosync/backend/internal/config"
	"github.com/photosync/backend/internal/credentials"
	"github.com/photosync/backend/internal/dbmodel"
	"github.com/photosync/backend/internal/logger"
	"github.com/photosync/backend/internal/pathlayout"
	"github.com/photosync/backend/internal/quota"
	"github.com/photosync/backend/internal/ratelimit"
	"github.com/photosync/backend/internal/subscription"
	"github.com/photosync/backend/internal/workers"
)

// app bundles every dependency a subcommand might need, built once from the
// environment. Not every subcommand uses every field.
type app struct {
	cfg    *config.Config
	layout *pathlayout.Layout
	db     *gorm.DB

	creds     *credentials.Store
	tokens    *credentials.TokenService
	resolver  *subscription.Resolver
	quota     *quota.Manager
	mirror    *s3.Mirror
	chunks    *cloudstore.ChunkHandler
	manifests *cloudstore.ManifestStore
	devices   *cloudstore.DeviceStateStore
	classic   *classicstore.Store

	scheduler *workers.Scheduler
}

// loadConfig reads and validates configuration and initializes the
// structured logger, common to every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"}); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, nil
}

// bootstrap builds every store and handler the HTTP server and the
// background workers share, grounded on the teacher's runStart wiring in
// cmd/dittofs/commands/start.go (load config, build registry, wire
// dependents in dependency order).
func bootstrap(cfg *config.Config) (*app, error) {
	layout, err := pathlayout.Resolve(pathlayout.ResolveOptions{
		DataDir:          cfg.PhotoSyncDataDir,
		UploadDir:        cfg.UploadDir,
		DBPath:           cfg.DBPath,
		CloudDir:         cfg.CloudDir,
		CapacityJSONPath: cfg.CapacityJSONPath,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve data layout: %w", err)
	}

	db, err := dbmodel.Open(layout.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, layout: layout, db: db}

	a.creds = credentials.NewStore(db, cfg.BcryptRounds, cfg.TrialDays)
	a.tokens = credentials.NewTokenService(cfg.JWTSecret)
	a.resolver = subscription.NewResolver(db, cfg.SubscriptionGraceDays)

	a.quota = quota.NewManager(a.committedUsage, cfg.UserQuotaMarginBytes.Int64())

	var mirror chunkMirrorIface
	if cfg.S3MirrorEnabled {
		client, err := s3.NewClient(context.Background(), s3.Config{
			Endpoint:        cfg.S3MirrorEndpoint,
			Region:          cfg.S3MirrorRegion,
			Bucket:          cfg.S3MirrorBucket,
			AccessKeyID:     cfg.S3MirrorAccessKey,
			SecretAccessKey: cfg.S3MirrorSecretKey,
			ForcePathStyle:  cfg.S3MirrorForcePath,
			QueueSize:       cfg.S3MirrorQueueSize,
		})
		if err != nil {
			return nil, fmt.Errorf("build S3 mirror client: %w", err)
		}
		a.mirror = s3.NewMirror(client, cfg.S3MirrorBucket, cfg.S3MirrorQueueSize)
		mirror = a.mirror
		logger.Info("S3 chunk mirror enabled", "bucket", cfg.S3MirrorBucket, "region", cfg.S3MirrorRegion)
	}

	var chunkStore chunkstore.Store = fs.New(layout.CloudUsersDir())
	a.chunks = cloudstore.NewChunkHandler(db, chunkStore, mirror, a.quota)
	a.manifests = cloudstore.NewManifestStore(layout.CloudUsersDir())
	a.devices = cloudstore.NewDeviceStateStore(db)
	a.classic = classicstore.NewStore(db, layout.UploadDir)

	capacity := workers.NewCapacityReporter(db, layout.CloudDir, layout.CapacityJSONPath, cfg.UserQuotaMarginBytes.Int64())
	sweeper := workers.NewSweeper(db, a.chunks, a.manifests, a.devices, layout.CloudUsersDir())
	reconciler := workers.NewReconciler(db, layout.CloudUsersDir())
	a.scheduler = workers.NewScheduler(capacity, sweeper, reconciler)

	return a, nil
}

// chunkMirrorIface mirrors cloudstore's unexported chunkMirror interface so
// bootstrap can pass either a real *s3.Mirror or nil without importing an
// unexported type.
type chunkMirrorIface interface {
	Enqueue(tenantKey, chunkID string, data []byte)
}

// committedUsage sums the stored chunk sizes for a user, the quota.UsageFunc
// cloudstore.ChunkHandler's quota.Manager calls on every reservation.
func (a *app) committedUsage(userID uint) (int64, error) {
	var total int64
	err := a.db.Model(&dbmodel.CloudChunk{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}

// planGB resolves a user's current plan size for quota reservation.
func (a *app) planGB(userID uint) (int, error) {
	resolved, err := a.resolver.Resolve(userID)
	if err != nil {
		return 0, err
	}
	return resolved.PlanGB, nil
}

// router builds the full HTTP handler tree.
func (a *app) router() *api.Deps {
	authLimiter := ratelimit.New(
		time.Duration(a.cfg.AuthRateLimitWindowMS)*time.Millisecond,
		a.cfg.AuthRateLimitMax,
	)

	deliveryLog := subscription.NewDeliveryLog(100)

	return &api.Deps{
		Tokens:        a.tokens,
		Resolver:      a.resolver,
		AuthRateLimit: authLimiter,
		Auth:          handlers.NewAuthHandler(a.creds, a.tokens),
		Subscription: handlers.NewSubscriptionHandler(
			a.resolver,
			subscription.NewWebhookHandler(a.db, deliveryLog),
			deliveryLog,
			a.cfg.RevenueCatWebhookSecret,
		),
		Usage:    handlers.NewUsageHandler(a.db, a.resolver, a.cfg.UserQuotaMarginBytes.Int64(), a.layout.Root),
		Classic:  handlers.NewClassicHandler(a.classic),
		Cloud:    handlers.NewCloudHandler(a.chunks, a.manifests, a.devices, a.planGB),
		Capacity: handlers.NewCapacityHandler(a.layout.CapacityJSONPath),
	}
}
