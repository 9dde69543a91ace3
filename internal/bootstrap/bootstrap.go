// Package bootstrap is the composition root shared by the api, scheduler and
// plumbctl binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plumbing_backend/internal/adapters/storage"
	"plumbing_backend/internal/ai"
	"plumbing_backend/internal/auth"
	"plumbing_backend/internal/booking"
	"plumbing_backend/internal/customerlookup"
	"plumbing_backend/internal/email"
	"plumbing_backend/internal/emailprefs"
	"plumbing_backend/internal/events"
	apphttp "plumbing_backend/internal/http"
	"plumbing_backend/internal/notification"
	"plumbing_backend/internal/notification/sms"
	"plumbing_backend/internal/nurture"
	"plumbing_backend/internal/referrals"
	"plumbing_backend/internal/reviews"
	"plumbing_backend/internal/scheduler"
	"plumbing_backend/internal/servicetitan"
	"plumbing_backend/internal/settings"
	"plumbing_backend/internal/vouchers"
	"plumbing_backend/platform/config"
	"plumbing_backend/platform/db"
	"plumbing_backend/platform/logger"
	"plumbing_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Container holds every initialized module.
type Container struct {
	Config *config.Config
	Log    *logger.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Bus    *events.InMemoryBus

	Auth           *auth.Module
	Settings       *settings.Module
	EmailPrefs     *emailprefs.Module
	CustomerLookup *customerlookup.Module
	Vouchers       *vouchers.Module
	Referrals      *referrals.Module
	Booking        *booking.Module
	Nurture        *nurture.Module
	Reviews        *reviews.Module
	Notification   *notification.Module
}

// Options tunes Build for the calling binary.
type Options struct {
	// Migrate applies pending migrations before connecting.
	Migrate bool
}

// Build connects to the database and wires every module.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*Container, error) {
	if opts.Migrate {
		if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg)
		}); err != nil {
			return nil, fmt.Errorf("run database migrations: %w", err)
		}
		log.Info("database migrations complete")
	}

	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("database connection established")

	rdb, err := db.NewRedis(ctx, cfg)
	switch {
	case errors.Is(err, db.ErrRedisNotConfigured):
		log.Warn("REDIS_URL not configured; review cache and job queue disabled")
	case err != nil:
		log.Warn("redis unavailable; review cache disabled", "error", err)
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize email sender: %w", err)
	}

	store := initStorage(ctx, cfg, log)

	c := &Container{
		Config: cfg,
		Log:    log,
		Pool:   pool,
		Redis:  rdb,
		Bus:    events.NewInMemoryBus(log),
	}
	val := validator.New()
	crm := servicetitan.NewClient(cfg, log)
	if crm == nil {
		log.Warn("ServiceTitan not configured; booking and CRM lookup disabled")
	}

	c.Auth = auth.NewModule(pool, cfg, val, log)
	c.Settings = settings.NewModule(pool, val)
	c.EmailPrefs = emailprefs.NewModule(pool, cfg, log)
	c.CustomerLookup = customerlookup.NewModule(pool, crm, store, cfg.GetMinioBucketCustomerImports(), val, log)
	c.Vouchers = vouchers.NewModule(pool, c.Bus, cfg.GetPublicBaseURL(), val, log)
	c.Referrals = referrals.NewModule(pool, c.Vouchers.Service(), c.Settings.Service(), c.Bus, cfg, val, log)
	c.Booking = booking.NewModule(pool, crm, c.Referrals.Service(), c.Bus, cfg.GetReferralCookieName(), val, log)
	c.Nurture = nurture.NewModule(pool, c.Settings.Service(), c.EmailPrefs.Service(), sender,
		ai.NewClient(cfg, log), cfg.GetResendWebhookSecret(), val, log)
	c.Reviews = reviews.NewModule(pool, cfg, rdb, c.CustomerLookup.Service(), c.Nurture.Service(), c.Bus, val, log)

	smsSender := sms.NewSender(cfg)
	if !smsSender.Configured() {
		log.Info("Twilio not configured; credit texts disabled")
	}
	c.Notification = notification.New(sender, smsSender, c.CustomerLookup.Contacts(), c.Settings.Service(), cfg.GetPublicBaseURL(), log)

	c.Notification.RegisterHandlers(c.Bus)
	c.Nurture.RegisterHandlers(c.Bus)

	return c, nil
}

// HTTPModules lists the modules that serve routes.
func (c *Container) HTTPModules() []apphttp.Module {
	return []apphttp.Module{
		c.Auth,
		c.Settings,
		c.EmailPrefs,
		c.CustomerLookup,
		c.Vouchers,
		c.Referrals,
		c.Booking,
		c.Nurture,
		c.Reviews,
	}
}

// Jobs returns the recurring work run by the scheduler.
func (c *Container) Jobs() *scheduler.Jobs {
	return &scheduler.Jobs{
		Nurture: c.Nurture.Service(),
		Reviews: c.Reviews.Service(),
		Log:     c.Log,
	}
}

// Close waits for in-flight event handlers and releases connections.
func (c *Container) Close() {
	c.Bus.Wait()
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	c.Pool.Close()
}

func initStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.StorageService {
	if !cfg.IsMinIOEnabled() {
		log.Info("MinIO not configured; customer imports are not archived")
		return nil
	}
	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Warn("failed to initialize storage service", "error", err)
		return nil
	}
	bucket := cfg.GetMinioBucketCustomerImports()
	if err := WithRetry(ctx, log, "ensure customer-imports bucket", 3, 2*time.Second, func() error {
		return svc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Warn("customer import bucket unavailable", "error", err, "bucket", bucket)
		return nil
	}
	log.Info("storage service initialized", "customerImportsBucket", bucket)
	return svc
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
