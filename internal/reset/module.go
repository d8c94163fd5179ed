package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/shandysiswandi/otpreset/internal/pkg/clock"
	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/lock"
	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/otp"
	"github.com/shandysiswandi/otpreset/internal/pkg/router"
	"github.com/shandysiswandi/otpreset/internal/pkg/scheduler"
	"github.com/shandysiswandi/otpreset/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
	"github.com/shandysiswandi/otpreset/internal/reset/entity"
	"github.com/shandysiswandi/otpreset/internal/reset/inbound"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/cache"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/db"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/email"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/logsink"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/memory"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/mq"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/system"
	"github.com/shandysiswandi/otpreset/internal/reset/usecase"
)

// Driver names read from modules.reset.*.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverSystem   = "system"
	DriverDB       = "db"
	DriverStatic   = "static"
	DriverEmail    = "email"
	DriverMQ       = "mq"
	DriverLog      = "log"
)

var (
	// ErrUnknownDriver is returned for an unsupported modules.reset driver.
	ErrUnknownDriver = errors.New("reset: unknown driver")
	// ErrMissingResource is returned when a driver needs a resource that is not configured.
	ErrMissingResource = errors.New("reset: driver needs a resource that is not configured")
)

// Dependency carries the shared resources of the reset module. DBConn,
// CacheConn, Messaging, Mail and Scheduler are optional; the configured
// drivers decide which of them are needed.
type Dependency struct {
	DBConn    *pgxpool.Pool
	CacheConn redis.UniversalClient
	Messaging messaging.Publisher
	Mail      mail.Mail
	Scheduler *scheduler.Scheduler

	Router     *router.Router             `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	SecretBox  secretbox.Box              `validate:"required"`
	Totp       otp.OTP                    `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	Bcrypt     hash.Hash                  `validate:"required"`
	Argon2ID   hash.Hash                  `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	Token      uid.StringID               `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	cfg := dep.Config
	policy := entity.LedgerPolicy{
		Limit:      cfg.GetInt("modules.reset.attempt_limit"),
		Window:     cfg.GetMinute("modules.reset.attempt_window_minutes"),
		ConsumeTTL: otp.Period * time.Second * time.Duration(2*dep.totpSkew()+2),
	}
	if policy.Limit <= 0 {
		policy.Limit = 5
	}
	if policy.Window <= 0 {
		policy.Window = time.Hour
	}

	var sweepers []memory.Sweeper

	ucDep := usecase.Dependency{
		SecretBox:  dep.SecretBox,
		Totp:       dep.Totp,
		HMAC:       dep.HMAC,
		UID:        dep.UID,
		Token:      dep.Token,
		Validator:  dep.Validator,
		Config:     cfg,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
		Pings:      map[string]usecase.PingFunc{},
	}

	var dbRepo *db.DB
	if dep.DBConn != nil {
		dbRepo = db.NewDB(dep.DBConn, dep.Instrument)
		ucDep.Pings["database"] = dep.DBConn.Ping
	}
	if dep.CacheConn != nil {
		ucDep.Pings["redis"] = func(ctx context.Context) error { return dep.CacheConn.Ping(ctx).Err() }
		ucDep.Idempotency = idempotency.NewRedis(dep.CacheConn)
	} else {
		idemp := idempotency.NewMemory(dep.Clock.Now)
		ucDep.Idempotency = idemp
		sweepers = append(sweepers, idemp)
	}

	switch driver := driverOf(cfg, "modules.reset.store", DriverMemory); driver {
	case DriverMemory:
		ledger := memory.NewLedger(policy)
		sessions := memory.NewSessionStore(dep.Clock.Now)
		ucDep.Ledger, ucDep.Sessions = ledger, sessions
		ucDep.Locker = lock.NewMemory()
		sweepers = append(sweepers, ledger, sessions)
	case DriverRedis:
		if dep.CacheConn == nil {
			return fmt.Errorf("%w: store %q needs redis", ErrMissingResource, driver)
		}
		c := cache.NewCache(dep.CacheConn, dep.Instrument)
		ucDep.Ledger, ucDep.Sessions = cache.NewLedger(c, policy), cache.NewSessionStore(c)
		ucDep.Locker = lock.NewRedis(dep.CacheConn, cfg.GetSecond("modules.reset.lock_ttl_seconds"))
	default:
		return fmt.Errorf("%w: store %q", ErrUnknownDriver, driver)
	}

	switch driver := driverOf(cfg, "modules.reset.secret_store", DriverMemory); driver {
	case DriverMemory:
		ucDep.Secrets = memory.NewSecretStore()
	case DriverPostgres:
		if dbRepo == nil {
			return fmt.Errorf("%w: secret_store %q needs the database", ErrMissingResource, driver)
		}
		ucDep.Secrets = dbRepo
	default:
		return fmt.Errorf("%w: secret_store %q", ErrUnknownDriver, driver)
	}

	switch driver := driverOf(cfg, "modules.reset.directory", DriverSystem); driver {
	case DriverSystem:
		ucDep.Directory = system.NewDirectory(cfg.GetInt("modules.reset.directory_min_uid"), dep.Instrument)
	case DriverDB:
		if dbRepo == nil {
			return fmt.Errorf("%w: directory %q needs the database", ErrMissingResource, driver)
		}
		ucDep.Directory = dbRepo
	case DriverStatic:
		ucDep.Directory = memory.NewStaticDirectory(cfg.GetArray("modules.reset.directory_static")...)
	default:
		return fmt.Errorf("%w: directory %q", ErrUnknownDriver, driver)
	}

	switch driver := driverOf(cfg, "modules.reset.applier", DriverSystem); driver {
	case DriverSystem:
		ucDep.Applier = system.NewApplier(cfg.GetString("modules.reset.applier_command"), dep.Instrument)
	case DriverDB:
		if dbRepo == nil {
			return fmt.Errorf("%w: applier %q needs the database", ErrMissingResource, driver)
		}
		hasher := dep.Argon2ID
		if driverOf(cfg, "modules.reset.applier_db_hasher", "argon2id") == "bcrypt" {
			hasher = dep.Bcrypt
		}
		if l, ok := hasher.(hash.Limiter); ok {
			ucDep.MaxPasswordBytes = l.MaxInputBytes()
		}
		ucDep.Applier = db.NewCredentialApplier(dbRepo, hasher)
	default:
		return fmt.Errorf("%w: applier %q", ErrUnknownDriver, driver)
	}

	switch driver := driverOf(cfg, "modules.reset.delivery", DriverLog); driver {
	case DriverEmail:
		if dep.Mail == nil {
			return fmt.Errorf("%w: delivery %q needs mail", ErrMissingResource, driver)
		}
		ucDep.Delivery = email.New(dep.Mail, dep.Instrument)
	case DriverMQ:
		if dep.Messaging == nil {
			return fmt.Errorf("%w: delivery %q needs messaging", ErrMissingResource, driver)
		}
		ucDep.Delivery = mq.NewMessaging(dep.Messaging, dep.UUID, dep.Instrument)
	case DriverLog:
		ucDep.Delivery = logsink.New()
	default:
		return fmt.Errorf("%w: delivery %q", ErrUnknownDriver, driver)
	}

	if _, ok := ucDep.Secrets.(*memory.SecretStore); ok {
		slog.Warn("reset secrets are kept in memory and are lost on restart")
	}

	if len(sweepers) > 0 && dep.Scheduler != nil {
		interval := cfg.GetSecond("modules.reset.sweep_interval_seconds")
		if interval <= 0 {
			interval = time.Minute
		}

		if err := dep.Scheduler.Every("reset.memory_sweep", interval, func(ctx context.Context) error {
			if n := memory.SweepAll(dep.Clock.Now(), sweepers...); n > 0 {
				slog.DebugContext(ctx, "reset memory stores swept", "removed", n)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("reset: schedule memory sweep: %w", err)
		}
	}

	uc := usecase.New(ucDep)

	inbound.RegisterHTTPEndpoint(dep.Router, uc, cfg.GetString("modules.reset.admin_key"))

	slog.Info("reset module initialized",
		"store", driverOf(cfg, "modules.reset.store", DriverMemory),
		"secret_store", driverOf(cfg, "modules.reset.secret_store", DriverMemory),
		"directory", driverOf(cfg, "modules.reset.directory", DriverSystem),
		"applier", driverOf(cfg, "modules.reset.applier", DriverSystem),
		"delivery", driverOf(cfg, "modules.reset.delivery", DriverLog),
		"health_checks", lo.Keys(ucDep.Pings),
	)

	return nil
}

func (dep Dependency) totpSkew() uint {
	if t, ok := dep.Totp.(interface{ Skew() uint }); ok {
		return t.Skew()
	}
	return 1
}

func driverOf(cfg config.Config, key, fallback string) string {
	if v := strings.ToLower(strings.TrimSpace(cfg.GetString(key))); v != "" {
		return v
	}
	return fallback
}
