package app

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/samber/lo"
	"github.com/segmentio/kafka-go"
	"github.com/shandysiswandi/otpreset/internal/pkg/clock"
	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/migration"
	"github.com/shandysiswandi/otpreset/internal/pkg/otp"
	"github.com/shandysiswandi/otpreset/internal/pkg/router"
	"github.com/shandysiswandi/otpreset/internal/pkg/scheduler"
	"github.com/shandysiswandi/otpreset/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
	"github.com/shandysiswandi/otpreset/internal/reset/outbound/db/migrations"
)

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "/config/config.yaml"
		if os.Getenv("LOCAL") == "true" {
			path = "./config/config.yaml"
		}
	}

	cfg, err := config.NewViper(path, defaults)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	//nolint:errcheck,gosec // ignore error
	os.Setenv("TZ", cfg.GetString("app.tz"))

	a.config = cfg
}

func (a *App) initInstrument() {
	ins, err := instrument.New(context.Background(), &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		LogLevel:         a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()
	a.token = uid.NewToken()
	a.goroutine = goroutine.NewManager(a.config.GetInt("app.server.max_goroutine"))
	a.hmac = hash.NewHMACSHA256(a.config.GetString("hash.hmac.secret"))
	a.argon2id = hash.NewArgon2id(a.config.GetString("hash.argon2id.pepper"))
	a.bcrypt = hash.NewBcrypt(a.config.GetInt("hash.bcrypt.cost"), a.config.GetString("hash.bcrypt.pepper"))

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow

	a.totp = otp.NewTOTP(
		a.config.GetString("otp.issuer"),
		a.config.GetUint("otp.skew"),
		a.config.GetInt("otp.secret_size"),
	)

	box, err := newSecretBox(a.config)
	if err != nil {
		slog.Error("failed to init secret box", "error", err)
		os.Exit(1)
	}
	a.secretBox = box
}

// newSecretBox reads crypto.secret_key as the current key and
// crypto.retired_keys ("<version>:<base64 key>") as keys that only open.
func newSecretBox(cfg config.Config) (*secretbox.AESGCM, error) {
	current := uint16(cfg.GetUint("crypto.key_version"))
	if current == 0 {
		current = 1
	}

	key, err := base64.StdEncoding.DecodeString(cfg.GetString("crypto.secret_key"))
	if err != nil {
		return nil, fmt.Errorf("decode crypto.secret_key: %w", err)
	}

	keys := map[uint16][]byte{current: key}
	for _, entry := range lo.Compact(lo.Map(cfg.GetArray("crypto.retired_keys"), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})) {
		rawVersion, rawKey, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, errors.New("crypto.retired_keys entries must be <version>:<base64 key>")
		}

		version, err := strconv.ParseUint(rawVersion, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("crypto.retired_keys version %q: %w", rawVersion, err)
		}
		if uint16(version) == current {
			return nil, fmt.Errorf("crypto.retired_keys repeats the current version %d", current)
		}

		k, err := base64.StdEncoding.DecodeString(rawKey)
		if err != nil {
			return nil, fmt.Errorf("decode crypto.retired_keys version %d: %w", version, err)
		}
		keys[uint16(version)] = k
	}

	return secretbox.NewAESGCM(current, keys)
}

func (a *App) initDatabase() {
	if !a.config.GetBool("database.enabled") {
		return
	}

	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = a.config.GetInt32("database.pool.max_conns")
	config.MinConns = a.config.GetInt32("database.pool.min_conns")
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
}

func (a *App) initMigration() {
	if a.dbConn == nil || !a.config.GetBool("database.migrate") {
		return
	}

	ctx, cancel := context.WithTimeout(a.ctx, time.Minute)
	defer cancel()

	if err := migration.Up(ctx, a.dbConn, migrations.FS); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrated")
}

func (a *App) initCache() {
	if !a.config.GetBool("redis.enabled") {
		a.idemp = idempotency.NewMemory(a.clock.Now)
		return
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
	a.idemp = idempotency.NewRedis(a.cacheConn)
}

func (a *App) initMail() {
	if strings.TrimSpace(a.config.GetString("mail.host")) == "" {
		return
	}

	mail, err := mail.NewSMTP(mail.SMTPConfig{
		Host:     a.config.GetString("mail.host"),
		Port:     a.config.GetInt("mail.port"),
		Username: a.config.GetString("mail.username"),
		Password: a.config.GetString("mail.password"),
		From:     a.config.GetString("mail.from"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	a.mail = mail
}

func (a *App) initMessaging() {
	driver := strings.TrimSpace(a.config.GetString("messaging.driver"))
	if driver == "" || driver == "none" {
		return
	}

	client, err := messaging.New(driver, messaging.FactoryOptions{
		Kafka: messaging.KafkaConfig{
			Brokers: a.config.GetArray("messaging.kafka.brokers"),
			Dialer: &kafka.Dialer{
				ClientID:  a.config.GetString("messaging.kafka.client_id"),
				Timeout:   a.config.GetSecond("messaging.kafka.dial_timeout_seconds"),
				DualStack: true,
			},
		},
		NATS: messaging.NATSConfig{
			URL: a.config.GetString("messaging.nats.url"),
			Options: []nats.Option{
				nats.Name(a.config.GetString("messaging.nats.name")),
				nats.MaxReconnects(a.config.GetInt("messaging.nats.max_reconnects")),
				nats.Timeout(a.config.GetSecond("messaging.nats.timeout_seconds")),
				nats.ReconnectWait(a.config.GetSecond("messaging.nats.reconnect_wait_seconds")),
				nats.PingInterval(a.config.GetSecond("messaging.nats.ping_interval_seconds")),
				nats.MaxPingsOutstanding(a.config.GetInt("messaging.nats.max_pings_outstanding")),
				nats.RetryOnFailedConnect(a.config.GetBool("messaging.nats.retry_on_failed_connect")),
			},
		},
	})
	if err != nil {
		slog.Error("failed to init messaging", "error", err, "driver", driver)
		os.Exit(1)
	}

	a.messaging = client
}

func (a *App) initScheduler() {
	s, err := scheduler.New(a.ctx)
	if err != nil {
		slog.Error("failed to init scheduler", "error", err)
		os.Exit(1)
	}
	a.scheduler = s
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		Config:     a.config,
		UUID:       a.uuid,
		Instrument: a.ins,
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Admin-Key", router.HeaderCorrelationID},
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              a.config.GetString("app.server.http.address"),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout_seconds"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.read_header_timeout_seconds"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout_seconds"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout_seconds"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Messaging",
			fn: func(context.Context) error {
				if a.messaging == nil {
					return nil
				}
				return a.messaging.Close()
			},
		},
		{
			name: "Mail",
			fn: func(context.Context) error {
				if a.mail == nil {
					return nil
				}
				return a.mail.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}
				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				if a.dbConn != nil {
					a.dbConn.Close()
				}

				return nil
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
