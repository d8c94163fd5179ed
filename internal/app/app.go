package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/otpreset/internal/pkg/clock"
	"github.com/shandysiswandi/otpreset/internal/pkg/config"
	"github.com/shandysiswandi/otpreset/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpreset/internal/pkg/hash"
	"github.com/shandysiswandi/otpreset/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
	"github.com/shandysiswandi/otpreset/internal/pkg/messaging"
	"github.com/shandysiswandi/otpreset/internal/pkg/otp"
	"github.com/shandysiswandi/otpreset/internal/pkg/router"
	"github.com/shandysiswandi/otpreset/internal/pkg/scheduler"
	"github.com/shandysiswandi/otpreset/internal/pkg/secretbox"
	"github.com/shandysiswandi/otpreset/internal/pkg/uid"
	"github.com/shandysiswandi/otpreset/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	argon2id  hash.Hash
	bcrypt    hash.Hash
	uid       uid.NumberID
	uuid      uid.StringID
	token     uid.StringID
	totp      otp.OTP
	secretBox secretbox.Box

	// resources, nil when disabled in config
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	messaging messaging.Messaging
	scheduler *scheduler.Scheduler

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initMigration()
	app.initCache()
	app.initMail()
	app.initMessaging()
	app.initScheduler()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
