package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/otpreset/internal/notification"
	"github.com/shandysiswandi/otpreset/internal/reset"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.reset.enabled") {
		dep := reset.Dependency{
			DBConn:     a.dbConn,
			Mail:       a.mail,
			Scheduler:  a.scheduler,
			Router:     a.router,
			Config:     a.config,
			Instrument: a.ins,
			SecretBox:  a.secretBox,
			Totp:       a.totp,
			HMAC:       a.hmac,
			Bcrypt:     a.bcrypt,
			Argon2ID:   a.argon2id,
			UID:        a.uid,
			UUID:       a.uuid,
			Token:      a.token,
			Clock:      a.clock,
			Validator:  a.validator,
		}
		// Typed nils must not reach the optional interface fields.
		if a.cacheConn != nil {
			dep.CacheConn = a.cacheConn
		}
		if a.messaging != nil {
			dep.Messaging = a.messaging
		}

		if err := reset.New(dep); err != nil {
			slog.Error("failed to init module reset", "error", err)
			os.Exit(1)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if a.messaging == nil || a.mail == nil {
			slog.Error("failed to init module notification", "error", "messaging and mail must be configured")
			os.Exit(1)
		}

		if err := notification.New(notification.Dependency{
			Ctx:         a.ctx,
			Messaging:   a.messaging,
			Mail:        a.mail,
			Idempotency: a.idemp,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
		}); err != nil {
			slog.Error("failed to init module notification", "error", err)
			os.Exit(1)
		}
	}
}
