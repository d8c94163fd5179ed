// Package system binds the reset core to the local operating system: the
// account directory is the user database and the credential applier is
// chpasswd.
package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"github.com/shandysiswandi/otpreset/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
)

// ErrInvalidPassword is returned for input chpasswd cannot carry.
var ErrInvalidPassword = errors.New("system: account or password contains a forbidden character")

// Directory looks accounts up in the system user database. Accounts below
// minUID are system accounts and never eligible.
type Directory struct {
	minUID int
	lookup func(name string) (*user.User, error)
	ins    instrument.Instrumentation
}

func NewDirectory(minUID int, ins instrument.Instrumentation) *Directory {
	return &Directory{minUID: minUID, lookup: user.Lookup, ins: ins}
}

func (d *Directory) Exists(ctx context.Context, account string) (bool, error) {
	_, span := d.ins.Tracer("reset.outbound.system").Start(ctx, "Exists")
	defer span.End()

	u, err := d.lookup(account)
	var unknown user.UnknownUserError
	if errors.As(err, &unknown) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return false, nil
	}

	return uid >= d.minUID, nil
}

type runner func(ctx context.Context, stdin []byte, name string, args ...string) error

func runCommand(ctx context.Context, stdin []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Applier sets the password of a system account with chpasswd. The password
// is written to the command's stdin and never appears in its arguments.
type Applier struct {
	command string
	run     runner
	ins     instrument.Instrumentation
}

func NewApplier(command string, ins instrument.Instrumentation) *Applier {
	if command == "" {
		command = "chpasswd"
	}
	return &Applier{command: command, run: runCommand, ins: ins}
}

func (a *Applier) Apply(ctx context.Context, account, newPassword string) error {
	ctx, span := a.ins.Tracer("reset.outbound.system").Start(ctx, "Apply")
	defer span.End()

	if strings.ContainsAny(newPassword, "\r\n") || strings.ContainsAny(account, ":\r\n") {
		return ErrInvalidPassword
	}

	if err := a.run(ctx, []byte(account+":"+newPassword+"\n"), a.command); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
