package memory

import (
	"context"
	"strings"
)

// StaticDirectory is an account directory backed by a fixed list.
type StaticDirectory struct {
	accounts map[string]struct{}
}

func NewStaticDirectory(accounts ...string) *StaticDirectory {
	d := &StaticDirectory{accounts: make(map[string]struct{}, len(accounts))}
	for _, a := range accounts {
		if a = strings.TrimSpace(strings.ToLower(a)); a != "" {
			d.accounts[a] = struct{}{}
		}
	}
	return d
}

func (d *StaticDirectory) Exists(_ context.Context, account string) (bool, error) {
	_, ok := d.accounts[account]
	return ok, nil
}
