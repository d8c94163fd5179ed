package uid

import (
	"errors"
	"hash/fnv"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ErrNodeIdentityUnavailable indicates no stable node identity is available.
var ErrNodeIdentityUnavailable = errors.New("uid: cannot determine node identity (machine-id/hostname unavailable)")

// Snowflake generates time-ordered 63-bit identifiers.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a generator for the given node (0-1023). A negative
// node derives one from /etc/machine-id or the hostname.
func NewSnowflake(node int64) (*Snowflake, error) {
	if node < 0 {
		n, err := nodeFromHost()
		if err != nil {
			return nil, err
		}
		node = n
	}

	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: n}, nil
}

// Generate returns a new identifier.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

func nodeFromHost() (int64, error) {
	src := ""
	if b, err := os.ReadFile("/etc/machine-id"); err == nil {
		src = strings.TrimSpace(string(b))
	}

	if src == "" {
		if h, err := os.Hostname(); err == nil {
			src = strings.TrimSpace(h)
		}
	}

	if src == "" {
		return 0, ErrNodeIdentityUnavailable
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(src))

	return int64(h.Sum32() % 1024), nil
}
