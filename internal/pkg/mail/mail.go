package mail

import (
	"context"
	"io"
)

// Inline is a file embedded in the HTML body and referenced as "cid:<Name>".
type Inline struct {
	Name string
	Data []byte
}

// Message represents an email payload.
type Message struct {
	// From is an optional explicit sender; the implementation default applies when empty.
	From     string
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
	Inlines  []Inline
}

// Mail abstracts an email provider.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
