// Package mailtpl renders the emails shared by the modules that send mail.
package mailtpl

import (
	"bytes"
	"errors"
	"html/template"
	"text/tabwriter"

	"github.com/shandysiswandi/otpreset/internal/pkg/mail"
)

// QRCodeName is the inline file name the HTML body references as cid:.
const QRCodeName = "provisioning-qr.png"

var ErrContactRequired = errors.New("mailtpl: contact is required")

// Provisioning is the data of an authenticator provisioning email.
type Provisioning struct {
	Account   string
	Contact   string
	Issuer    string
	Secret    string
	URI       string
	QRCodePNG []byte
	Digits    int
	Period    int
	Algorithm string
}

var provisioningHTML = template.Must(template.New("provisioning").Parse(`<!doctype html>
<html>
<body style="font-family: sans-serif">
<p>Hello {{.Account}},</p>
<p>Your account has been enrolled for password reset with a one-time code.
Scan the QR code below with your authenticator app.</p>
{{if .HasQR}}<p><img src="cid:{{.QRName}}" alt="Provisioning QR code" width="256" height="256"></p>{{end}}
<p>If you cannot scan it, add the account manually:</p>
<table>
<tr><td>Issuer</td><td><code>{{.Issuer}}</code></td></tr>
<tr><td>Account</td><td><code>{{.Account}}</code></td></tr>
<tr><td>Secret</td><td><code>{{.Secret}}</code></td></tr>
<tr><td>Type</td><td>time based, {{.Digits}} digits, every {{.Period}} seconds, {{.Algorithm}}</td></tr>
</table>
<p>If you did not request this, contact your administrator. Any earlier
authenticator entry for this account no longer works.</p>
</body>
</html>`))

// ProvisioningMessage renders the provisioning email for p.
func ProvisioningMessage(p Provisioning) (mail.Message, error) {
	if p.Contact == "" {
		return mail.Message{}, ErrContactRequired
	}

	var html bytes.Buffer
	err := provisioningHTML.Execute(&html, struct {
		Provisioning
		HasQR  bool
		QRName string
	}{Provisioning: p, HasQR: len(p.QRCodePNG) > 0, QRName: QRCodeName})
	if err != nil {
		return mail.Message{}, err
	}

	var text bytes.Buffer
	tw := tabwriter.NewWriter(&text, 0, 4, 2, ' ', 0)
	_, _ = tw.Write([]byte("Hello " + p.Account + ",\n\n"))
	_, _ = tw.Write([]byte("Add this account to your authenticator app:\n\n"))
	_, _ = tw.Write([]byte("Issuer\t" + p.Issuer + "\n"))
	_, _ = tw.Write([]byte("Account\t" + p.Account + "\n"))
	_, _ = tw.Write([]byte("Secret\t" + p.Secret + "\n"))
	_, _ = tw.Write([]byte("URI\t" + p.URI + "\n"))
	if err := tw.Flush(); err != nil {
		return mail.Message{}, err
	}

	msg := mail.Message{
		To:       []string{p.Contact},
		Subject:  p.Issuer + ": authenticator setup for " + p.Account,
		TextBody: text.String(),
		HTMLBody: html.String(),
	}
	if len(p.QRCodePNG) > 0 {
		msg.Inlines = []mail.Inline{{Name: QRCodeName, Data: p.QRCodePNG}}
	}

	return msg, nil
}
