package entity

import "time"

// Enrollment binds a sealed TOTP shared secret to an account.
type Enrollment struct {
	Account    string
	Contact    string
	Secret     []byte // sealed with the key of KeyVersion
	KeyVersion uint16
	Digits     int
	Period     int
	Algorithm  string
	EnrolledAt time.Time
}

// ProvisioningPayload is everything an authenticator app needs to add the
// account. It leaves the core only through the delivery boundary.
type ProvisioningPayload struct {
	Account   string
	Contact   string
	Issuer    string
	Secret    string // base32, no padding
	URI       string // otpauth://totp/...
	QRCodePNG []byte
	Digits    int
	Period    int
	Algorithm string
}
