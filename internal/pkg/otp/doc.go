// Package otp generates and checks time-based one-time passwords (TOTP,
// RFC 6238) with window awareness.
//
// Check reports the time-step (window id) a code matched so callers can
// enforce single use per window. Generate builds a fresh shared secret together
// with its otpauth:// provisioning URI and a QR code rendering of that URI.
package otp
