// Package mail defines the contract for sending email and an SMTP
// implementation backed by gomail.
package mail
