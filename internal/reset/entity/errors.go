package entity

import "github.com/shandysiswandi/otpreset/internal/pkg/goerror"

// Error kinds surfaced to clients in the error_kind field.
const (
	KindAccountNotFound    = "AccountNotFound"
	KindInvalidCode        = "InvalidCode"
	KindAlreadyUsed        = "AlreadyUsed"
	KindRateLimited        = "RateLimited"
	KindSessionExpired     = "SessionExpired"
	KindWeakPassword       = "WeakPassword"
	KindApplierFailure     = "ApplierFailure"
	KindDeliveryFailure    = "DeliveryFailure"
	KindSessionNotFound    = "SessionNotFound"
	KindSessionNotVerified = "SessionNotVerified"
	KindSessionCompleted   = "SessionCompleted"
	KindContactInUse       = "ContactInUse"
)

var (
	ErrAccountNotFound    = goerror.NewKind(KindAccountNotFound, "Account not found", goerror.CodeNotFound)
	ErrInvalidCode        = goerror.NewKind(KindInvalidCode, "Invalid verification code", goerror.CodeUnauthorized)
	ErrAlreadyUsed        = goerror.NewKind(KindAlreadyUsed, "Verification code already used", goerror.CodeConflict)
	ErrRateLimited        = goerror.NewKind(KindRateLimited, "Too many attempts, try again later", goerror.CodeTooManyRequest)
	ErrSessionExpired     = goerror.NewKind(KindSessionExpired, "Reset session expired, verify a new code", goerror.CodeGone)
	ErrWeakPassword       = goerror.NewKind(KindWeakPassword, "Password must be at least 8 characters and at most 72 bytes", goerror.CodeInvalidInput)
	ErrApplierFailure     = goerror.NewKind(KindApplierFailure, "New password could not be applied, try again", goerror.CodeBadGateway)
	ErrDeliveryFailure    = goerror.NewKind(KindDeliveryFailure, "Provisioning payload could not be delivered", goerror.CodeBadGateway)
	ErrSessionNotFound    = goerror.NewKind(KindSessionNotFound, "Reset session not found", goerror.CodeNotFound)
	ErrSessionNotVerified = goerror.NewKind(KindSessionNotVerified, "Reset session is not verified", goerror.CodeConflict)
	ErrSessionCompleted   = goerror.NewKind(KindSessionCompleted, "Reset session already completed", goerror.CodeGone)
	ErrContactInUse       = goerror.NewKind(KindContactInUse, "Email already bound to another account", goerror.CodeConflict)
)
