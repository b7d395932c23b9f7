package auth

import "errors"

// Error taxonomy for the login flow. Verification-stage errors are never
// distinguished to the end user.
var (
	ErrConfigurationDisabled = errors.New("sso provider disabled")
	ErrInvalidSignature      = errors.New("invalid sso signature")
	ErrNonceRejected         = errors.New("sso nonce rejected")
	ErrMalformedPayload      = errors.New("malformed sso payload")
	ErrSessionInvalid        = errors.New("session invalid")
)

// IsVerificationError reports whether err came from verifying a provider callback.
func IsVerificationError(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrNonceRejected) ||
		errors.Is(err, ErrMalformedPayload)
}
