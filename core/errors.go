package core

import "errors"

var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrMalformedMessage   = errors.New("malformed sign-in message")
	ErrAddressMismatch    = errors.New("signer does not match message address")
	ErrMessageExpired     = errors.New("sign-in message has expired")
	ErrMessageNotYetValid = errors.New("sign-in message is not yet valid")
	ErrDomainMismatch     = errors.New("sign-in message domain mismatch")
	ErrInvalidAddress     = errors.New("invalid ethereum address")

	ErrNonceNotFound = errors.New("nonce not found")
	ErrNonceExpired  = errors.New("nonce has expired")
	ErrNonceMismatch = errors.New("nonce mismatch")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrDirectory         = errors.New("user directory failure")

	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)

var challengeErrors = []error{
	ErrInvalidSignature,
	ErrMalformedMessage,
	ErrAddressMismatch,
	ErrMessageExpired,
	ErrMessageNotYetValid,
	ErrDomainMismatch,
	ErrNonceNotFound,
	ErrNonceExpired,
	ErrNonceMismatch,
}

// IsChallengeError reports whether err is one of the failures produced while
// verifying a signed sign-in message.
func IsChallengeError(err error) bool {
	for _, target := range challengeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ChallengeReason returns a short label for a challenge failure, used for
// metrics and logs. Unknown errors map to "other".
func ChallengeReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, ErrMessageExpired):
		return "message_expired"
	case errors.Is(err, ErrMessageNotYetValid):
		return "message_not_yet_valid"
	case errors.Is(err, ErrDomainMismatch):
		return "domain_mismatch"
	case errors.Is(err, ErrNonceNotFound):
		return "nonce_not_found"
	case errors.Is(err, ErrNonceExpired):
		return "nonce_expired"
	case errors.Is(err, ErrNonceMismatch):
		return "nonce_mismatch"
	default:
		return "other"
	}
}
