package service

import (
	"errors"
	"fmt"
)

// ErrNoSlot is returned by the allocator when no valid slot exists inside the
// lookahead horizon. The post stays queued; the posting policy needs fixing.
var ErrNoSlot = errors.New("no free slot within lookahead horizon")

// CredentialError means a token refresh failed or the account was revoked.
// The account is flagged for manual re-linking and its posts are not advanced.
type CredentialError struct {
	AccountID int64
	Err       error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential for account %d is unusable: %v", e.AccountID, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// PlatformError is a classified response from a posting platform.
type PlatformError struct {
	StatusCode int
	Code       string
	Message    string
	Retryable  bool
}

func (e *PlatformError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable classifies a posting failure. Platform rejections carry their
// own classification; anything else (network, timeouts) is treated as
// transient.
func IsRetryable(err error) bool {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// retryableStatus maps HTTP status codes to the transient/permanent split:
// rate limits and server errors come back, content rejections do not.
func retryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}
