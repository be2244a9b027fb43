package client

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// ErrorKind partitions upstream failures by how callers should react:
// transient failures may be retried, bad requests need different inputs,
// and quota/forbidden failures mean the key is exhausted or rejected.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindBadRequest
	KindQuotaOrForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindQuotaOrForbidden:
		return "quota_or_forbidden"
	default:
		return "transient"
	}
}

// quotaReasons are the upstream error reasons that indicate the API key has
// run out of budget rather than the request being malformed.
var quotaReasons = map[string]bool{
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
}

// UpstreamError wraps a failed upstream call with its classification.
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int
	Reason     string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("upstream %s (status %d, reason %s): %v", e.Kind, e.StatusCode, e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// classifyError maps an error returned by the YouTube Data API into an
// UpstreamError. HTTP 403 and quota-style reasons become quota/forbidden,
// any other 4xx becomes bad request, everything else is transient.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &UpstreamError{Kind: KindTransient, Err: err}
	}

	reason := ""
	if len(gerr.Errors) > 0 {
		reason = gerr.Errors[0].Reason
	}

	kind := KindTransient
	switch {
	case gerr.Code == 403 || quotaReasons[reason]:
		kind = KindQuotaOrForbidden
	case gerr.Code >= 400 && gerr.Code < 500:
		kind = KindBadRequest
	}
	return &UpstreamError{Kind: kind, StatusCode: gerr.Code, Reason: reason, Err: err}
}

// IsQuotaOrForbidden reports whether err is an exhausted-quota or forbidden
// upstream failure.
func IsQuotaOrForbidden(err error) bool {
	var uerr *UpstreamError
	return errors.As(err, &uerr) && uerr.Kind == KindQuotaOrForbidden
}

// IsBadRequest reports whether err is an upstream rejection of the request
// parameters.
func IsBadRequest(err error) bool {
	var uerr *UpstreamError
	return errors.As(err, &uerr) && uerr.Kind == KindBadRequest
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var uerr *UpstreamError
	return errors.As(err, &uerr) && uerr.Kind == KindTransient
}
