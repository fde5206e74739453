package models

import "errors"

// Errors propagated up to user-facing code. Everything else is logged and
// handled internally per the poll and clip retry policies.
var (
	// ErrDownloadBlocked indicates the upstream refused to serve the
	// download. ErrRateLimited and ErrDownloadForbidden wrap it, so
	// errors.Is(err, ErrDownloadBlocked) matches all three.
	ErrDownloadBlocked = errors.New("download blocked by upstream")

	// ErrRateLimited indicates a temporary upstream rate limit (HTTP 429).
	ErrRateLimited = wrapped{"rate limited", ErrDownloadBlocked}

	// ErrDownloadForbidden indicates a policy refusal (HTTP 403). A watcher
	// receiving it stops permanently for that target.
	ErrDownloadForbidden = wrapped{"download forbidden", ErrDownloadBlocked}

	// ErrDownloadCacheMissing indicates the requested time range is in no
	// cache and cannot be fetched, e.g. a finalized VOD is unavailable.
	ErrDownloadCacheMissing = errors.New("requested range is not cached and cannot be downloaded")

	// ErrOutOfTimeRange indicates a valid range the platform's VOD boundary
	// precludes.
	ErrOutOfTimeRange = errors.New("requested range is outside the available time range")

	// ErrStreamNotLegal indicates the requested stream was never captured in
	// this chat channel and is not currently registered.
	ErrStreamNotLegal = errors.New("stream is not registered or captured in this channel")
)

// wrapped is a sentinel that unwraps to a parent sentinel.
type wrapped struct {
	msg    string
	parent error
}

func (w wrapped) Error() string { return w.msg }
func (w wrapped) Unwrap() error { return w.parent }
