package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/draftline/draftline/internal/uuid"
	"github.com/draftline/draftline/provider"
	"github.com/draftline/draftline/redact"
)

// errorKind is the closed taxonomy of handler failures. Kinds are
// classification only; they never appear on the wire.
type errorKind int

const (
	errInvalidInput errorKind = iota
	errUnauthorized
	errRateLimited
	errUpstreamAuth
	errUpstreamUnavailable
	errUpstreamRateLimited
	errInternal
)

// Fixed client-visible strings. No dynamic interpolation of internal data
// is permitted anywhere in this set.
const (
	msgNotConnected    = "Not connected"
	msgSessionExpired  = "Session expired"
	msgSessionRequired = "Missing X-Session-ID header"
	msgRateLimited     = "Too many requests. Please retry later."
	msgUpstreamBusy    = "Provider rate limit exceeded. Please retry later."
	msgUpstreamDown    = "Provider is temporarily unavailable. Please retry later."
	msgReconnect       = "API key was rejected by the provider. Please reconnect."
	msgInternal        = "Internal server error"
	msgGenericFallback = "An error occurred"
)

// apiError is a first-class failure value carried from handlers to the
// HTTP edge, where it is translated into a status code and a fixed body.
type apiError struct {
	kind       errorKind
	detail     string
	retryAfter time.Duration
	cause      error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return e.detail
}

func invalidInput(detail string) *apiError {
	return &apiError{kind: errInvalidInput, detail: sanitizeMessage(detail)}
}

func notConnected() *apiError {
	return &apiError{kind: errUnauthorized, detail: msgNotConnected}
}

func sessionExpired() *apiError {
	return &apiError{kind: errUnauthorized, detail: msgSessionExpired}
}

func sessionRequired() *apiError {
	return &apiError{kind: errUnauthorized, detail: msgSessionRequired}
}

func rateLimited(retryAfter time.Duration) *apiError {
	return &apiError{kind: errRateLimited, detail: msgRateLimited, retryAfter: retryAfter}
}

func internalError(cause error) *apiError {
	return &apiError{kind: errInternal, detail: msgInternal, cause: cause}
}

// invalidKeyMessage is the fixed connect-rejection string per provider.
func invalidKeyMessage(tag provider.Tag) string {
	return fmt.Sprintf("Invalid API key. Please check your %s API key.", tag.DisplayName())
}

// classifyProviderError maps provider sentinel errors onto the taxonomy.
// A rejected key during connect is the caller's mistake (400); the same
// rejection during generation means a stored key went stale (401).
func classifyProviderError(err error, tag provider.Tag, connecting bool) *apiError {
	var rle *provider.RateLimitError
	switch {
	case errors.Is(err, provider.ErrAuth):
		if connecting {
			return &apiError{kind: errInvalidInput, detail: invalidKeyMessage(tag), cause: err}
		}
		return &apiError{kind: errUpstreamAuth, detail: msgReconnect, cause: err}
	case errors.As(err, &rle):
		return &apiError{
			kind:       errUpstreamRateLimited,
			detail:     msgUpstreamBusy,
			retryAfter: rle.RetryAfter,
			cause:      err,
		}
	case errors.Is(err, provider.ErrUnavailable):
		return &apiError{kind: errUpstreamUnavailable, detail: msgUpstreamDown, cause: err}
	default:
		return internalError(err)
	}
}

func (k errorKind) status() int {
	switch k {
	case errInvalidInput:
		return http.StatusBadRequest
	case errUnauthorized, errUpstreamAuth:
		return http.StatusUnauthorized
	case errRateLimited, errUpstreamRateLimited:
		return http.StatusTooManyRequests
	case errUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError translates an apiError into the wire response, emits the
// audit event, and for internal errors logs the sanitized cause under a
// fresh correlation ID that is echoed in the body.
func (a *API) writeAPIError(w http.ResponseWriter, r *http.Request, e *apiError) {
	if e.retryAfter > 0 {
		w.Header().Set("Retry-After", retryAfterString(e.retryAfter))
	} else if e.kind == errRateLimited || e.kind == errUpstreamRateLimited {
		w.Header().Set("Retry-After", "1")
	}

	sessionID := r.Header.Get(SessionHeader)

	if e.kind == errInternal {
		correlationID := uuid.New()
		cause := msgInternal
		if e.cause != nil {
			cause = sanitizeForLog(e.cause.Error())
		}
		a.logger.Error("internal error",
			"correlation_id", correlationID,
			"path", r.URL.Path,
			"error", cause)
		a.audit.log(AuditError, sessionID, auditFailure, map[string]any{
			"status":         http.StatusInternalServerError,
			"correlation_id": correlationID,
		})
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Detail:        msgInternal,
			CorrelationID: correlationID,
		})
		return
	}

	a.audit.log(AuditError, sessionID, auditFailure, map[string]any{
		"status": e.kind.status(),
		"detail": e.detail,
	})
	writeJSON(w, e.kind.status(), ErrorResponse{Detail: e.detail})
}

// retryAfterString renders a duration as whole seconds, rounded up.
func retryAfterString(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ---------------------------------------------------------------------------
// Message sanitization
// ---------------------------------------------------------------------------

var (
	// pathPattern matches runs of non-space characters containing a path
	// separator, e.g. /srv/app/x.py or C:\data\x.
	pathPattern = regexp.MustCompile(`\S*[/\\]\S+`)
	// hostPattern matches IPv4 addresses and dotted hostnames, with an
	// optional port.
	hostPattern = regexp.MustCompile(
		`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b` +
			`|\b[A-Za-z0-9-]+(?:\.[A-Za-z0-9-]+)+(?::\d+)?\b`)
	// unsafePattern flags internals that must never reach a client.
	unsafePattern = regexp.MustCompile(`Traceback|at 0x|line \d+`)
)

const maxClientMessageLen = 200

// sanitizeForLog strips key material, filesystem paths, and network
// addresses. Applied to everything written to server-side logs.
func sanitizeForLog(s string) string {
	s = redact.APIKeys(s)
	s = pathPattern.ReplaceAllString(s, redact.Placeholder)
	s = hostPattern.ReplaceAllString(s, redact.Placeholder)
	return s
}

// sanitizeMessage prepares a message for a client-visible response: the
// log sanitization plus truncation and a generic fallback for anything
// that still looks like an internal artifact.
func sanitizeMessage(s string) string {
	s = sanitizeForLog(s)
	if len(s) > maxClientMessageLen {
		cut := maxClientMessageLen
		// Never split a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	s = strings.TrimSpace(s)
	if s == "" || unsafePattern.MatchString(s) {
		return msgGenericFallback
	}
	return s
}

// decodeJSON reads and decodes a JSON request body, rejecting oversized
// or malformed payloads with a 400.
func decodeJSON[T any](a *API, w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		a.writeAPIError(w, r, invalidInput("Invalid JSON body"))
		return v, false
	}
	return v, true
}
