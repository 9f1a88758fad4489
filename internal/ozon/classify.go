package ozon

import "strings"

// ErrorKind is the closed classification of a failed marketplace call, derived
// from the error text. The upstream API reports quota and permission failures
// inside payload text as often as in status codes, so classification works on
// the lower-cased message rather than the status alone. Keeping the substring
// tables here isolates the fragile matching to one spot.
type ErrorKind int

const (
	// ErrKindTransient covers network failures, 5xx responses and anything
	// not recognized below. Workers keep retrying on these.
	ErrKindTransient ErrorKind = iota
	// ErrKindQuota marks a provider-side daily cap. Workers stop gracefully.
	ErrKindQuota
	// ErrKindAccessDenied marks a credential or permission failure. Fatal
	// for the current run.
	ErrKindAccessDenied
)

// quotaKeywords match the provider's daily-limit wording, including the
// localized variants it actually emits.
var quotaKeywords = []string{
	"quota",
	"limit exceeded",
	"daily limit",
	"restore limit",
	"restore quota",
	"quota exceeded",
	"лимит",
	"дневной лимит",
	"превышен лимит",
	"лимит восстановления",
	"восстановление превышено",
}

// accessDeniedKeywords match permission failures, whether reported as a
// status code echoed into text or as a message.
var accessDeniedKeywords = []string{
	"403",
	"forbidden",
	"access denied",
	"доступ запрещён",
}

// ClassifyError maps an error message to its ErrorKind. Quota wins over
// access-denied when both match: the provider delivers daily-limit errors
// over 403 responses, and the transport echoes the status into the message,
// so a limit error routinely trips both tables. Treating it as quota keeps
// the run a graceful stop instead of a fatal credential failure.
func ClassifyError(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	if containsAny(lower, quotaKeywords) {
		return ErrKindQuota
	}
	if containsAny(lower, accessDeniedKeywords) {
		return ErrKindAccessDenied
	}
	return ErrKindTransient
}

// IsQuotaError reports whether msg matches the quota keyword table.
func IsQuotaError(msg string) bool {
	return containsAny(strings.ToLower(msg), quotaKeywords)
}

// IsAccessDeniedError reports whether msg matches the access-denied table.
func IsAccessDeniedError(msg string) bool {
	return containsAny(strings.ToLower(msg), accessDeniedKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
