// Package validate classifies raw search input as a name query or a report
// link.
package validate

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/artepuradesign/apipainellovable/internal/model"
)

// DefaultMinLength is the shortest name accepted for a search.
const DefaultMinLength = 5

// DefaultTrustedHosts are the report hosts a user may paste directly.
var DefaultTrustedHosts = []string{"pastebin.sbs", "pastebin.com"}

// Kind identifies why input was rejected.
type Kind string

const (
	KindEmpty    Kind = "empty"
	KindTooShort Kind = "too_short"
)

// ValidationError is returned for input that cannot be searched.
type ValidationError struct {
	Kind    Kind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches any ValidationError with the same Kind, so callers can use
// errors.Is(err, validate.ErrTooShort).
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrEmpty    = &ValidationError{Kind: KindEmpty, Message: "name is required"}
	ErrTooShort = &ValidationError{Kind: KindTooShort, Message: "name must have at least 5 characters"}
)

// Validator checks raw input. The zero value uses the defaults.
type Validator struct {
	TrustedHosts []string
	MinLength    int
}

// New returns a Validator with the given trusted hosts and minimum length.
// Empty or non-positive arguments fall back to the defaults.
func New(trustedHosts []string, minLength int) *Validator {
	return &Validator{TrustedHosts: trustedHosts, MinLength: minLength}
}

// Validate trims raw and classifies it. Input containing a trusted host is a
// manual link whatever its length.
func (v *Validator) Validate(raw string) (model.SearchQuery, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.SearchQuery{}, ErrEmpty
	}

	if v.isTrustedLink(s) {
		return model.SearchQuery{Kind: model.QueryManualLink, URL: s}, nil
	}

	minLen := v.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}
	if utf8.RuneCountInString(s) < minLen {
		if minLen == DefaultMinLength {
			return model.SearchQuery{}, ErrTooShort
		}
		return model.SearchQuery{}, &ValidationError{
			Kind:    KindTooShort,
			Message: "name must have at least " + strconv.Itoa(minLen) + " characters",
		}
	}

	return model.SearchQuery{Kind: model.QueryName, Text: s}, nil
}

func (v *Validator) isTrustedLink(s string) bool {
	hosts := v.TrustedHosts
	if len(hosts) == 0 {
		hosts = DefaultTrustedHosts
	}
	lower := strings.ToLower(s)
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && strings.Contains(lower, h) {
			return true
		}
	}
	return false
}
