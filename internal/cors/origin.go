package cors

import (
	"regexp"
	"strings"
)

// Origin describes which request origins a policy accepts.
// The concrete variants are Wildcard, Literal, AnyOf and Pattern.
type Origin interface {
	// Matches reports whether the request origin is accepted
	Matches(requestOrigin string) bool
	String() string

	origin()
}

// Wildcard accepts every origin
const Wildcard wildcard = "*"

type wildcard string

func (wildcard) Matches(string) bool { return true }
func (wildcard) String() string      { return "*" }
func (wildcard) origin()             {}

// Literal accepts a single origin, compared byte for byte.
// Literal("*") behaves like Wildcard.
type Literal string

func (l Literal) Matches(requestOrigin string) bool {
	return l == "*" || string(l) == requestOrigin
}

func (l Literal) String() string { return string(l) }
func (Literal) origin()          {}

// AnyOf accepts an origin when any of its members does
type AnyOf []Origin

// Matches checks each member in order
func (a AnyOf) Matches(requestOrigin string) bool {
	for _, o := range a {
		if o != nil && o.Matches(requestOrigin) {
			return true
		}
	}
	return false
}

func (a AnyOf) String() string {
	parts := make([]string, 0, len(a))
	for _, o := range a {
		if o != nil {
			parts = append(parts, o.String())
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (AnyOf) origin() {}

// Pattern accepts origins matched by a regular expression
type Pattern struct {
	expr string
	re   *regexp.Regexp
	err  error
}

// NewPattern compiles expr. A malformed expression yields a Pattern that
// matches nothing; the compile error is kept and reported by Err.
func NewPattern(expr string) Pattern {
	re, err := regexp.Compile(expr)
	return Pattern{expr: expr, re: re, err: err}
}

// PatternOf wraps an already compiled expression
func PatternOf(re *regexp.Regexp) Pattern {
	if re == nil {
		return Pattern{}
	}
	return Pattern{expr: re.String(), re: re}
}

// Matches reports whether the expression matches requestOrigin
func (p Pattern) Matches(requestOrigin string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(requestOrigin)
}

func (p Pattern) String() string { return "~" + p.expr }

// Err returns the compile error, if any
func (p Pattern) Err() error { return p.err }

func (Pattern) origin() {}

// IsOriginAllowed reports whether allowed accepts requestOrigin.
// A nil allowed origin accepts nothing.
func IsOriginAllowed(allowed Origin, requestOrigin string) bool {
	if allowed == nil {
		return false
	}
	return allowed.Matches(requestOrigin)
}

// PatternErrors collects the compile errors of every malformed pattern in o
func PatternErrors(o Origin) []error {
	var errs []error
	switch v := o.(type) {
	case Pattern:
		if v.err != nil {
			errs = append(errs, v.err)
		}
	case AnyOf:
		for _, member := range v {
			errs = append(errs, PatternErrors(member)...)
		}
	}
	return errs
}

func isWildcard(o Origin) bool {
	switch v := o.(type) {
	case wildcard:
		return true
	case Literal:
		return v == "*"
	}
	return false
}
