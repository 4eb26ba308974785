// Package etag evaluates If-Match preconditions against an entity's
// concurrency token.
//
// Tokens are the decimal epoch milliseconds of the entity's last update and
// travel as strong entity tags. Some intermediaries append "-gzip" to tags
// they compressed; that suffix is removed before comparison.
package etag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Outcome is the verdict of a precondition check.
type Outcome int

const (
	// NoOp means no precondition was supplied.
	NoOp Outcome = iota
	// Proceed means the precondition holds.
	Proceed
	// PreconditionFailed means none of the supplied tags match.
	PreconditionFailed
)

func (o Outcome) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Proceed:
		return "proceed"
	case PreconditionFailed:
		return "precondition_failed"
	default:
		return "unknown"
	}
}

const gzipSuffix = "-gzip"

// ErrMalformed is returned when an If-Match header cannot be parsed.
var ErrMalformed = errors.New("malformed entity tag list")

// Tag is a parsed entity tag.
type Tag struct {
	Value string
	Weak  bool
}

// Format returns the concurrency token of an entity last updated at t.
func Format(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// Quote renders a token as a strong entity tag header value.
func Quote(token string) string {
	return `"` + token + `"`
}

// Parse splits an If-Match header into entity tags. It reports wildcard
// when the list is "*".
func Parse(header string) (tags []Tag, wildcard bool, err error) {
	header = strings.TrimSpace(header)
	if header == "*" {
		return nil, true, nil
	}

	for _, raw := range splitList(header) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if raw == "*" {
			// "*" is only valid on its own.
			return nil, false, fmt.Errorf("%w: wildcard mixed with tags", ErrMalformed)
		}

		tag, err := parseTag(raw)
		if err != nil {
			return nil, false, err
		}
		tags = append(tags, tag)
	}

	if len(tags) == 0 {
		return nil, false, fmt.Errorf("%w: no tags", ErrMalformed)
	}
	return tags, false, nil
}

// splitList splits a comma separated tag list. Commas inside quotes belong
// to the opaque tag.
func splitList(header string) []string {
	var (
		parts    []string
		start    int
		inQuotes bool
	)
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				parts = append(parts, header[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, header[start:])
}

func parseTag(raw string) (Tag, error) {
	var tag Tag
	if strings.HasPrefix(raw, "W/") {
		tag.Weak = true
		raw = raw[2:]
	}

	// Proxies append the suffix either inside or after the quotes.
	raw = strings.TrimSuffix(raw, gzipSuffix)

	switch {
	case strings.HasPrefix(raw, `"`):
		if len(raw) < 2 || !strings.HasSuffix(raw, `"`) {
			return Tag{}, fmt.Errorf("%w: unterminated tag %s", ErrMalformed, raw)
		}
		raw = raw[1 : len(raw)-1]
	case tag.Weak:
		return Tag{}, fmt.Errorf("%w: weak tag must be quoted", ErrMalformed)
	}

	raw = strings.TrimSuffix(raw, gzipSuffix)
	if raw == "" || strings.ContainsAny(raw, `" `) {
		return Tag{}, fmt.Errorf("%w: invalid tag %q", ErrMalformed, raw)
	}

	tag.Value = raw
	return tag, nil
}

// Guard evaluates If-Match headers.
type Guard struct {
	// Strict makes unparsable headers an error instead of being ignored.
	Strict bool
}

// Check compares the supplied If-Match header to the current token.
//
// An unparsable header yields Proceed, or ErrMalformed when the guard is strict.
// Weak tags never match: If-Match uses strong comparison.
func (g Guard) Check(supplied, current string) (Outcome, error) {
	if strings.TrimSpace(supplied) == "" {
		return NoOp, nil
	}

	tags, wildcard, err := Parse(supplied)
	if err != nil {
		if g.Strict {
			return PreconditionFailed, err
		}
		return Proceed, nil
	}
	if wildcard {
		return Proceed, nil
	}

	for _, tag := range tags {
		if !tag.Weak && tag.Value == current {
			return Proceed, nil
		}
	}
	return PreconditionFailed, nil
}

// Check runs a lenient Guard.
func Check(supplied, current string) Outcome {
	outcome, _ := Guard{}.Check(supplied, current)
	return outcome
}
