package moderation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Rejection reasons. Never persisted, never broadcast.
var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrTooLong          = errors.New("message is too long")
	ErrBannedWord       = errors.New("message contains a banned word")
	ErrRepeatedCharSpam = errors.New("message contains repeated character spam")
)

const (
	// DefaultMaxLength is the maximum message length in code points.
	DefaultMaxLength = 1000

	// maxRepeatedRun is the longest allowed run of one character.
	maxRepeatedRun = 10
)

// DefaultDenylist is the built-in banned word list. Matching is
// whole-word and case-insensitive, so "mercedes" never trips "merde".
var DefaultDenylist = []string{
	"merde", "putain", "connard", "connasse", "salope", "encule",
	"pute", "batard", "fdp", "ntm",
	"fuck", "shit", "bitch", "asshole", "cunt",
}

var (
	tagRe     = regexp.MustCompile(`<[^>]*>`)
	schemeRe  = regexp.MustCompile(`(?i)(javascript|data|vbscript):`)
	handlerRe = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// Pipeline cleans and validates raw chat text. It is pure: no storage,
// no side effects.
type Pipeline struct {
	maxLength int
	denylist  map[string]struct{}
}

// NewPipeline creates a pipeline with the given limits. A nil denylist
// falls back to DefaultDenylist; maxLength <= 0 falls back to
// DefaultMaxLength.
func NewPipeline(maxLength int, denylist []string) *Pipeline {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if denylist == nil {
		denylist = DefaultDenylist
	}

	set := make(map[string]struct{}, len(denylist))
	for _, w := range denylist {
		set[strings.ToLower(w)] = struct{}{}
	}

	return &Pipeline{
		maxLength: maxLength,
		denylist:  set,
	}
}

// Sanitize cleans raw text and validates the result. It returns the
// cleaned text, or a rejection reason. Sanitize is idempotent:
// re-sanitizing its own output is a no-op.
func (p *Pipeline) Sanitize(raw string) (string, error) {
	text := stripControl(raw)
	text = stripToFixpoint(text, tagRe)
	text = stripToFixpoint(text, schemeRe)
	text = stripToFixpoint(text, handlerRe)
	text = escapeQuotes(text)
	text = strings.TrimSpace(text)

	if text == "" {
		return "", ErrEmptyMessage
	}
	if len([]rune(text)) > p.maxLength {
		return "", ErrTooLong
	}
	if p.containsBannedWord(text) {
		return "", ErrBannedWord
	}
	if hasRepeatedRun(text, maxRepeatedRun) {
		return "", ErrRepeatedCharSpam
	}

	return text, nil
}

// stripControl removes control characters in U+0000-U+001F and
// U+007F-U+009F.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r <= 0x1F || (r >= 0x7F && r <= 0x9F) {
			return -1
		}
		return r
	}, s)
}

// stripToFixpoint removes every match of re, repeating until the text
// stops changing so removal cannot reassemble a new match.
func stripToFixpoint(s string, re *regexp.Regexp) string {
	for {
		next := re.ReplaceAllString(s, "")
		if next == s {
			return next
		}
		s = next
	}
}

// escapeQuotes backslash-escapes quotes and bare backslashes so the
// text is safe to embed downstream. Already-escaped sequences are left
// alone, which keeps the pass idempotent.
func escapeQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\\':
			if i+1 < len(runes) && isEscapable(runes[i+1]) {
				// Existing escape pair, keep verbatim.
				b.WriteRune(r)
				b.WriteRune(runes[i+1])
				i++
			} else {
				b.WriteString(`\\`)
			}
		case '\'', '"':
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isEscapable(r rune) bool {
	return r == '\\' || r == '\'' || r == '"'
}

// containsBannedWord checks each whole word, case-insensitively,
// against the denylist.
func (p *Pipeline) containsBannedWord(s string) bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if _, banned := p.denylist[strings.ToLower(w)]; banned {
			return true
		}
	}
	return false
}

// hasRepeatedRun reports whether s contains a run of more than max
// consecutive identical runes.
func hasRepeatedRun(s string, max int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run > max {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}
