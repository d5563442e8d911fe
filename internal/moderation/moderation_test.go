package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsControlCharacters(t *testing.T) {
	p := NewPipeline(0, nil)

	out, err := p.Sanitize("hello\x00\x1fworld\x7f")
	require.NoError(t, err)
	assert.Equal(t, "helloworld", out)
}

func TestSanitizeStripsTags(t *testing.T) {
	p := NewPipeline(0, nil)

	out, err := p.Sanitize(`hey <script>alert(1)</script> there`)
	require.NoError(t, err)
	assert.Equal(t, "hey alert(1) there", out)
}

func TestSanitizeStripsDangerousSchemes(t *testing.T) {
	p := NewPipeline(0, nil)

	for _, raw := range []string{
		"click javascript:doEvil()",
		"click JAVASCRIPT:doEvil()",
		"click data:text/html",
		"click vbscript:doEvil()",
	} {
		out, err := p.Sanitize(raw)
		require.NoError(t, err, raw)
		assert.NotContains(t, strings.ToLower(out), "javascript:")
		assert.NotContains(t, strings.ToLower(out), "data:")
		assert.NotContains(t, strings.ToLower(out), "vbscript:")
	}
}

func TestSanitizeStripsEventHandlers(t *testing.T) {
	p := NewPipeline(0, nil)

	out, err := p.Sanitize(`img onerror= x onclick = y`)
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(out), "onerror")
	assert.NotContains(t, strings.ToLower(out), "onclick")
}

func TestSanitizeEscapesQuotesAndBackslashes(t *testing.T) {
	p := NewPipeline(0, nil)

	out, err := p.Sanitize(`it's a "test" \path`)
	require.NoError(t, err)
	assert.Equal(t, `it\'s a \"test\" \\path`, out)
}

func TestSanitizeRejectsWhitespaceOnly(t *testing.T) {
	p := NewPipeline(0, nil)

	_, err := p.Sanitize("   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSanitizeRejectsEmptyAfterCleaning(t *testing.T) {
	p := NewPipeline(0, nil)

	_, err := p.Sanitize("<b></b>")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSanitizeRejectsTooLong(t *testing.T) {
	p := NewPipeline(0, nil)

	_, err := p.Sanitize(strings.Repeat("ab", 501))
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestSanitizeBannedWordWholeWordOnly(t *testing.T) {
	p := NewPipeline(0, nil)

	_, err := p.Sanitize("tu es merde toi")
	assert.ErrorIs(t, err, ErrBannedWord)

	// Same letters inside a longer word must pass.
	out, err := p.Sanitize("je conduis une mercedes")
	require.NoError(t, err)
	assert.Equal(t, "je conduis une mercedes", out)
}

func TestSanitizeBannedWordCaseInsensitive(t *testing.T) {
	p := NewPipeline(0, nil)

	_, err := p.Sanitize("quelle MeRdE")
	assert.ErrorIs(t, err, ErrBannedWord)
}

func TestSanitizeRejectsRepeatedCharacterSpam(t *testing.T) {
	p := NewPipeline(0, nil)

	_, err := p.Sanitize("spam" + strings.Repeat("a", 11))
	assert.ErrorIs(t, err, ErrRepeatedCharSpam)

	// Exactly ten in a row is allowed.
	out, err := p.Sanitize("ok" + strings.Repeat("a", 10))
	require.NoError(t, err)
	assert.Equal(t, "ok"+strings.Repeat("a", 10), out)
}

func TestSanitizeIsIdempotent(t *testing.T) {
	p := NewPipeline(0, nil)

	inputs := []string{
		"plain message",
		`it's a "quoted" \message`,
		"tags <b>bold</b> stripped",
		"nested <<b>tags>",
		"handler onclick=x onclick=onclick=y",
		"  padded  ",
		`déjà vu, ça va ?`,
	}

	for _, raw := range inputs {
		first, err := p.Sanitize(raw)
		require.NoError(t, err, raw)

		second, err := p.Sanitize(first)
		require.NoError(t, err, raw)
		assert.Equal(t, first, second, "sanitize must be idempotent for %q", raw)
	}
}

func TestSanitizeCustomDenylist(t *testing.T) {
	p := NewPipeline(0, []string{"widget"})

	_, err := p.Sanitize("buy my widget now")
	assert.ErrorIs(t, err, ErrBannedWord)

	out, err := p.Sanitize("tu es merde toi")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
