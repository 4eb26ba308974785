package etag_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/apiplane/internal/etag"
)

func TestFormatAndQuote(t *testing.T) {
	ts := time.UnixMilli(1718000000123)

	assert.Equal(t, "1718000000123", etag.Format(ts))
	assert.Equal(t, `"1718000000123"`, etag.Quote(etag.Format(ts)))
}

func TestCheck_NoHeader(t *testing.T) {
	assert.Equal(t, etag.NoOp, etag.Check("", "123"))
	assert.Equal(t, etag.NoOp, etag.Check("   ", "123"))
}

func TestCheck_Wildcard(t *testing.T) {
	for _, current := range []string{"123", "0", "anything"} {
		assert.Equal(t, etag.Proceed, etag.Check("*", current), "current=%s", current)
	}
}

func TestCheck_Matches(t *testing.T) {
	cases := map[string]string{
		"quoted":        `"123"`,
		"unquoted":      `123`,
		"list":          `"1", "123", "456"`,
		"gzip inside":   `"123-gzip"`,
		"gzip outside":  `"123"-gzip`,
		"list and gzip": `"9", "123-gzip"`,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, etag.Proceed, etag.Check(header, "123"))
		})
	}
}

func TestCheck_Mismatch(t *testing.T) {
	cases := []string{`"124"`, `"1", "2"`, `W/"123"`, `"12"`, `"1234"`}
	for _, header := range cases {
		assert.Equal(t, etag.PreconditionFailed, etag.Check(header, "123"), "header=%s", header)
	}
}

func TestCheck_MalformedIsLenientByDefault(t *testing.T) {
	for _, header := range []string{`"123`, `W/123`, `*, "123"`, `,`} {
		assert.Equal(t, etag.Proceed, etag.Check(header, "999"), "header=%s", header)
	}
}

func TestGuard_StrictRejectsMalformed(t *testing.T) {
	g := etag.Guard{Strict: true}

	outcome, err := g.Check(`"123`, "123")
	require.ErrorIs(t, err, etag.ErrMalformed)
	assert.Equal(t, etag.PreconditionFailed, outcome)

	outcome, err = g.Check(`"123"`, "123")
	require.NoError(t, err)
	assert.Equal(t, etag.Proceed, outcome)
}

func TestParse(t *testing.T) {
	tags, wildcard, err := etag.Parse(`W/"a", "b-gzip", c`)
	require.NoError(t, err)
	assert.False(t, wildcard)
	assert.Equal(t, []etag.Tag{
		{Value: "a", Weak: true},
		{Value: "b"},
		{Value: "c"},
	}, tags)

	_, wildcard, err = etag.Parse(" * ")
	require.NoError(t, err)
	assert.True(t, wildcard)
}

func TestCheck_CommaInsideQuotedTag(t *testing.T) {
	assert.Equal(t, etag.PreconditionFailed, etag.Check(`"a,b"`, "1792000000000"))
	assert.Equal(t, etag.Proceed, etag.Check(`"a,b", "123"`, "123"))

	tags, _, err := etag.Parse(`"a,b", c`)
	require.NoError(t, err)
	assert.Equal(t, []etag.Tag{{Value: "a,b"}, {Value: "c"}}, tags)
}
