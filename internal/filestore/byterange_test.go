package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangeFirstFiveBytes(t *testing.T) {
	r, ok := ParseRange("bytes=0-4", 11)
	require.True(t, ok)

	assert.Equal(t, int64(0), r.Start)
	assert.Equal(t, int64(5), r.End)
	assert.True(t, r.Satisfiable())
	assert.Equal(t, int64(5), r.Length())
	assert.Equal(t, "bytes 0-4/11", r.ContentRange())
}

func TestParseRangeOpenEnded(t *testing.T) {
	r, ok := ParseRange("bytes=6-", 11)
	require.True(t, ok)

	assert.Equal(t, int64(6), r.Start)
	assert.Equal(t, int64(11), r.End)
	assert.Equal(t, "bytes 6-10/11", r.ContentRange())
}

func TestParseRangeClampsEndToSize(t *testing.T) {
	r, ok := ParseRange("bytes=0-9999", 11)
	require.True(t, ok)

	assert.Equal(t, int64(11), r.End)
	assert.Equal(t, "bytes 0-10/11", r.ContentRange())
}

func TestParseRangeCoveringWholeFileStaysValid(t *testing.T) {
	r, ok := ParseRange("bytes=0-10", 11)
	require.True(t, ok)

	assert.True(t, r.Satisfiable())
	assert.Equal(t, int64(11), r.Length())
	assert.Equal(t, "bytes 0-10/11", r.ContentRange())
}

func TestParseRangeInvertedIsUnsatisfiable(t *testing.T) {
	for _, header := range []string{"bytes=11-", "bytes=20-5", "bytes=42-"} {
		r, ok := ParseRange(header, 11)
		require.True(t, ok, "header %q", header)
		assert.False(t, r.Satisfiable(), "header %q", header)
	}
}

func TestParseRangeMalformedIsRejected(t *testing.T) {
	cases := []string{
		"",
		"bytes",
		"bytes=",
		"bytes=abc-def",
		"items=0-4",
		"bytes=0-4,10-12", // multi-range is not parsed specially
	}
	for _, header := range cases {
		_, ok := ParseRange(header, 11)
		assert.False(t, ok, "header %q should be rejected", header)
	}
}

func TestParseRangeMissingStartDefaultsToZero(t *testing.T) {
	r, ok := ParseRange("bytes=-4", 11)
	require.True(t, ok)

	assert.Equal(t, int64(0), r.Start)
	assert.Equal(t, int64(5), r.End)
}
