package filestore

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange is a half-open interval [Start, End) into a file of a known
// size. End is already clamped to the file size by ParseRange.
type ByteRange struct {
	Start int64
	End   int64
	Size  int64
}

// ParseRange interprets an HTTP Range header against a file of the given
// size. Only single ranges of the form "bytes=<start>-<end>" are
// understood. The explicit end position is inclusive, a missing start
// defaults to 0, a missing end to the end of the file, and the interval is
// clamped to the file size. The second return value is false for anything
// unparseable, including multi-range headers; callers answer those with
// whole-file delivery.
func ParseRange(header string, size int64) (ByteRange, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return ByteRange{}, false
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return ByteRange{}, false
	}

	var start int64
	if startStr != "" {
		v, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil {
			return ByteRange{}, false
		}
		start = v
	}

	end := size
	if endStr != "" {
		v, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return ByteRange{}, false
		}
		end = v + 1
	}

	if end > size {
		end = size
	}
	return ByteRange{Start: start, End: end, Size: size}, true
}

// Satisfiable reports whether the interval contains at least one byte.
// An empty or inverted interval must be answered with 416.
func (r ByteRange) Satisfiable() bool {
	return r.Start >= 0 && r.Start < r.End
}

// Length returns the number of bytes the range covers.
func (r ByteRange) Length() int64 {
	return r.End - r.Start
}

// ContentRange renders the Content-Range header value for a 206 response,
// using the inclusive last-byte position.
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End-1, r.Size)
}
