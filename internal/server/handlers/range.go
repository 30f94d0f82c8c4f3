// Single byte-range parsing and serving over payload readers.

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tracklab/trove/internal/server/dto"
)

// byteRange is an inclusive byte span within a payload of known size.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// parseRange interprets a Range header against a payload of size total.
// Only a single range is honored. The second return is false when the header
// is absent and the full payload should be served. A malformed or
// unsatisfiable range is a client error, reported before any byte is read.
func parseRange(header string, total int64) (byteRange, bool, error) {
	if header == "" {
		return byteRange{}, false, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return byteRange{}, false, dto.BadRange(header)
	}
	// Multiple ranges are not supported; take only well-formed single spans.
	if strings.ContainsRune(spec, ',') {
		return byteRange{}, false, dto.BadRange(header)
	}
	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok {
		return byteRange{}, false, dto.BadRange(header)
	}

	if startStr == "" {
		// Suffix form: last n bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n <= 0 {
			return byteRange{}, false, dto.BadRange(header)
		}
		if n > total {
			n = total
		}
		if total == 0 {
			return byteRange{}, false, dto.BadRange(header)
		}
		return byteRange{start: total - n, end: total - 1}, true, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= total {
		return byteRange{}, false, dto.BadRange(header)
	}
	end := total - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return byteRange{}, false, dto.BadRange(header)
		}
		if end > total-1 {
			end = total - 1
		}
	}
	return byteRange{start: start, end: end}, true, nil
}

// serveBlob streams a payload, honoring a single byte range. The reader is
// consumed and closed. Headers are written only after the range is validated.
func serveBlob(w http.ResponseWriter, r *http.Request, src io.ReadCloser, contentType string, total int64) error {
	defer func() { _ = src.Close() }()

	rng, partial, err := parseRange(r.Header.Get("Range"), total)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "public, max-age=300")

	if !partial {
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
		_, err = io.Copy(w, src)
		return err
	}

	if rng.start > 0 {
		if seeker, ok := src.(io.Seeker); ok {
			_, err = seeker.Seek(rng.start, io.SeekStart)
		} else {
			_, err = io.CopyN(io.Discard, src, rng.start)
		}
		if err != nil {
			return dto.Storage("seek payload").Wrap(err)
		}
	}
	w.Header().Set("Content-Length", strconv.FormatInt(rng.length(), 10))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.start, rng.end, total))
	w.WriteHeader(http.StatusPartialContent)
	_, err = io.CopyN(w, src, rng.length())
	return err
}
