// Defines the Ref type and content-addressed payload reference format.

package recdb

import (
	"errors"
	"strconv"
)

// Ref is a content-addressed payload reference in format "sha256:<BASE32>-<size>".
type Ref string

const refPrefix = "sha256:"

// Validate checks if the payload reference is valid.
// Format: "sha256:<hash>-<size>" where hash is 52 uppercase base32 hex chars (0-9, A-V) and size is decimal digits.
func (r Ref) Validate() error {
	if r == "" {
		return nil // Empty ref is valid (unset).
	}
	// "sha256:" (7) + 52 base32 + "-" + at least 1 digit = 61 minimum
	if len(r) < 61 || r[:7] != refPrefix || r[59] != '-' {
		return errInvalidRef
	}
	for i := 7; i < 59; i++ {
		if !isBase32HexChar(r[i]) {
			return errInvalidRef
		}
	}
	// Validate size portion (digits only, at least one digit).
	for i := 60; i < len(r); i++ {
		if r[i] < '0' || r[i] > '9' {
			return errInvalidRef
		}
	}
	return nil
}

// IsZero returns true if the payload reference is unset.
func (r Ref) IsZero() bool {
	return r == ""
}

// Size returns the payload size in bytes encoded in the reference.
//
// The size suffix makes byte-range validation possible without opening
// the underlying file.
func (r Ref) Size() (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if r.IsZero() {
		return 0, errUnsetRef
	}
	return strconv.ParseInt(string(r[60:]), 10, 64)
}

var (
	errInvalidRef = errors.New("invalid payload ref")
	errUnsetRef   = errors.New("payload ref is unset")
)

func isBase32HexChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'V')
}
