package recdb

import (
	"bytes"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// base32Enc uses base32 "Extended Hex" alphabet (0-9A-V) which is ASCII-sorted
// and case-insensitive safe for filesystems.
var base32Enc = base32.HexEncoding.WithPadding(base32.NoPadding)

// PayloadWriter streams data to a payload, computing the SHA-256 hash as data
// is written.
//
// Create via [PayloadStore.NewWriter]. Write data using [PayloadWriter.Write],
// then call [PayloadWriter.Close] to finalize and get the [Ref]. If an error
// occurs during writing, call [PayloadWriter.Abort] to clean up the temporary
// file.
type PayloadWriter struct {
	store   *PayloadStore
	tmpPath string
	file    io.WriteCloser // nil after Close or Abort
	hasher  hash.Hash
	size    int64
}

// Write implements io.Writer, writing to temp file and updating the hash.
func (w *PayloadWriter) Write(p []byte) (n int, err error) {
	if w.file == nil {
		return 0, fs.ErrClosed
	}
	n, err = w.file.Write(p)
	if n > 0 {
		w.size += int64(n)
		w.hasher.Write(p[:n])
	}
	return n, err
}

// Close finalizes the payload: closes the temp file, computes the final ref,
// and renames to the content-addressed location.
//
// If no data was written, returns the empty content ref without creating a file.
func (w *PayloadWriter) Close() (Ref, error) {
	if w.file == nil {
		return "", fs.ErrClosed
	}
	if err := w.file.Close(); err != nil {
		w.file = nil
		return "", errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(w.tmpPath))
	}
	w.file = nil

	// Empty payload optimization: return hardcoded ref, no file created.
	if w.size == 0 {
		if err := os.Remove(w.tmpPath); err != nil {
			return "", fmt.Errorf("failed to remove temp file: %w", err)
		}
		return EmptyRef, nil
	}

	// Compute final ref: "sha256:<base32>-<size>".
	ref := Ref(fmt.Sprintf("%s%s-%d", refPrefix, base32Enc.EncodeToString(w.hasher.Sum(nil)), w.size))

	// Create target directory (fan-out by first 2 base32 chars of hash).
	if err := os.MkdirAll(filepath.Join(w.store.dir, string(ref)[7:9]), 0o750); err != nil {
		return "", errors.Join(fmt.Errorf("failed to create payload subdirectory: %w", err), os.Remove(w.tmpPath))
	}

	// If payload already exists (same content), just remove temp.
	targetPath := w.store.pathForRef(ref)
	if _, err := os.Stat(targetPath); err == nil {
		if err := os.Remove(w.tmpPath); err != nil {
			return "", fmt.Errorf("failed to remove temp file: %w", err)
		}
		return ref, nil
	}
	if err := os.Rename(w.tmpPath, targetPath); err != nil {
		return "", errors.Join(fmt.Errorf("failed to rename payload to final location: %w", err), os.Remove(w.tmpPath))
	}
	return ref, nil
}

// Abort cancels the write and cleans up the temp file.
func (w *PayloadWriter) Abort() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return errors.Join(err, os.Remove(w.tmpPath))
}

//

const (
	tmpDirName = "tmp"

	// EmptyRef is the ref for empty content (SHA-256 of nothing with size 0).
	// Used as an optimization to avoid file I/O for empty payloads.
	EmptyRef = Ref("sha256:SEOC8GKOVGE196NRUJ49IRTP4GJQSGF4CIDP6J54IMCHMU2IN1AG-0")
)

// PayloadStore manages content-addressed payload files in a directory.
//
// Payloads are immutable once written: the ref embeds the SHA-256 of the
// content, so a ref can never point at changed bytes. Files are organized
// with 256-way fan-out: <dir>/<ref[:2]>/<ref[2:]>. Temporary files during
// write are stored in <dir>/tmp/<random>.tmp.
type PayloadStore struct {
	dir string
}

// NewPayloadStore creates a payload store rooted at dir.
func NewPayloadStore(dir string) *PayloadStore {
	return &PayloadStore{dir: dir}
}

// NewWriter creates a PayloadWriter for streaming payload creation.
//
// Data is written to a temp file; Close() finalizes the hash and renames
// to the content-addressed location.
func (s *PayloadStore) NewWriter() (*PayloadWriter, error) {
	if err := os.MkdirAll(filepath.Join(s.dir, tmpDirName), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}
	f, err := os.CreateTemp(filepath.Join(s.dir, tmpDirName), "*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &PayloadWriter{
		store:   s,
		file:    f,
		tmpPath: f.Name(),
		hasher:  sha256.New(),
	}, nil
}

// Put writes data as a new payload and returns its ref.
func (s *PayloadStore) Put(data []byte) (Ref, error) {
	w, err := s.NewWriter()
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		return "", errors.Join(err, w.Abort())
	}
	return w.Close()
}

// Open opens the payload for streaming read.
//
// Each call returns an independent reader with its own cursor, so concurrent
// reads of the same payload never interfere. The caller must close the
// returned ReadCloser.
func (s *PayloadStore) Open(ref Ref) (io.ReadCloser, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.IsZero() {
		return nil, errUnsetRef
	}
	if ref == EmptyRef {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	f, err := os.Open(s.pathForRef(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("payload %s: %w", ref, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to open payload: %w", err)
	}
	return f, nil
}

// ReadAll reads the full payload content.
func (s *PayloadStore) ReadAll(ref Ref) ([]byte, error) {
	r, err := s.Open(ref)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err2 := r.Close(); err == nil {
		err = err2
	}
	return data, err
}

// Remove removes a payload by ref.
//
// Returns nil if the payload doesn't exist.
func (s *PayloadStore) Remove(ref Ref) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	// Optimization: empty payload has no file, nothing to delete.
	if ref == EmptyRef || ref.IsZero() {
		return nil
	}
	if err := os.Remove(s.pathForRef(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete payload: %w", err)
	}
	return nil
}

// GC removes payloads not in usedRefs and cleans up stale temp files.
//
// This is a stop-the-world GC: caller should ensure no writes are in
// progress. Returns all errors encountered joined together.
func (s *PayloadStore) GC(usedRefs map[Ref]int) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read payload directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		name := entry.Name()

		// Clean up tmp directory contents.
		if name == tmpDirName {
			if err := s.cleanupTmpDir(filepath.Join(s.dir, name)); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		// Delete unknown subdirectories or files at root level.
		if !entry.IsDir() || !isValidBase32Prefix(name) {
			if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
				errs = append(errs, fmt.Errorf("failed to remove unknown entry %s: %w", name, err))
			}
			continue
		}

		files, err := os.ReadDir(filepath.Join(s.dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to read subdir %s: %w", name, err))
			continue
		}
		for _, file := range files {
			filePath := filepath.Join(s.dir, name, file.Name())

			// Remove subdirectories inside ref dirs.
			if file.IsDir() {
				if err := os.RemoveAll(filePath); err != nil {
					errs = append(errs, fmt.Errorf("failed to remove subdir in %s: %w", name, err))
				}
				continue
			}

			// Reconstruct full ref from directory name + filename.
			ref := Ref(refPrefix + name + file.Name())
			if ref.Validate() != nil {
				if err := os.Remove(filePath); err != nil {
					errs = append(errs, fmt.Errorf("failed to remove unknown file %s: %w", file.Name(), err))
				}
				continue
			}
			if usedRefs[ref] == 0 {
				if err := os.Remove(filePath); err != nil {
					errs = append(errs, fmt.Errorf("failed to remove unused payload %s: %w", ref, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (s *PayloadStore) cleanupTmpDir(dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read tmp directory: %w", err)
	}
	var errs []error
	for _, file := range files {
		if err := os.Remove(filepath.Join(dir, file.Name())); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove tmp file %s: %w", file.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// pathForRef returns the filesystem path for a ref.
func (s *PayloadStore) pathForRef(ref Ref) string {
	return filepath.Join(s.dir, string(ref)[7:9], string(ref)[9:])
}

func isValidBase32Prefix(str string) bool {
	return len(str) == 2 && isBase32HexChar(str[0]) && isBase32HexChar(str[1]) && !strings.ContainsAny(str, "/\\")
}
