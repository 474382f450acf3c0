// Package archive is the Archive Reader (C2): a lazy random-access view
// over a zip container. Entries are not decompressed until first read,
// and every entry can be read more than once — zip.NewReader is cheap to
// reopen against the same backing byte slice, so each read just reopens
// a fresh reader rather than caching an open *zip.File across calls.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrEntryNotFound is returned by ReadBytes/ReadString when the requested
// path is absent from the archive's entry table.
var ErrEntryNotFound = errors.New("archive: entry not found")

// Reader is a random-access view over an in-memory zip.
type Reader struct {
	data  []byte
	size  int64
	index map[string]int // entry path -> offset in zip.Reader.File
	order []string       // entry paths in zip.Reader.File order
}

// Open parses data as a zip archive and caches its entry table. Opening
// validates the central directory once, up front, so later operations
// don't need to re-check for a malformed archive.
func Open(data []byte) (*Reader, error) {
	r := &Reader{data: data, size: int64(len(data))}

	zr, err := zip.NewReader(bytes.NewReader(data), r.size)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to open zip: %w", err)
	}

	r.index = make(map[string]int, len(zr.File))
	r.order = make([]string, len(zr.File))
	for i, f := range zr.File {
		r.index[f.Name] = i
		r.order[i] = f.Name
	}
	return r, nil
}

// Entries returns every entry path in the archive, including directory
// markers (ending in "/") — callers that want only files must skip those.
// Order matches the zip's own central directory order, not map iteration,
// so callers that enumerate-then-tiebreak get a stable result across
// repeated loads of the same bytes.
func (r *Reader) Entries() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Has reports whether path is present, exactly, in the archive.
func (r *Reader) Has(path string) bool {
	_, ok := r.index[path]
	return ok
}

func (r *Reader) open(path string) (io.ReadCloser, error) {
	idx, ok := r.index[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}

	zr, err := zip.NewReader(bytes.NewReader(r.data), r.size)
	if err != nil {
		return nil, err
	}
	return zr.File[idx].Open()
}

// ReadBytes returns the decompressed contents of path.
func (r *Reader) ReadBytes(path string) ([]byte, error) {
	rc, err := r.open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to read %s: %w", path, err)
	}
	return data, nil
}

// ReadString is ReadBytes with a string conversion, for text manifests.
func (r *Reader) ReadString(path string) (string, error) {
	data, err := r.ReadBytes(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
