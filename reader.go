package bootimg

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// image is the bounded, seekable view over a boot-image file that the
// header codec and signature scanner read through. Grounded on the
// teacher's mmap.Map usage (bootimg.go, cpio/cpio.go); the teacher opens an
// mmap and slices it directly wherever it needs file bytes, which is the
// pattern generalized here into a small reusable type.
type image struct {
	file *os.File
	mm   mmap.MMap
}

func openImage(path string) (*image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &image{file: f, mm: m}, nil
}

func (img *image) Close() error {
	var err error
	if img.mm != nil {
		err = img.mm.Unmap()
	}
	if cerr := img.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func (img *image) Size() int64 {
	return int64(len(img.mm))
}

// Bytes returns the full mapped view. Callers must not hold onto slices of
// it past Close.
func (img *image) Bytes() []byte {
	return img.mm
}

// At returns a bounded slice [off, off+size), clamped to not read past EOF.
// The returned bool is false (ErrShortRead territory) if fewer than size
// bytes were available.
func (img *image) At(off uint64, size uint32) ([]byte, bool) {
	total := uint64(len(img.mm))
	if off >= total {
		return nil, false
	}
	end := off + uint64(size)
	if end > total {
		return img.mm[off:total], false
	}
	return img.mm[off:end], true
}

const (
	scanChunkSize = 16 * 1024
	scanOverlap   = 512
)

// scanWindows walks data[start:] in scanChunkSize windows with scanOverlap
// bytes of overlap between consecutive windows, so a magic straddling a
// chunk boundary is never missed (spec.md §4.2). visit is called with the
// absolute offset of the window's start and the window's bytes; returning
// true stops the scan (match found). Returns false if the deadline expires
// or the data is exhausted without a match — both cases are "not found" to
// the caller (spec.md §4.2 "Scans yield None on timeout or exhaustion").
func scanWindows(data []byte, start int, dl deadline, visit func(pos int, window []byte) bool) bool {
	if start < 0 {
		start = 0
	}
	pos := start
	for pos < len(data) {
		if dl.Expired() {
			return false
		}
		end := pos + scanChunkSize
		if end > len(data) {
			end = len(data)
		}
		if visit(pos, data[pos:end]) {
			return true
		}
		if end >= len(data) {
			break
		}
		next := end - scanOverlap
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
	return false
}
