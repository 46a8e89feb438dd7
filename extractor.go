package bootimg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"bootimg/internal/devstub"
)

// ExtractOptions configures Extract. Field names and the SkipAVB default
// mirror original_source/unpack.py's argparse flags (--skip-ramdisk,
// --skip-dtb, --skip-avb default true, --force, --debug-cpio).
type ExtractOptions struct {
	OutputDir string
	SkipRamdisk bool
	SkipDTB     bool
	SkipAVB     bool
	Force       bool
	DebugCpio   bool
	Verbose     bool
}

// DefaultExtractOptions mirrors the original script's argparse defaults:
// every skip flag off except AVB, which is skipped unless explicitly
// requested (scanning for an AVB footer is the slowest and least commonly
// needed of the three scans).
func DefaultExtractOptions(outputDir string) ExtractOptions {
	return ExtractOptions{OutputDir: outputDir, SkipAVB: true}
}

// ExtractResult is what a completed (possibly partially degraded)
// extraction produced.
type ExtractResult struct {
	Image          *BootImage
	Warnings       []Warning
	RamdiskPath    string
	VendorRamdiskPath string
	RamdiskDir     string
	VendorRamdiskDir string
}

const minBootImageSize = 160

// Extract runs the Init -> HeaderRead -> Scan -> PlanLayout -> WritePayloads
// -> WriteMetadata state machine described by spec.md §4.6, grounded on
// original_source/unpack.py's parse_boot_image.
func Extract(path string, opts ExtractOptions) (*ExtractResult, error) {
	w := &warnLog{Verbose: opts.Verbose}

	// Init: output directory must exist and be writable before any parsing
	// begins (original_source's up-front os.makedirs + throwaway test.txt).
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir %s: %w", opts.OutputDir, err)
	}
	probe := filepath.Join(opts.OutputDir, ".bootimg-write-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		return nil, fmt.Errorf("output dir %s is not writable: %w", opts.OutputDir, err)
	}
	os.Remove(probe)

	img, err := openImage(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	fileSize := img.Size()
	if fileSize < minBootImageSize {
		return nil, fmt.Errorf("%w: file too small (%s)", ErrShortRead, humanize.Bytes(uint64(fileSize)))
	}
	w.logf("boot image size: %s\n", humanize.Bytes(uint64(fileSize)))

	// HeaderRead
	headerBuf, _ := img.At(0, hdrReadSize)
	bootImage, err := decodeHeader(headerBuf, opts.Force, w)
	if err != nil {
		return nil, err
	}

	data := img.Bytes()

	// Scan: fill in whatever the header didn't declare.
	if !opts.SkipDTB && !bootImage.DTB.Present() {
		if m := scanForDTB(data, int(bootImage.PageSize), fileSize); m.Found {
			bootImage.DTB.Size = uint32(m.Size)
			bootImage.DTB.Offset = m.Offset
			w.logf("found dtb at offset %d, size %d, magic %s\n", m.Offset, m.Size, m.Magic)
		}
	}
	if !opts.SkipAVB {
		if m := scanForAVB(data, int(bootImage.PageSize), fileSize); m.Found {
			bootImage.AVB.Size = uint32(m.Size)
			bootImage.AVB.Offset = m.Offset
			w.logf("found AVB signature at offset %d, size %d\n", m.Offset, m.Size)
		}
	}
	if !opts.SkipRamdisk && !bootImage.Ramdisk.Present() {
		if m := scanForRamdisk(data, int(bootImage.PageSize), fileSize); m.Found {
			bootImage.Ramdisk.Size = uint32(m.Size)
			bootImage.Ramdisk.Offset = m.Offset
			bootImage.RamdiskCompression = m.Compression
			w.logf("found ramdisk at offset %d, size %d, compression %s\n", m.Offset, m.Size, m.Compression)
		} else {
			w.warn("scan", fmt.Errorf("no ramdisk found after scanning"))
		}
	}

	// PlanLayout
	fillOffsets(bootImage)
	warnOverruns(bootImage, uint64(fileSize), w)

	result := &ExtractResult{Image: bootImage}

	// WritePayloads
	writeComponent := func(name string, p Payload) {
		if !p.Present() {
			return
		}
		buf, ok := img.At(p.Offset, p.Size)
		if !ok {
			w.warn("extract", fmt.Errorf("%w: read %d bytes for %s, expected %d", ErrShortRead, len(buf), name, p.Size))
			return
		}
		if err := writeFileAtomic(filepath.Join(opts.OutputDir, name), buf); err != nil {
			w.warn("extract", fmt.Errorf("writing %s: %w", name, err))
		}
	}

	writeComponent("kernel", bootImage.Kernel)
	writeComponent("second", bootImage.Second)
	if !opts.SkipDTB {
		writeComponent("dtb", bootImage.DTB)
	}
	writeComponent("recovery_dtbo", bootImage.RecoveryDTBO)
	if !opts.SkipAVB {
		writeComponent("avb_signature.bin", bootImage.AVB)
	}

	if !opts.SkipRamdisk && bootImage.Ramdisk.Present() {
		if buf, ok := img.At(bootImage.Ramdisk.Offset, bootImage.Ramdisk.Size); ok {
			if bootImage.RamdiskCompression == CompressionUnknown {
				bootImage.RamdiskCompression = DetectRamdiskCompression(buf)
			}
			name := "ramdisk.cpio." + bootImage.RamdiskCompression.Ext()
			path := filepath.Join(opts.OutputDir, name)
			if err := writeFileAtomic(path, buf); err != nil {
				w.warn("extract", fmt.Errorf("writing ramdisk: %w", err))
			} else {
				result.RamdiskPath = path
				if dir, err := extractRamdiskContents(buf, bootImage.RamdiskCompression, filepath.Join(opts.OutputDir, "ramdisk"), opts.DebugCpio, w); err == nil {
					result.RamdiskDir = dir
				}
			}
		} else {
			w.warn("extract", fmt.Errorf("%w: ramdisk read short", ErrShortRead))
		}
	}

	if bootImage.VendorRamdisk.Present() && !opts.SkipRamdisk {
		if buf, ok := img.At(bootImage.VendorRamdisk.Offset, bootImage.VendorRamdisk.Size); ok {
			comp := DetectRamdiskCompression(buf)
			name := "vendor_ramdisk.cpio." + comp.Ext()
			path := filepath.Join(opts.OutputDir, name)
			if err := writeFileAtomic(path, buf); err != nil {
				w.warn("extract", fmt.Errorf("writing vendor_ramdisk: %w", err))
			} else {
				result.VendorRamdiskPath = path
				if dir, err := extractRamdiskContents(buf, comp, filepath.Join(opts.OutputDir, "vendor_ramdisk"), opts.DebugCpio, w); err == nil {
					result.VendorRamdiskDir = dir
				}
			}
		}
	}

	// WriteMetadata
	writeMetadata(opts.OutputDir, bootImage, w)

	result.Warnings = w.Warnings
	return result, nil
}

// extractRamdiskContents decompresses (if needed) and unpacks a ramdisk
// blob into outDir, one file per cpio entry. Device-node entries are
// created via internal/devstub so the extraction behaves the same on
// platforms without mknod.
func extractRamdiskContents(blob []byte, comp RamdiskCompression, outDir string, debugCpio bool, w *warnLog) (string, error) {
	raw, err := DecompressRamdisk(blob, comp)
	if err != nil {
		w.warn("extract", fmt.Errorf("decompressing ramdisk: %w", err))
		return "", err
	}

	entries, err := NewArchiver().Unpack(raw)
	if err != nil {
		w.warn("extract", fmt.Errorf("unpacking ramdisk cpio: %w", err))
		return "", err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		w.warn("extract", fmt.Errorf("creating %s: %w", outDir, err))
		return "", err
	}

	var names []string
	for _, e := range entries {
		if err := writeArchiveEntry(outDir, e); err != nil {
			w.warn("extract", fmt.Errorf("extracting cpio entry %q: %w", e.Name, err))
			continue
		}
		names = append(names, e.Name)
	}

	if debugCpio {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Extracted files from ramdisk:\n")
		for _, n := range names {
			fmt.Fprintf(&sb, "%s\n", n)
		}
		fmt.Fprintf(&sb, "\nTotal files extracted: %d\n", len(names))
		logPath := filepath.Join(filepath.Dir(outDir), "cpio_debug.log")
		if err := os.WriteFile(logPath, []byte(sb.String()), 0o644); err != nil {
			w.warn("extract", fmt.Errorf("writing cpio debug log: %w", err))
		}
	}

	return outDir, nil
}

func writeArchiveEntry(outDir string, e ArchiveEntry) error {
	full := filepath.Join(outDir, e.Name)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	mode := os.FileMode(e.Mode & 0o777)
	switch e.Mode & S_IFMT {
	case S_IFDIR:
		return os.MkdirAll(full, mode)
	case S_IFLNK:
		target := strings.TrimRight(string(e.Data), "\x00")
		return os.Symlink(target, full)
	case S_IFBLK, S_IFCHR:
		dev := devstub.Mkdev(e.RDevMajor, e.RDevMinor)
		return devstub.Mknod(full, uint32(mode)|(e.Mode&S_IFMT), int(dev))
	default:
		return os.WriteFile(full, e.Data, mode)
	}
}

func writeMetadata(outDir string, img *BootImage, w *warnLog) {
	infoPath := filepath.Join(outDir, "bootimg_info.txt")
	var sb strings.Builder
	fmt.Fprintf(&sb, "Magic: %x\n", []byte(BOOT_MAGIC))
	fmt.Fprintf(&sb, "Kernel Size: %d\n", img.Kernel.Size)
	fmt.Fprintf(&sb, "Ramdisk Size: %d\n", img.Ramdisk.Size)
	fmt.Fprintf(&sb, "Second Size: %d\n", img.Second.Size)
	fmt.Fprintf(&sb, "DTB Size: %d\n", img.DTB.Size)
	fmt.Fprintf(&sb, "Recovery DTBO Size: %d\n", img.RecoveryDTBO.Size)
	fmt.Fprintf(&sb, "Vendor Ramdisk Size: %d\n", img.VendorRamdisk.Size)
	fmt.Fprintf(&sb, "Page Size: %d\n", img.PageSize)
	fmt.Fprintf(&sb, "Header Version: %d\n", img.Version)
	fmt.Fprintf(&sb, "Board Name: %s\n", trimmedText(img.BoardName))
	fmt.Fprintf(&sb, "Command Line: %s\n", trimmedText(img.Cmdline))
	fmt.Fprintf(&sb, "OS Version: %x\n", img.OsVersion)
	if err := os.WriteFile(infoPath, []byte(sb.String()), 0o644); err != nil {
		w.warn("metadata", fmt.Errorf("writing bootimg_info.txt: %w", err))
	}

	if err := os.WriteFile(filepath.Join(outDir, "cmdline.txt"), []byte(trimmedText(img.Cmdline)), 0o644); err != nil {
		w.warn("metadata", fmt.Errorf("writing cmdline.txt: %w", err))
	}
	if err := os.WriteFile(filepath.Join(outDir, "id.bin"), img.Id[:], 0o644); err != nil {
		w.warn("metadata", fmt.Errorf("writing id.bin: %w", err))
	}
	if trimmed := trimmedBytes(img.ExtraCmdline); len(trimmed) > 0 {
		if err := os.WriteFile(filepath.Join(outDir, "extra_cmdline.txt"), trimmed, 0o644); err != nil {
			w.warn("metadata", fmt.Errorf("writing extra_cmdline.txt: %w", err))
		}
	}
}

// trimmedText renders a NUL-padded header field as a human-readable
// string for metadata files. The model itself keeps the bytes verbatim
// (model.go); trimming only ever happens at this rendering boundary.
func trimmedText(b []byte) string {
	return string(trimmedBytes(b))
}

func trimmedBytes(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}

// writeFileAtomic writes data to a temp file in the same directory as
// path, fsyncs it, then renames it into place with retries (spec.md §7:
// "atomic writes retry rename 5x/500ms; on exhaustion keep the temp file
// and warn rather than lose data" — grounded on original_source's
// safe_rename).
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bootimg-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	var renameErr error
	for attempt := 0; attempt < 5; attempt++ {
		if renameErr = os.Rename(tmpPath, path); renameErr == nil {
			return nil
		}
		if attempt < 4 {
			time.Sleep(500 * time.Millisecond)
		}
	}
	return fmt.Errorf("%w: kept temp file %s: %v", ErrRenameFailed, tmpPath, renameErr)
}
