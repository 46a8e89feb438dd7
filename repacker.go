package bootimg

import (
	"fmt"
	"os"
	"path/filepath"

	"bootimg/internal/devstub"
)

// RepackInput names the component files a repack assembles, mirroring the
// file layout Extract produces so a round trip of extract-then-repack needs
// no renaming. Empty paths mean "component absent"; ramdisk/vendor ramdisk
// directories take precedence over their corresponding blob path when both
// are set, since a directory means the caller edited the unpacked contents.
type RepackInput struct {
	SourceImage string // original image, read for fields this type doesn't carry (cmdline, board name, ids, ...)

	KernelPath        string
	RamdiskPath       string
	RamdiskDir        string
	SecondPath        string
	DTBPath           string
	RecoveryDTBOPath  string
	VendorRamdiskPath string
	VendorRamdiskDir  string

	RamdiskCompression RamdiskCompression
	Force              bool
}

// Repack rebuilds a boot image from a RepackInput per spec.md §4.7, grounded
// on original_source/unpack.py's repack_boot_image: it reads the original
// image's header for everything this type doesn't carry (cmdline, board
// name, os_version, ids), substitutes the component bytes named by input,
// recomputes a fresh layout with fillOffsets and checkLayout (the two
// halves of planLayout; hard-checked: a collision here
// is a bug in the caller-provided sizes, not a tolerable degradation), and
// writes the result to outPath.
func Repack(input RepackInput, outPath string) (*BootImage, error) {
	w := &warnLog{}

	orig, err := openImage(input.SourceImage)
	if err != nil {
		return nil, fmt.Errorf("opening source image: %w", err)
	}
	defer orig.Close()

	headerBuf, _ := orig.At(0, hdrReadSize)
	img, err := decodeHeader(headerBuf, input.Force, w)
	if err != nil {
		return nil, err
	}

	loadComponent := func(path string, p *Payload) error {
		if path == "" {
			p.Size = 0
			p.Offset = 0
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		p.Size = uint32(len(data))
		p.Offset = 0
		return nil
	}

	if err := loadComponent(input.KernelPath, &img.Kernel); err != nil {
		return nil, err
	}
	if err := loadComponent(input.SecondPath, &img.Second); err != nil {
		return nil, err
	}
	if err := loadComponent(input.DTBPath, &img.DTB); err != nil {
		return nil, err
	}
	if err := loadComponent(input.RecoveryDTBOPath, &img.RecoveryDTBO); err != nil {
		return nil, err
	}

	ramdiskBlob, err := resolveRamdiskBlob(input.RamdiskPath, input.RamdiskDir, input.RamdiskCompression)
	if err != nil {
		return nil, fmt.Errorf("ramdisk: %w", err)
	}
	img.Ramdisk.Size = uint32(len(ramdiskBlob))
	if ramdiskBlob != nil {
		img.RamdiskCompression = input.RamdiskCompression
	}

	vendorRamdiskBlob, err := resolveRamdiskBlob(input.VendorRamdiskPath, input.VendorRamdiskDir, input.RamdiskCompression)
	if err != nil {
		return nil, fmt.Errorf("vendor ramdisk: %w", err)
	}
	img.VendorRamdisk.Size = uint32(len(vendorRamdiskBlob))

	// fileSize isn't known ahead of fillOffsets (it depends on the offsets
	// fillOffsets computes), so this calls the two planLayout halves
	// directly instead: fillOffsets first, then checkLayout against the
	// resulting FileSize, which only ever catches payload collisions here
	// since the file is sized to fit by construction.
	fillOffsets(img)
	if err := checkLayout(img, img.FileSize()); err != nil {
		return nil, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	headerOut, err := encodeHeader(img)
	if err != nil {
		return nil, err
	}
	if err := writeAt(out, 0, headerOut); err != nil {
		return nil, err
	}

	writePayload := func(path string, p Payload) error {
		if !p.Present() || path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		return writeAt(out, p.Offset, data)
	}

	if err := writePayload(input.KernelPath, img.Kernel); err != nil {
		return nil, err
	}
	if img.Ramdisk.Present() {
		if err := writeAt(out, img.Ramdisk.Offset, ramdiskBlob); err != nil {
			return nil, err
		}
	}
	if err := writePayload(input.SecondPath, img.Second); err != nil {
		return nil, err
	}
	if err := writePayload(input.DTBPath, img.DTB); err != nil {
		return nil, err
	}
	if err := writePayload(input.RecoveryDTBOPath, img.RecoveryDTBO); err != nil {
		return nil, err
	}
	if img.VendorRamdisk.Present() {
		if err := writeAt(out, img.VendorRamdisk.Offset, vendorRamdiskBlob); err != nil {
			return nil, err
		}
	}

	end := int64(img.FileSize())
	if err := out.Truncate(end); err != nil {
		return nil, fmt.Errorf("truncating %s: %w", outPath, err)
	}

	return img, nil
}

// resolveRamdiskBlob prefers a directory of unpacked cpio entries (repacked
// fresh via the Archiver and then recompressed) over a plain blob path, on
// the theory that a directory means the caller edited the contents; a blob
// path is read verbatim since it's already in its final on-disk form.
func resolveRamdiskBlob(blobPath, dir string, comp RamdiskCompression) ([]byte, error) {
	if dir != "" {
		entries, err := collectArchiveEntries(dir)
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", dir, err)
		}
		raw, err := NewArchiver().Pack(entries)
		if err != nil {
			return nil, fmt.Errorf("packing cpio: %w", err)
		}
		return CompressRamdisk(raw, comp)
	}
	if blobPath != "" {
		return os.ReadFile(blobPath)
	}
	return nil, nil
}

// collectArchiveEntries walks dir and turns every regular file, directory,
// symlink, and device node into an ArchiveEntry, mirroring the layout
// writeArchiveEntry produced on extraction (extractor.go creates block/char
// nodes via internal/devstub.Mknod, so repacking has to be able to read
// their major/minor back out the same way or a ramdisk containing one can
// never round-trip).
func collectArchiveEntries(dir string) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil || p == dir {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			entries = append(entries, ArchiveEntry{Name: rel, Mode: S_IFLNK | 0o777, Data: []byte(target)})
		case info.IsDir():
			entries = append(entries, ArchiveEntry{Name: rel, Mode: S_IFDIR | uint32(info.Mode().Perm())})
		case info.Mode()&os.ModeDevice != 0:
			var st devstub.Stat_t
			if err := devstub.Stat(p, &st); err != nil {
				return fmt.Errorf("statting device node %s: %w", p, err)
			}
			kind := uint32(S_IFBLK)
			if info.Mode()&os.ModeCharDevice != 0 {
				kind = S_IFCHR
			}
			entries = append(entries, ArchiveEntry{
				Name:      rel,
				Mode:      kind | uint32(info.Mode().Perm()),
				RDevMajor: devstub.Major(st.Rdev),
				RDevMinor: devstub.Minor(st.Rdev),
			})
		default:
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			entries = append(entries, ArchiveEntry{Name: rel, Mode: S_IFREG | uint32(info.Mode().Perm()), Data: data})
		}
		return nil
	})
	return entries, err
}

func writeAt(f *os.File, offset uint64, data []byte) error {
	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("writing at offset %d: %w", offset, err)
	}
	return nil
}
