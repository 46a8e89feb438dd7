package bootimg

import "fmt"

// Layout planner: computes page-aligned offsets for every present payload,
// in the fixed order kernel, ramdisk, second, dtb, recovery_dtbo,
// vendor_ramdisk (spec.md §4.3). Grounded on original_source/unpack.py's
// inline kernel_offset/ramdisk_offset/.../vendor_ramdisk_offset arithmetic
// in parse_boot_image and repack_boot_image, generalized into one reusable
// pass used by both the extractor (where offsets may already be known from
// the header or the scanner) and the repacker (where every offset is
// computed fresh).

// planLayout fills in offsets via fillOffsets and then hard-validates the
// result with checkLayout against a known file size, failing on an overrun
// or collision. The repacker runs the same two steps itself, checking
// against the file size the computed layout implies (see Repack). The
// extractor instead calls fillOffsets directly and does its own non-fatal
// overrun pass (spec.md §4.6 tolerates a malformed
// declared size by skipping that one component, not aborting the run).
func planLayout(img *BootImage, fileSize uint64) error {
	fillOffsets(img)
	return checkLayout(img, fileSize)
}

// fillOffsets fills in Offset for every payload that doesn't already carry
// an explicit one (recovery_dtbo and v4 dtb may already have one from the
// header; everything else is derived from page_size and the preceding
// payload's end).
func fillOffsets(img *BootImage) {
	pageSize := uint64(img.PageSize)

	img.Kernel.Offset = pageSize

	if img.Ramdisk.Present() && img.Ramdisk.Offset == 0 {
		img.Ramdisk.Offset = align_to(img.Kernel.Offset+uint64(img.Kernel.Size), pageSize)
	}

	secondBase := img.Kernel.Offset + uint64(img.Kernel.Size)
	if img.Ramdisk.Present() {
		secondBase = img.Ramdisk.Offset + uint64(img.Ramdisk.Size)
	}
	if img.Second.Present() && img.Second.Offset == 0 {
		img.Second.Offset = align_to(secondBase, pageSize)
	}

	dtbBase := secondBase
	if img.Second.Present() {
		dtbBase = img.Second.Offset + uint64(img.Second.Size)
	}
	if img.DTB.Present() && img.DTB.Offset == 0 {
		img.DTB.Offset = align_to(dtbBase, pageSize)
	}

	dtboBase := dtbBase
	if img.DTB.Present() {
		dtboBase = img.DTB.Offset + uint64(img.DTB.Size)
	}
	if img.RecoveryDTBO.Size == 0 {
		img.RecoveryDTBO.Offset = 0
	} else if img.RecoveryDTBO.Offset == 0 {
		img.RecoveryDTBO.Offset = align_to(dtboBase, pageSize)
	}

	if img.VendorRamdisk.Present() && img.VendorRamdisk.Offset == 0 {
		vrBase := dtboBase
		if img.RecoveryDTBO.Present() {
			vrBase = img.RecoveryDTBO.Offset + uint64(img.RecoveryDTBO.Size)
		}
		img.VendorRamdisk.Offset = align_to(vrBase, pageSize)
	}
}

// namedPayload pairs a payload with the component name used in metadata,
// filenames, and warnings.
type namedPayload struct {
	Name string
	P    *Payload
}

// payloadList returns every payload in spec.md §4.3's fixed layout order.
func payloadList(img *BootImage) []namedPayload {
	return []namedPayload{
		{"kernel", &img.Kernel},
		{"ramdisk", &img.Ramdisk},
		{"second", &img.Second},
		{"dtb", &img.DTB},
		{"recovery_dtbo", &img.RecoveryDTBO},
		{"vendor_ramdisk", &img.VendorRamdisk},
	}
}

// warnOverruns is the extractor's non-fatal counterpart to checkLayout's
// overrun check: spec.md §4.6 wants a component whose declared offset+size
// runs past EOF to be skipped with a warning, not to abort the whole
// extraction (original_source/unpack.py prints exactly this warning and
// keeps going). A skipped payload's Size is zeroed so later extraction
// code treats it as absent.
func warnOverruns(img *BootImage, fileSize uint64, w *warnLog) {
	for _, np := range payloadList(img) {
		if np.P.Present() && np.P.Offset+uint64(np.P.Size) > fileSize {
			w.warn("layout", fmt.Errorf("%w: %s at offset %d size %d exceeds file size %d",
				ErrOverrun, np.Name, np.P.Offset, np.P.Size, fileSize))
			np.P.Size = 0
			np.P.Offset = 0
		}
	}
}

// checkLayout detects payloads that overrun the file and payloads that
// were placed so close together that one's declared extent collides with
// the next payload's start (spec.md §4.3 "no overlap").
func checkLayout(img *BootImage, fileSize uint64) error {
	type placed struct {
		name   string
		offset uint64
		size   uint64
	}
	var all []placed
	for _, p := range []struct {
		name string
		p    Payload
	}{
		{"kernel", img.Kernel},
		{"ramdisk", img.Ramdisk},
		{"second", img.Second},
		{"dtb", img.DTB},
		{"recovery_dtbo", img.RecoveryDTBO},
		{"vendor_ramdisk", img.VendorRamdisk},
	} {
		if !p.p.Present() {
			continue
		}
		if p.p.Offset+uint64(p.p.Size) > fileSize {
			return fmt.Errorf("%w: %s at offset %d size %d exceeds file size %d",
				ErrOverrun, p.name, p.p.Offset, p.p.Size, fileSize)
		}
		all = append(all, placed{p.name, p.p.Offset, p.p.Size})
	}

	for i := 0; i < len(all); i++ {
		for j := 0; j < len(all); j++ {
			if i == j {
				continue
			}
			a, b := all[i], all[j]
			if a.offset < b.offset && a.offset+a.size > b.offset {
				return fmt.Errorf("%w: %s (offset %d size %d) overlaps %s (offset %d)",
					ErrLayoutCollision, a.name, a.offset, a.size, b.name, b.offset)
			}
		}
	}
	return nil
}
