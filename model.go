package bootimg

// RamdiskCompression identifies how a ramdisk payload is compressed.
// Mirrors the teacher's format_t enum in spirit but scoped to the subset
// spec.md's data model actually names.
type RamdiskCompression int

const (
	CompressionUnknown RamdiskCompression = iota
	CompressionGzip
	CompressionLZ4
	CompressionZSTD
	CompressionCPIO
)

func (c RamdiskCompression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	case CompressionCPIO:
		return "cpio"
	default:
		return "unknown"
	}
}

// Ext is the file extension this codec normalizes output filenames to,
// per spec.md §4.4.
func (c RamdiskCompression) Ext() string {
	switch c {
	case CompressionGzip:
		return "gz"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zst"
	default:
		return "cpio"
	}
}

// Payload describes one located payload slice within the image: kernel,
// ramdisk, second, dtb, recovery_dtbo, or vendor_ramdisk.
type Payload struct {
	Size     uint32
	Offset   uint64
	LoadAddr uint32 // 0 if not applicable to this payload kind
}

func (p Payload) Present() bool {
	return p.Size > 0
}

// AllowedPageSizes are the only page sizes spec.md §3 permits; anything
// else is clamped to 4096 with a warning.
var AllowedPageSizes = [...]uint32{2048, 4096, 8192, 16384}

func isAllowedPageSize(v uint32) bool {
	for _, p := range AllowedPageSizes {
		if v == p {
			return true
		}
	}
	return false
}

const DefaultPageSize uint32 = 4096

// BootImage is the in-memory model produced by extraction and consumed by
// repacking. Immutable once built (spec.md §3 "Lifecycle").
type BootImage struct {
	Version  uint32 // 0-4, clamped to 0 on unknown (header_version > 4)
	PageSize uint32 // clamped into AllowedPageSizes, default 4096

	Kernel        Payload
	Ramdisk       Payload
	Second        Payload
	DTB           Payload
	RecoveryDTBO  Payload
	VendorRamdisk Payload

	TagsAddr  uint32
	OsVersion [16]byte

	// Cmdline/ExtraCmdline/BoardName are stored at their full on-disk
	// width, NUL padding included: spec.md §9 requires these round-trip
	// verbatim even when the bytes don't look like valid text. Trailing
	// NULs are trimmed only when rendering the human-readable
	// cmdline.txt/bootimg_info.txt metadata, not in this model.
	Cmdline      []byte // 512 bytes
	ExtraCmdline []byte // 496 bytes
	BoardName    []byte // 16 bytes
	Id           [32]byte

	// HeaderSize is the raw header_size field carried by v3+ headers. Not
	// part of spec.md §3's data model; kept so repacking an unmodified v3+
	// image reproduces it byte-for-byte instead of zeroing it.
	HeaderSize uint32

	RamdiskCompression RamdiskCompression

	// AVB signature, if the scanner (or header) located one. Not part of
	// the payload layout order; recorded for metadata/extraction only.
	AVB Payload
}

// FileSize is the minimum length an encoded image with this model's payload
// set must have, i.e. the end of the last present payload.
func (b *BootImage) FileSize() uint64 {
	end := uint64(b.PageSize)
	for _, p := range []Payload{b.Kernel, b.Ramdisk, b.Second, b.DTB, b.RecoveryDTBO, b.VendorRamdisk} {
		if p.Present() {
			if e := p.Offset + uint64(p.Size); e > end {
				end = e
			}
		}
	}
	return end
}
