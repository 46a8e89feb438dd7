package bootimg

import "bytes"

// format_t is a generalized magic-byte format table, adapted from the
// teacher's CheckFmt/Fmt2Name/Fmt2Ext/Name2Fmt. The teacher's table covers
// far more container/compression formats than spec.md's ramdisk-compression
// enum needs (CHROMEOS, MTK, DHTB, ZIMAGE, ...); that broader table is kept
// here for DetectAny diagnostics (SPEC_FULL.md §B) while RamdiskCompression
// (model.go) is the narrow enum spec.md's data model actually names.
type format_t int

const (
	UNKNOWN format_t = iota
	/* Boot/container formats */
	CHROMEOS
	AOSP
	AOSP_VENDOR
	DHTB
	BLOB
	/* Compression formats */
	GZIP
	ZSTD
	XZ
	LZMA
	BZIP2
	LZ4
	LZ4_LEGACY
	/* Misc */
	MTK
	DTB
	ZIMAGE
)

func COMPRESSED(fmt format_t) bool {
	return fmt >= GZIP && fmt <= LZ4_LEGACY
}

const (
	BOOT_MAGIC        = "ANDROID!"
	VENDOR_BOOT_MAGIC = "VNDRBOOT"
	CHROMEOS_MAGIC    = "CHROMEOS"
	GZIP1_MAGIC       = "\x1f\x8b"
	GZIP2_MAGIC       = "\x1f\x9e"
	XZ_MAGIC          = "\xfd7zXZ"
	BZIP_MAGIC        = "BZh"
	LZ4_LEG_MAGIC     = "\x02\x21\x4c\x18"
	LZ4_FRAME_MAGIC   = "\x04\x22\x4d\x18"
	ZSTD_MAGIC        = "\x28\xb5\x2f\xfd"
	MTK_MAGIC         = "\x88\x16\x88\x58"
	DTB_MAGIC         = "\xd0\x0d\xfe\xed"
	DHTB_MAGIC        = "\x44\x48\x54\x42\x01\x00\x00\x00"
	TEGRABLOB_MAGIC   = "-SIGNED-BY-SIGNBLOB-"
	ZIMAGE_MAGIC      = "\x18\x28\x6f\x01"
	AVB_MAGIC         = "AVB0"
	CPIO_NEWC_MAGIC   = "070701"
	CPIO_CRC_MAGIC    = "070702"
)

func matches(buf []byte, magic string) bool {
	return len(buf) >= len(magic) && bytes.Equal(buf[:len(magic)], []byte(magic))
}

// DetectAny is the teacher's CheckFmt, generalized with a ZSTD case.
func DetectAny(buf []byte) format_t {
	switch {
	case matches(buf, CHROMEOS_MAGIC):
		return CHROMEOS
	case matches(buf, BOOT_MAGIC):
		return AOSP
	case matches(buf, VENDOR_BOOT_MAGIC):
		return AOSP_VENDOR
	case matches(buf, GZIP1_MAGIC), matches(buf, GZIP2_MAGIC):
		return GZIP
	case matches(buf, ZSTD_MAGIC):
		return ZSTD
	case matches(buf, XZ_MAGIC):
		return XZ
	case len(buf) >= 13 && bytes.Equal([]byte("\x5d\x00\x00"), buf[:3]) && (buf[12] == '\xff' || buf[12] == 0x00):
		return LZMA
	case matches(buf, BZIP_MAGIC):
		return BZIP2
	case matches(buf, LZ4_FRAME_MAGIC):
		return LZ4
	case matches(buf, LZ4_LEG_MAGIC):
		return LZ4_LEGACY
	case matches(buf, MTK_MAGIC):
		return MTK
	case matches(buf, DTB_MAGIC):
		return DTB
	case matches(buf, DHTB_MAGIC):
		return DHTB
	case matches(buf, TEGRABLOB_MAGIC):
		return BLOB
	case len(buf) >= 0x28 && bytes.Equal(buf[0x24:0x24+len(ZIMAGE_MAGIC)], []byte(ZIMAGE_MAGIC)):
		return ZIMAGE
	default:
		return UNKNOWN
	}
}

func Fmt2Name(fmt format_t) string {
	switch fmt {
	case GZIP:
		return "gzip"
	case ZSTD:
		return "zstd"
	case XZ:
		return "xz"
	case LZMA:
		return "lzma"
	case BZIP2:
		return "bzip2"
	case LZ4:
		return "lz4"
	case LZ4_LEGACY:
		return "lz4_legacy"
	case DTB:
		return "dtb"
	case ZIMAGE:
		return "zimage"
	default:
		return "raw"
	}
}

func Name2Fmt(name string) format_t {
	switch name {
	case "gzip":
		return GZIP
	case "zstd":
		return ZSTD
	case "xz":
		return XZ
	case "lzma":
		return LZMA
	case "bzip2":
		return BZIP2
	case "lz4":
		return LZ4
	case "lz4_legacy":
		return LZ4_LEGACY
	default:
		return UNKNOWN
	}
}

// DetectRamdiskCompression implements spec.md §4.4's narrow detection table:
// gzip/lz4/zstd are recognized explicitly, everything else (including the
// two cpio ASCII magics) is raw cpio.
func DetectRamdiskCompression(buf []byte) RamdiskCompression {
	switch {
	case matches(buf, GZIP1_MAGIC):
		return CompressionGzip
	case matches(buf, LZ4_FRAME_MAGIC):
		return CompressionLZ4
	case matches(buf, ZSTD_MAGIC):
		return CompressionZSTD
	default:
		return CompressionCPIO
	}
}
