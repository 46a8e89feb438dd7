package bootimg

import (
	"bytes"
	"encoding/binary"
)

// Signature scanner: locates payloads the header didn't declare a size for.
// Grounded on original_source/unpack.py's scan_for_dtb/scan_for_avb/
// scan_for_ramdisk, rebuilt on reader.go's scanWindows (the chunked,
// 512-byte-overlap primitive) and watchdog.go's deadline in place of the
// original's per-call daemon-thread timeout decorator.

type dtbMatch struct {
	Offset uint64
	Size   uint64
	Magic  string
	Found  bool
}

// scanForDTB looks for an FDT blob (big-endian totalsize at +4), or a bare
// "DTB"/"DHTB" ASCII marker (fixed 1024-byte size, as the original assumes
// when it can't read a real size field).
func scanForDTB(data []byte, start int, fileSize int64) dtbMatch {
	dl := newDeadline(scanTimeout)
	var result dtbMatch

	scanWindows(data, start, dl, func(pos int, window []byte) bool {
		for _, probe := range []string{DTB_MAGIC, "DTB", "DHTB"} {
			idx := bytes.Index(window, []byte(probe))
			if idx < 0 {
				continue
			}
			dtbStart := pos + idx
			if int64(dtbStart)+8 > fileSize {
				continue
			}
			if probe == DTB_MAGIC {
				if dtbStart+8 > len(data) {
					continue
				}
				size := uint64(binary.BigEndian.Uint32(data[dtbStart+4 : dtbStart+8]))
				maxSize := uint64(fileSize) - uint64(dtbStart)
				if maxSize > 1024*1024 {
					maxSize = 1024 * 1024
				}
				if size < 1024 || size > maxSize {
					continue
				}
				result = dtbMatch{Offset: uint64(dtbStart), Size: size, Magic: "fdt", Found: true}
				return true
			}
			result = dtbMatch{Offset: uint64(dtbStart), Size: 1024, Magic: probe, Found: true}
			return true
		}
		return false
	})
	return result
}

type avbMatch struct {
	Offset uint64
	Size   uint64
	Found  bool
}

// scanForAVB looks for an "AVB0" footer with a little-endian u64 size
// immediately following the magic.
func scanForAVB(data []byte, start int, fileSize int64) avbMatch {
	dl := newDeadline(scanTimeout)
	var result avbMatch

	scanWindows(data, start, dl, func(pos int, window []byte) bool {
		idx := bytes.Index(window, []byte(AVB_MAGIC))
		if idx < 0 {
			return false
		}
		avbStart := pos + idx
		sizeOff := avbStart + 4
		if sizeOff+8 > len(data) {
			return false
		}
		size := binary.LittleEndian.Uint64(data[sizeOff : sizeOff+8])
		if size < 64 || size > uint64(fileSize)-uint64(avbStart) {
			return false
		}
		result = avbMatch{Offset: uint64(avbStart), Size: size, Found: true}
		return true
	})
	return result
}

type ramdiskMatch struct {
	Offset      uint64
	Size        uint64
	Compression RamdiskCompression
	Found       bool
}

var ramdiskScanMagics = []struct {
	magic string
	comp  RamdiskCompression
}{
	{GZIP1_MAGIC, CompressionGzip},
	{LZ4_FRAME_MAGIC, CompressionLZ4},
	{ZSTD_MAGIC, CompressionZSTD},
	{CPIO_NEWC_MAGIC, CompressionCPIO},
	{CPIO_CRC_MAGIC, CompressionCPIO},
}

// scanForRamdisk looks for any ramdisk compression magic, then bounds the
// ramdisk's size by finding the next magic (any ramdisk magic, or the boot
// magic marking a following image) after the match.
func scanForRamdisk(data []byte, start int, fileSize int64) ramdiskMatch {
	dl := newDeadline(scanTimeout)
	var result ramdiskMatch

	scanWindows(data, start, dl, func(pos int, window []byte) bool {
		for _, m := range ramdiskScanMagics {
			idx := bytes.Index(window, []byte(m.magic))
			if idx < 0 {
				continue
			}
			ramdiskStart := pos + idx
			if int64(ramdiskStart)+8 > fileSize {
				continue
			}
			if ramdiskStart+8 > len(data) {
				continue
			}

			end := int64(fileSize)
			tail := data[ramdiskStart+1:]
			for _, next := range ramdiskScanMagics {
				if rel := bytes.Index(tail, []byte(next.magic)); rel >= 0 {
					if cand := int64(ramdiskStart) + 1 + int64(rel); cand < end {
						end = cand
					}
				}
			}
			if rel := bytes.Index(tail, []byte(BOOT_MAGIC)); rel >= 0 {
				if cand := int64(ramdiskStart) + 1 + int64(rel); cand < end {
					end = cand
				}
			}

			size := uint64(end) - uint64(ramdiskStart)
			if size < 1024 || size > uint64(fileSize)-uint64(ramdiskStart) {
				continue
			}
			result = ramdiskMatch{Offset: uint64(ramdiskStart), Size: size, Compression: m.comp, Found: true}
			return true
		}
		return false
	})
	return result
}
