package bootimg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header byte layout, spec.md §4.1's "extended field mapping". This diverges
// from the teacher's BootImgHdrV0..V4 struct chain (bootimg.go), which
// models the real AOSP on-disk layout (recovery_dtbo/dtb fields living deep
// inside a >1600-byte struct via Go struct embedding and, in one spot,
// unsafe.Pointer aliasing). That model doesn't tolerate short/garbled
// headers at all — DynImgV0.Init calls log.Fatalln on anything shorter than
// the full struct. spec.md's layout is deliberately more compact (v3/v4
// extension fields live at bytes 64-96, overlapping where cmdline begins on
// earlier versions) and always decodes permissively; header.go is grounded
// on original_source/unpack.py's parse_boot_image instead, which this byte
// layout matches field-for-field.
const (
	hdrMagicOff          = 0x000
	hdrKernelSizeOff     = 0x008
	hdrKernelAddrOff     = 0x00c
	hdrRamdiskSizeOff    = 0x010
	hdrRamdiskAddrOff    = 0x014
	hdrSecondSizeOff     = 0x018
	hdrSecondAddrOff     = 0x01c
	hdrTagsAddrOff       = 0x020
	hdrPageSizeOff       = 0x024
	hdrHeaderVersionOff  = 0x028
	hdrExtraFieldOff     = 0x02c // v0: dtb_size
	hdrOsVersionOff      = 0x030
	hdrBaseSize          = 0x040 // bytes [0:64) required to parse the base fields

	hdrRecoveryDtboSizeOff   = 64
	hdrRecoveryDtboOffsetOff = 68
	hdrHeaderSizeOff         = 76
	hdrV3ExtSize             = 80 // bytes needed to read the v3+ extension

	hdrVendorRamdiskSizeOff = 80
	hdrDtbSizeV4Off         = 84
	hdrDtbOffsetV4Off       = 88
	hdrV4ExtSize            = 96 // bytes needed to read the v4 extension

	hdrCmdlineOff      = 64
	hdrCmdlineSize      = 512
	hdrIdOff           = 576
	hdrIdSize          = 32
	hdrExtraCmdlineOff = 608
	hdrExtraCmdlineSize = 496
	hdrBoardNameOff    = 1104
	hdrBoardNameSize   = 16

	// Total header bytes this codec reads/zero-fills (spec.md §4.1: "MUST
	// read up to 1664 header bytes to tolerate larger v2+ headers").
	hdrReadSize = 1664
)

// decodeHeader parses the fixed-layout header per spec.md §4.1. raw is
// whatever was actually read from the file (may be shorter than
// hdrReadSize near EOF on a tiny/corrupt image); force enables the
// permissive-recovery path on a bad magic, a too-short base header, and the
// header_version>4 legacy dtb_size routing (spec.md §9 open question).
func decodeHeader(raw []byte, force bool, w *warnLog) (*BootImage, error) {
	n := len(raw)

	magicBuf := make([]byte, 8)
	copy(magicBuf, raw)
	if !bytes.Equal(magicBuf, []byte(BOOT_MAGIC)) {
		if !force {
			return nil, fmt.Errorf("%w: got %x", ErrBadMagic, magicBuf)
		}
		w.warn("header", fmt.Errorf("%w: got %x", ErrBadMagic, magicBuf))
	}

	padded := make([]byte, hdrReadSize)
	copy(padded, raw)

	var kernelSize, kernelAddr uint32
	var ramdiskSize, ramdiskAddr uint32
	var secondSize, secondAddr uint32
	var tagsAddr, pageSize uint32
	var headerVersionRaw, extraField uint32
	var osVersion [16]byte

	if n < hdrBaseSize {
		if !force {
			return nil, fmt.Errorf("%w: header too short (%d bytes)", ErrFieldParse, n)
		}
		w.warn("header", fmt.Errorf("%w: header too short (%d bytes), zeroing base fields", ErrFieldParse, n))
	} else {
		le := binary.LittleEndian
		kernelSize = le.Uint32(padded[hdrKernelSizeOff:])
		kernelAddr = le.Uint32(padded[hdrKernelAddrOff:])
		ramdiskSize = le.Uint32(padded[hdrRamdiskSizeOff:])
		ramdiskAddr = le.Uint32(padded[hdrRamdiskAddrOff:])
		secondSize = le.Uint32(padded[hdrSecondSizeOff:])
		secondAddr = le.Uint32(padded[hdrSecondAddrOff:])
		tagsAddr = le.Uint32(padded[hdrTagsAddrOff:])
		pageSize = le.Uint32(padded[hdrPageSizeOff:])
		headerVersionRaw = le.Uint32(padded[hdrHeaderVersionOff:])
		extraField = le.Uint32(padded[hdrExtraFieldOff:])
		copy(osVersion[:], padded[hdrOsVersionOff:hdrOsVersionOff+16])
	}

	version := headerVersionRaw
	legacyDtbSize := uint32(0)
	haveLegacyDtbSize := false
	if headerVersionRaw > 4 {
		w.warn("header", fmt.Errorf("unsupported header version %d, treating as v0", headerVersionRaw))
		version = 0
		if force {
			legacyDtbSize = extraField
			haveLegacyDtbSize = true
		}
	} else if version <= 3 {
		// spec.md §4.1: extra_field is dtb_size for v0, and by the same
		// rule for v1-v3 (none of which have a dedicated dtb field of
		// their own; only v4 does).
		legacyDtbSize = extraField
		haveLegacyDtbSize = true
	}

	le := binary.LittleEndian
	var recoveryDtboSize uint32
	var recoveryDtboOffset uint64
	var headerSize uint32
	if version >= 3 && n >= hdrV3ExtSize {
		recoveryDtboSize = le.Uint32(padded[hdrRecoveryDtboSizeOff:])
		recoveryDtboOffset = le.Uint64(padded[hdrRecoveryDtboOffsetOff:])
		headerSize = le.Uint32(padded[hdrHeaderSizeOff:])
	}

	var vendorRamdiskSize uint32
	var dtbSizeV4 uint32
	var dtbOffsetV4 uint64
	if version >= 4 && n >= hdrV4ExtSize {
		vendorRamdiskSize = le.Uint32(padded[hdrVendorRamdiskSizeOff:])
		dtbSizeV4 = le.Uint32(padded[hdrDtbSizeV4Off:])
		dtbOffsetV4 = le.Uint64(padded[hdrDtbOffsetV4Off:])
	}

	dtbSize := uint32(0)
	dtbOffset := uint64(0)
	switch {
	case version == 4 && dtbSizeV4 > 0:
		dtbSize = dtbSizeV4
		dtbOffset = dtbOffsetV4
	case haveLegacyDtbSize:
		dtbSize = legacyDtbSize
	}

	if recoveryDtboSize == 0 {
		recoveryDtboOffset = 0 // spec.md §3 invariant
	}

	if !isAllowedPageSize(pageSize) {
		w.warn("header", fmt.Errorf("invalid page_size %d, using default %d", pageSize, DefaultPageSize))
		pageSize = DefaultPageSize
	}

	cmdline := bytes.Clone(padded[hdrCmdlineOff : hdrCmdlineOff+hdrCmdlineSize])
	extraCmdline := bytes.Clone(padded[hdrExtraCmdlineOff : hdrExtraCmdlineOff+hdrExtraCmdlineSize])
	boardName := bytes.Clone(padded[hdrBoardNameOff : hdrBoardNameOff+hdrBoardNameSize])
	var id [32]byte
	copy(id[:], padded[hdrIdOff:hdrIdOff+hdrIdSize])

	return &BootImage{
		Version:       version,
		PageSize:      pageSize,
		Kernel:        Payload{Size: kernelSize, LoadAddr: kernelAddr},
		Ramdisk:       Payload{Size: ramdiskSize, LoadAddr: ramdiskAddr},
		Second:        Payload{Size: secondSize, LoadAddr: secondAddr},
		DTB:           Payload{Size: dtbSize, Offset: dtbOffset},
		RecoveryDTBO:  Payload{Size: recoveryDtboSize, Offset: recoveryDtboOffset},
		VendorRamdisk: Payload{Size: vendorRamdiskSize},
		TagsAddr:      tagsAddr,
		OsVersion:     osVersion,
		Cmdline:       cmdline,
		ExtraCmdline:  extraCmdline,
		BoardName:     boardName,
		Id:            id,
		HeaderSize:    headerSize,
	}, nil
}

// encodeHeader emits exactly img.PageSize bytes: the packed header followed
// by zero padding (spec.md §4.1 "Encode contract").
func encodeHeader(img *BootImage) ([]byte, error) {
	if hdrBoardNameOff+hdrBoardNameSize > int(img.PageSize) {
		return nil, fmt.Errorf("%w: header content exceeds page_size %d", ErrLayoutCollision, img.PageSize)
	}

	buf := make([]byte, img.PageSize)
	le := binary.LittleEndian

	copy(buf[hdrMagicOff:], []byte(BOOT_MAGIC))
	le.PutUint32(buf[hdrKernelSizeOff:], img.Kernel.Size)
	le.PutUint32(buf[hdrKernelAddrOff:], img.Kernel.LoadAddr)
	le.PutUint32(buf[hdrRamdiskSizeOff:], img.Ramdisk.Size)
	le.PutUint32(buf[hdrRamdiskAddrOff:], img.Ramdisk.LoadAddr)
	le.PutUint32(buf[hdrSecondSizeOff:], img.Second.Size)
	le.PutUint32(buf[hdrSecondAddrOff:], img.Second.LoadAddr)
	le.PutUint32(buf[hdrTagsAddrOff:], img.TagsAddr)
	le.PutUint32(buf[hdrPageSizeOff:], img.PageSize)
	le.PutUint32(buf[hdrHeaderVersionOff:], img.Version)
	if img.Version <= 3 {
		le.PutUint32(buf[hdrExtraFieldOff:], img.DTB.Size)
	}
	copy(buf[hdrOsVersionOff:], img.OsVersion[:])

	copy(buf[hdrCmdlineOff:hdrCmdlineOff+hdrCmdlineSize], img.Cmdline)
	copy(buf[hdrIdOff:hdrIdOff+hdrIdSize], img.Id[:])
	copy(buf[hdrExtraCmdlineOff:hdrExtraCmdlineOff+hdrExtraCmdlineSize], img.ExtraCmdline)
	copy(buf[hdrBoardNameOff:hdrBoardNameOff+hdrBoardNameSize], img.BoardName)

	recoveryDtboOffset := img.RecoveryDTBO.Offset
	if img.RecoveryDTBO.Size == 0 {
		recoveryDtboOffset = 0
	}
	if img.Version >= 3 {
		le.PutUint32(buf[hdrRecoveryDtboSizeOff:], img.RecoveryDTBO.Size)
		le.PutUint64(buf[hdrRecoveryDtboOffsetOff:], recoveryDtboOffset)
		le.PutUint32(buf[hdrHeaderSizeOff:], img.HeaderSize)
	}
	if img.Version >= 4 {
		le.PutUint32(buf[hdrVendorRamdiskSizeOff:], img.VendorRamdisk.Size)
		le.PutUint32(buf[hdrDtbSizeV4Off:], img.DTB.Size)
		le.PutUint64(buf[hdrDtbOffsetV4Off:], img.DTB.Offset)
	}

	return buf, nil
}
