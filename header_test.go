package bootimg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func rawHeader(size int) []byte {
	buf := make([]byte, size)
	copy(buf, []byte(BOOT_MAGIC))
	return buf
}

func TestDecodeHeaderBadMagic(t *testing.T) {
	buf := rawHeader(hdrReadSize)
	copy(buf[:8], "NOTAMAGC")

	if _, err := decodeHeader(buf, false, &warnLog{}); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic without force, got %v", err)
	}

	w := &warnLog{}
	img, err := decodeHeader(buf, true, w)
	if err != nil {
		t.Fatalf("force=true should recover from bad magic: %v", err)
	}
	if len(w.Warnings) == 0 {
		t.Fatal("expected a warning to be recorded for bad magic")
	}
	if img.Version != 0 {
		t.Fatalf("expected version 0 on a zeroed header, got %d", img.Version)
	}
}

func TestDecodeHeaderTooShortNoForce(t *testing.T) {
	buf := rawHeader(32) // shorter than hdrBaseSize
	if _, err := decodeHeader(buf, false, &warnLog{}); !errors.Is(err, ErrFieldParse) {
		t.Fatalf("expected ErrFieldParse, got %v", err)
	}
}

func TestDecodeHeaderV0DtbSizeFromExtraField(t *testing.T) {
	buf := rawHeader(hdrReadSize)
	le := binary.LittleEndian
	le.PutUint32(buf[hdrPageSizeOff:], 4096)
	le.PutUint32(buf[hdrHeaderVersionOff:], 0)
	le.PutUint32(buf[hdrExtraFieldOff:], 2048) // v0: dtb_size

	img, err := decodeHeader(buf, false, &warnLog{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.DTB.Size != 2048 {
		t.Fatalf("expected dtb size 2048 from extra_field, got %d", img.DTB.Size)
	}
}

func TestDecodeHeaderV4Extension(t *testing.T) {
	buf := rawHeader(hdrReadSize)
	le := binary.LittleEndian
	le.PutUint32(buf[hdrPageSizeOff:], 4096)
	le.PutUint32(buf[hdrHeaderVersionOff:], 4)
	le.PutUint32(buf[hdrRecoveryDtboSizeOff:], 1024)
	le.PutUint64(buf[hdrRecoveryDtboOffsetOff:], 0x8000)
	le.PutUint32(buf[hdrHeaderSizeOff:], 0x280)
	le.PutUint32(buf[hdrVendorRamdiskSizeOff:], 4096)
	le.PutUint32(buf[hdrDtbSizeV4Off:], 8192)
	le.PutUint64(buf[hdrDtbOffsetV4Off:], 0x10000)

	img, err := decodeHeader(buf, false, &warnLog{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Version != 4 {
		t.Fatalf("expected version 4, got %d", img.Version)
	}
	if img.RecoveryDTBO.Size != 1024 || img.RecoveryDTBO.Offset != 0x8000 {
		t.Fatalf("recovery_dtbo mismatch: %+v", img.RecoveryDTBO)
	}
	if img.VendorRamdisk.Size != 4096 {
		t.Fatalf("vendor_ramdisk_size mismatch: %d", img.VendorRamdisk.Size)
	}
	if img.DTB.Size != 8192 || img.DTB.Offset != 0x10000 {
		t.Fatalf("dtb mismatch: %+v", img.DTB)
	}
}

func TestDecodeHeaderUnsupportedVersionGatedByForce(t *testing.T) {
	buf := rawHeader(hdrReadSize)
	le := binary.LittleEndian
	le.PutUint32(buf[hdrPageSizeOff:], 4096)
	le.PutUint32(buf[hdrHeaderVersionOff:], 9)
	le.PutUint32(buf[hdrExtraFieldOff:], 4096)

	img, err := decodeHeader(buf, false, &warnLog{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Version != 0 {
		t.Fatalf("expected header_version>4 to downgrade to 0, got %d", img.Version)
	}
	if img.DTB.Size != 0 {
		t.Fatalf("legacy dtb_size routing must be gated behind force, got %d", img.DTB.Size)
	}

	img, err = decodeHeader(buf, true, &warnLog{})
	if err != nil {
		t.Fatalf("decode with force: %v", err)
	}
	if img.DTB.Size != 4096 {
		t.Fatalf("expected legacy dtb_size 4096 with force, got %d", img.DTB.Size)
	}
}

func TestDecodeHeaderInvalidPageSize(t *testing.T) {
	buf := rawHeader(hdrReadSize)
	binary.LittleEndian.PutUint32(buf[hdrPageSizeOff:], 1234)

	w := &warnLog{}
	img, err := decodeHeader(buf, false, w)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.PageSize != DefaultPageSize {
		t.Fatalf("expected page_size to clamp to %d, got %d", DefaultPageSize, img.PageSize)
	}
	if len(w.Warnings) == 0 {
		t.Fatal("expected a warning for invalid page_size")
	}
}

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	buf := rawHeader(hdrReadSize)
	le := binary.LittleEndian
	le.PutUint32(buf[hdrKernelSizeOff:], 0x123456)
	le.PutUint32(buf[hdrKernelAddrOff:], 0x80000000)
	le.PutUint32(buf[hdrRamdiskSizeOff:], 0x9999)
	le.PutUint32(buf[hdrPageSizeOff:], 4096)
	le.PutUint32(buf[hdrHeaderVersionOff:], 3)
	le.PutUint32(buf[hdrRecoveryDtboSizeOff:], 2048)
	le.PutUint64(buf[hdrRecoveryDtboOffsetOff:], 0x40000)
	le.PutUint32(buf[hdrHeaderSizeOff:], 1580)
	copy(buf[hdrCmdlineOff:], "console=ttyMSM0,115200n8")

	img, err := decodeHeader(buf, false, &warnLog{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	encoded, err := encodeHeader(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if uint32(len(encoded)) != img.PageSize {
		t.Fatalf("encoded header length %d != page_size %d", len(encoded), img.PageSize)
	}

	img2, err := decodeHeader(encoded, false, &warnLog{})
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if img2.Kernel != img.Kernel || img2.Ramdisk != img.Ramdisk {
		t.Fatalf("payload fields did not round trip: %+v vs %+v", img2, img)
	}
	if img2.RecoveryDTBO != img.RecoveryDTBO {
		t.Fatalf("recovery_dtbo did not round trip: %+v vs %+v", img2.RecoveryDTBO, img.RecoveryDTBO)
	}
	if !bytes.Equal(img2.Cmdline, img.Cmdline) {
		t.Fatalf("cmdline did not round trip")
	}
}

func TestEncodeHeaderRefusesOversizedPage(t *testing.T) {
	img := &BootImage{PageSize: 64}
	if _, err := encodeHeader(img); !errors.Is(err, ErrLayoutCollision) {
		t.Fatalf("expected ErrLayoutCollision, got %v", err)
	}
}
