package bootimg

import (
	"encoding/binary"
	"testing"
)

func TestScanForDTBFindsFDT(t *testing.T) {
	data := make([]byte, 4096)
	dtbOff := 100
	copy(data[dtbOff:], []byte(DTB_MAGIC))
	binary.BigEndian.PutUint32(data[dtbOff+4:], 2048)

	m := scanForDTB(data, 0, int64(len(data)))
	if !m.Found {
		t.Fatal("expected to find a DTB")
	}
	if m.Offset != uint64(dtbOff) || m.Size != 2048 {
		t.Errorf("got offset=%d size=%d, want offset=%d size=2048", m.Offset, m.Size, dtbOff)
	}
}

func TestScanForDTBRejectsImplausibleSize(t *testing.T) {
	data := make([]byte, 4096)
	copy(data[100:], []byte(DTB_MAGIC))
	binary.BigEndian.PutUint32(data[104:], 4) // below the 1024 floor

	m := scanForDTB(data, 0, int64(len(data)))
	if m.Found {
		t.Fatal("expected no match for an implausibly small declared size")
	}
}

func TestScanForDTBBareMarkerFallback(t *testing.T) {
	data := make([]byte, 4096)
	copy(data[200:], []byte("DHTB"))

	m := scanForDTB(data, 0, int64(len(data)))
	if !m.Found || m.Size != 1024 {
		t.Fatalf("expected bare marker fallback with fixed size 1024, got %+v", m)
	}
}

func TestScanForAVBFindsFooter(t *testing.T) {
	data := make([]byte, 4096)
	avbOff := 3000
	copy(data[avbOff:], []byte(AVB_MAGIC))
	binary.LittleEndian.PutUint64(data[avbOff+4:], 1000)

	m := scanForAVB(data, 0, int64(len(data)))
	if !m.Found || m.Offset != uint64(avbOff) || m.Size != 1000 {
		t.Fatalf("unexpected AVB match: %+v", m)
	}
}

func TestScanForRamdiskFindsGzipAndBoundsBySizeToNextMagic(t *testing.T) {
	data := make([]byte, 4096)
	ramdiskOff := 500
	copy(data[ramdiskOff:], []byte(GZIP1_MAGIC))
	nextOff := ramdiskOff + 2000
	copy(data[nextOff:], []byte(BOOT_MAGIC))

	m := scanForRamdisk(data, 0, int64(len(data)))
	if !m.Found {
		t.Fatal("expected to find a ramdisk")
	}
	if m.Compression != CompressionGzip {
		t.Errorf("Compression = %v, want gzip", m.Compression)
	}
	if m.Offset != uint64(ramdiskOff) {
		t.Errorf("Offset = %d, want %d", m.Offset, ramdiskOff)
	}
	if m.Size != uint64(nextOff-ramdiskOff) {
		t.Errorf("Size = %d, want %d", m.Size, nextOff-ramdiskOff)
	}
}

func TestScanForRamdiskNotFoundOnEmptyData(t *testing.T) {
	data := make([]byte, 2048)
	if m := scanForRamdisk(data, 0, int64(len(data))); m.Found {
		t.Fatalf("expected no match on all-zero data, got %+v", m)
	}
}
