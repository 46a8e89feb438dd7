package bootimg_test

import (
	"testing"

	"bootimg"
)

func TestDetectAny(t *testing.T) {
	tdata := []byte("\x1f\x8b\x00\x00\xff\xff\xff\xff")
	if ret := bootimg.DetectAny(tdata); ret != bootimg.GZIP {
		t.Fatalf("DetectAny failed, expect GZIP:%v, got %v", bootimg.GZIP, ret)
	}

	if ret := bootimg.Fmt2Name(bootimg.LZ4); ret != "lz4" {
		t.Fatalf("Fmt2Name failed, expect lz4, got %v", ret)
	}

	if ret := bootimg.Name2Fmt("lz4"); ret != bootimg.LZ4 {
		t.Fatalf("Name2Fmt failed, expect %v, got %v", bootimg.LZ4, ret)
	}
}

func TestDetectAnyZstd(t *testing.T) {
	tdata := []byte("\x28\xb5\x2f\xfd\x00\x00\x00\x00")
	if ret := bootimg.DetectAny(tdata); ret != bootimg.ZSTD {
		t.Fatalf("DetectAny failed, expect ZSTD:%v, got %v", bootimg.ZSTD, ret)
	}
}

func TestDetectRamdiskCompression(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want bootimg.RamdiskCompression
	}{
		{"gzip", []byte("\x1f\x8b\x08\x00"), bootimg.CompressionGzip},
		{"lz4", []byte("\x04\x22\x4d\x18"), bootimg.CompressionLZ4},
		{"zstd", []byte("\x28\xb5\x2f\xfd"), bootimg.CompressionZSTD},
		{"cpio newc", []byte("070701"), bootimg.CompressionCPIO},
		{"cpio crc", []byte("070702"), bootimg.CompressionCPIO},
		{"raw", []byte{0x00, 0x01, 0x02, 0x03}, bootimg.CompressionCPIO},
	}
	for _, c := range cases {
		if got := bootimg.DetectRamdiskCompression(c.buf); got != c.want {
			t.Errorf("%s: expect %v, got %v", c.name, c.want, got)
		}
	}
}
