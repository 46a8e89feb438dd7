package bootimg_test

import (
	"bytes"
	"testing"

	"bootimg"
)

func TestRamdiskCompressionRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("070701 cpio entry payload bytes "), 4096)

	cases := []bootimg.RamdiskCompression{
		bootimg.CompressionGzip,
		bootimg.CompressionLZ4,
		bootimg.CompressionZSTD,
		bootimg.CompressionCPIO,
	}
	for _, c := range cases {
		compressed, err := bootimg.CompressRamdisk(payload, c)
		if err != nil {
			t.Fatalf("%v: compress: %v", c, err)
		}
		if c != bootimg.CompressionCPIO && bytes.Equal(compressed, payload) {
			t.Fatalf("%v: compressed output identical to input", c)
		}

		got, err := bootimg.DecompressRamdisk(compressed, c)
		if err != nil {
			t.Fatalf("%v: decompress: %v", c, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("%v: round trip mismatch: got %d bytes, want %d", c, len(got), len(payload))
		}
	}
}

func TestCompressRamdiskGzipOutputIsDetected(t *testing.T) {
	payload := []byte("hello boot image ramdisk contents")
	compressed, err := bootimg.CompressRamdisk(payload, bootimg.CompressionGzip)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	got := bootimg.DetectRamdiskCompression(compressed)
	if got != bootimg.CompressionGzip {
		t.Fatalf("expected gzip, got %v", got)
	}
}

func TestXzRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("xz stream payload"), 256)
	compressed, err := bootimg.Xz(payload)
	if err != nil {
		t.Fatalf("Xz: %v", err)
	}
	if bootimg.DetectAny(compressed) != bootimg.XZ {
		t.Fatalf("compressed output not recognized as xz")
	}
	got, err := bootimg.Unxz(compressed)
	if err != nil {
		t.Fatalf("Unxz: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("xz round trip mismatch")
	}
}

func TestNewDecoderUnsupportedFormat(t *testing.T) {
	_, err := bootimg.NewDecoder(bootimg.UNKNOWN, bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected error for unsupported decoder format")
	}
}
