package bootimg

import (
	"bytes"
	"testing"
)

func TestNativeArchiverPackUnpackRoundTrip(t *testing.T) {
	entries := []ArchiveEntry{
		{Name: "init", Mode: S_IFREG | 0o755, Data: []byte("#!/bin/sh\necho hi\n")},
		{Name: "etc/fstab", Mode: S_IFREG | 0o644, Data: []byte("/dev/root / ext4 defaults 0 0\n")},
	}

	a := NewArchiver()
	packed, err := a.Pack(entries)
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	got, err := a.Unpack(packed)
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("expected %d entries, got %d", len(entries), len(got))
	}
	for i, e := range entries {
		if got[i].Name != e.Name {
			t.Errorf("entry %d: name = %q, want %q", i, got[i].Name, e.Name)
		}
		if !bytes.Equal(got[i].Data, e.Data) {
			t.Errorf("entry %d: data mismatch", i)
		}
	}
}

func TestNativeArchiverUnpackRejectsBadMagic(t *testing.T) {
	_, err := nativeArchiver{}.Unpack(bytes.Repeat([]byte{0}, 200))
	if err == nil {
		t.Fatal("expected error for non-cpio data")
	}
}

func TestSubprocessArchiverUnavailable(t *testing.T) {
	a := NewSubprocessArchiver("bootimg-cpio-tool-that-does-not-exist")
	if _, err := a.Unpack(nil); err == nil {
		t.Fatal("expected ErrArchiverUnavailable for a missing binary")
	}
}
