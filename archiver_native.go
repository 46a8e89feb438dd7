package bootimg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Native cpio (newc) reader/writer, adapted from the teacher's
// cpio/cpio.go (CpioHeader, x8u, align_4, LoadFromData, Dump). The
// teacher's Cpio type carries a great deal unrelated to this codec's
// Archiver role — Test/Patch/Backup/Restore, the magiskboot-specific CLI
// plumbing in CpioCommands — all dropped; see DESIGN.md. What survives is
// the wire-format read/write logic, generalized from "the one mmap-backed
// global archive a CLI command mutates in place" into the stateless
// Archiver.Unpack/Pack pair the extractor and repacker call.
const (
	S_IFMT  = 0170000
	S_IFBLK = 0060000
	S_IFCHR = 0020000
	S_IFDIR = 0040000
	S_IFLNK = 0120000
	S_IFREG = 0100000
)

func isDeviceMode(mode uint32) bool {
	return mode&S_IFMT == S_IFBLK || mode&S_IFMT == S_IFCHR
}

type cpioHeader struct {
	Magic     [6]byte
	Ino       [8]byte
	Mode      [8]byte
	Uid       [8]byte
	Gid       [8]byte
	Nlink     [8]byte
	Mtime     [8]byte
	Filesize  [8]byte
	Devmajor  [8]byte
	Devminor  [8]byte
	Rdevmajor [8]byte
	Rdevminor [8]byte
	Namesize  [8]byte
	Check     [8]byte
}

func x8u(x []byte) (uint32, error) {
	if len(x) != 8 {
		return 0, errors.New("bad cpio header field width")
	}
	v, err := strconv.ParseUint(string(x), 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func align4(x uint64) uint64 {
	return (x + 3) &^ 3
}

type nativeArchiver struct{}

// Unpack parses a newc-format cpio stream into ArchiveEntry values,
// grounded on the teacher's Cpio.LoadFromData. The CRC format
// ("070702") shares the newc layout exactly except for the checksum
// field's meaning, which this reader never validates, so both magics
// parse identically here.
func (nativeArchiver) Unpack(data []byte) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	pos := uint64(0)
	hdrSize := uint64(binary.Size(cpioHeader{}))

	for pos < uint64(len(data)) {
		if pos+hdrSize > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated cpio header at offset %d", ErrFieldParse, pos)
		}
		var hdr cpioHeader
		if err := binary.Read(bytes.NewReader(data[pos:pos+hdrSize]), binary.LittleEndian, &hdr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFieldParse, err)
		}
		if !bytes.Equal(hdr.Magic[:], []byte(CPIO_NEWC_MAGIC)) && !bytes.Equal(hdr.Magic[:], []byte(CPIO_CRC_MAGIC)) {
			return nil, fmt.Errorf("%w: bad cpio entry magic %q", ErrBadMagic, hdr.Magic[:])
		}
		pos += hdrSize

		nameSize, err := x8u(hdr.Namesize[:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFieldParse, err)
		}
		if pos+uint64(nameSize) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated cpio name at offset %d", ErrFieldParse, pos)
		}
		name := strings.TrimRight(string(data[pos:pos+uint64(nameSize)]), "\x00")
		pos = align4(pos + uint64(nameSize))

		if name == "." || name == ".." {
			continue
		}
		if name == "TRAILER!!!" {
			break
		}

		fileSize, err := x8u(hdr.Filesize[:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFieldParse, err)
		}
		if pos+uint64(fileSize) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: truncated cpio data for %q", ErrFieldParse, name)
		}

		mode, _ := x8u(hdr.Mode[:])
		uid, _ := x8u(hdr.Uid[:])
		gid, _ := x8u(hdr.Gid[:])
		rmajor, _ := x8u(hdr.Rdevmajor[:])
		rminor, _ := x8u(hdr.Rdevminor[:])

		entries = append(entries, ArchiveEntry{
			Name:      name,
			Mode:      mode,
			Uid:       uid,
			Gid:       gid,
			RDevMajor: rmajor,
			RDevMinor: rminor,
			Data:      bytes.Clone(data[pos : pos+uint64(fileSize)]),
		})
		pos = align4(pos + uint64(fileSize))
	}
	return entries, nil
}

// Pack writes entries as a newc-format cpio stream terminated by the
// standard TRAILER!!! entry, grounded on the teacher's Cpio.Dump. Inode
// numbers are synthesized sequentially starting at 300000, matching the
// teacher's convention (real inode numbers from the source filesystem are
// never meaningful once repacked into a different ramdisk).
func (nativeArchiver) Pack(entries []ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	inode := 300000

	writeEntry := func(name string, mode, uid, gid, rmajor, rminor uint32, data []byte) {
		header := fmt.Sprintf(
			"070701%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x%08x",
			inode, mode, uid, gid, 1, 0, len(data), 0, 0, rmajor, rminor, len(name)+1, 0,
		)
		buf.WriteString(header)
		buf.WriteString(name)
		buf.WriteByte(0)
		padZeros(&buf)
		buf.Write(data)
		padZeros(&buf)
		inode++
	}

	for _, e := range entries {
		writeEntry(e.Name, e.Mode, e.Uid, e.Gid, e.RDevMajor, e.RDevMinor, e.Data)
	}
	writeEntry("TRAILER!!!", 0, 0, 0, 0, 0, nil)

	return buf.Bytes(), nil
}

func padZeros(buf *bytes.Buffer) {
	pos := uint64(buf.Len())
	pad := align4(pos) - pos
	for i := uint64(0); i < pad; i++ {
		buf.WriteByte(0)
	}
}
