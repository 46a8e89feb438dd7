// Command bootimg is a thin reference driver over the bootimg package,
// covering the extract/repack/full surface spec.md §6 documents. It is not
// a port of the teacher's full magiskboot CLI (sign/verify/dtb/hexpatch/
// payload extraction are out of scope; see DESIGN.md).
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"bootimg"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "extract":
		err = runExtract(args)
	case "repack":
		err = runRepack(args)
	case "full":
		err = runFull(args)
	case "identify":
		err = runIdentify(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootimg: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: bootimg <extract|repack|full|identify> [flags] <image>")
}

// runIdentify is a diagnostic command over bootimg's broader format_t
// table (DetectAny/Fmt2Name/NewDecoder), distinct from the narrow
// gzip/lz4/zstd ramdisk-compression enum extract/repack use. Useful for a
// blob that didn't come out of a boot image at all — a second-stage loader
// or recovery_dtbo occasionally turns up xz- or lzma-compressed on older
// devices, outside what RamdiskCompression recognizes.
func runIdentify(args []string) error {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("identify takes exactly one file argument")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	f := bootimg.DetectAny(data)
	fmt.Printf("format: %s\n", bootimg.Fmt2Name(f))

	if !bootimg.COMPRESSED(f) {
		return nil
	}
	dec, err := bootimg.NewDecoder(f, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("opening decoder: %w", err)
	}
	defer dec.Close()
	decoded, err := dec.Decode()
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	fmt.Printf("compressed size: %d, decoded size: %d\n", len(data), len(decoded))
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	outDir := fs.String("output-dir", "out", "directory to extract components into")
	skipRamdisk := fs.Bool("skip-ramdisk", false, "don't extract or unpack the ramdisk")
	skipDTB := fs.Bool("skip-dtb", false, "don't extract the DTB")
	skipAVB := fs.Bool("skip-avb", true, "don't scan for an AVB signature")
	force := fs.Bool("force", false, "recover from a bad magic or a too-short header instead of failing")
	debugCpio := fs.Bool("debug-cpio", false, "write cpio_debug.log listing extracted ramdisk entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("extract takes exactly one image argument")
	}

	opts := bootimg.ExtractOptions{
		OutputDir:   *outDir,
		SkipRamdisk: *skipRamdisk,
		SkipDTB:     *skipDTB,
		SkipAVB:     *skipAVB,
		Force:       *force,
		DebugCpio:   *debugCpio,
		Verbose:     true,
	}

	result, err := bootimg.Extract(fs.Arg(0), opts)
	if err != nil {
		return err
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Printf("extracted to %s\n", *outDir)
	return nil
}

func runRepack(args []string) error {
	fs := flag.NewFlagSet("repack", flag.ExitOnError)
	source := fs.String("source-image", "", "original boot image to copy header fields from")
	kernel := fs.String("kernel", "", "path to the kernel component")
	ramdisk := fs.String("ramdisk", "", "path to a pre-built ramdisk blob")
	ramdiskDir := fs.String("ramdisk-dir", "", "directory of unpacked ramdisk contents to repack")
	second := fs.String("second", "", "path to the second-stage loader component")
	dtb := fs.String("dtb", "", "path to the dtb component")
	recoveryDtbo := fs.String("recovery-dtbo", "", "path to the recovery dtbo component")
	vendorRamdisk := fs.String("vendor-ramdisk", "", "path to a pre-built vendor ramdisk blob")
	vendorRamdiskDir := fs.String("vendor-ramdisk-dir", "", "directory of unpacked vendor ramdisk contents to repack")
	compression := fs.String("ramdisk-compression", "gzip", "gzip|lz4|zstd|cpio")
	force := fs.Bool("force", false, "recover from a bad magic or a too-short header instead of failing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("repack takes exactly one output image argument")
	}
	if *source == "" {
		return fmt.Errorf("-source-image is required")
	}

	comp, err := parseCompression(*compression)
	if err != nil {
		return err
	}

	input := bootimg.RepackInput{
		SourceImage:        *source,
		KernelPath:         *kernel,
		RamdiskPath:        *ramdisk,
		RamdiskDir:         *ramdiskDir,
		SecondPath:         *second,
		DTBPath:            *dtb,
		RecoveryDTBOPath:   *recoveryDtbo,
		VendorRamdiskPath:  *vendorRamdisk,
		VendorRamdiskDir:   *vendorRamdiskDir,
		RamdiskCompression: comp,
		Force:              *force,
	}
	if _, err := bootimg.Repack(input, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("repacked to %s\n", fs.Arg(0))
	return nil
}

// runFull extracts an image and repacks it unmodified into a second path,
// matching spec.md §6's "full" round-trip mode used for format verification.
func runFull(args []string) error {
	fs := flag.NewFlagSet("full", flag.ExitOnError)
	outDir := fs.String("output-dir", "out", "directory to extract components into")
	force := fs.Bool("force", false, "recover from a bad magic or a too-short header instead of failing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("full takes exactly two arguments: <input image> <output image>")
	}

	result, err := bootimg.Extract(fs.Arg(0), bootimg.ExtractOptions{
		OutputDir: *outDir,
		SkipAVB:   true,
		Force:     *force,
		Verbose:   true,
	})
	if err != nil {
		return err
	}

	// Only components Extract actually wrote are handed back to Repack.
	component := func(name string, p bootimg.Payload) string {
		if !p.Present() {
			return ""
		}
		return filepath.Join(*outDir, name)
	}
	input := bootimg.RepackInput{
		SourceImage:        fs.Arg(0),
		KernelPath:         filepath.Join(*outDir, "kernel"),
		SecondPath:         component("second", result.Image.Second),
		DTBPath:            component("dtb", result.Image.DTB),
		RecoveryDTBOPath:   component("recovery_dtbo", result.Image.RecoveryDTBO),
		RamdiskDir:         result.RamdiskDir,
		VendorRamdiskDir:   result.VendorRamdiskDir,
		RamdiskCompression: result.Image.RamdiskCompression,
		Force:              *force,
	}
	if _, err := bootimg.Repack(input, fs.Arg(1)); err != nil {
		return err
	}
	fmt.Printf("round-tripped %s -> %s -> %s\n", fs.Arg(0), *outDir, fs.Arg(1))
	return nil
}

func parseCompression(s string) (bootimg.RamdiskCompression, error) {
	switch s {
	case "gzip":
		return bootimg.CompressionGzip, nil
	case "lz4":
		return bootimg.CompressionLZ4, nil
	case "zstd":
		return bootimg.CompressionZSTD, nil
	case "cpio", "":
		return bootimg.CompressionCPIO, nil
	default:
		return 0, fmt.Errorf("unknown ramdisk compression %q", s)
	}
}
