package bootimg

import "testing"

func TestPlanLayoutBasic(t *testing.T) {
	img := &BootImage{
		PageSize: 4096,
		Kernel:   Payload{Size: 5000},
		Ramdisk:  Payload{Size: 3000},
	}
	if err := planLayout(img, 1<<20); err != nil {
		t.Fatalf("planLayout: %v", err)
	}
	if img.Kernel.Offset != 4096 {
		t.Fatalf("kernel offset = %d, want 4096", img.Kernel.Offset)
	}
	wantRamdisk := align_to(4096+5000, 4096)
	if img.Ramdisk.Offset != wantRamdisk {
		t.Fatalf("ramdisk offset = %d, want %d", img.Ramdisk.Offset, wantRamdisk)
	}
}

func TestPlanLayoutDetectsOverrun(t *testing.T) {
	img := &BootImage{
		PageSize: 4096,
		Kernel:   Payload{Size: 5000},
	}
	if err := planLayout(img, 100); err == nil {
		t.Fatal("expected overrun error for a tiny file size")
	}
}

func TestPlanLayoutRecoveryDtboZeroSizeZerosOffset(t *testing.T) {
	img := &BootImage{
		PageSize:     4096,
		Kernel:       Payload{Size: 100},
		RecoveryDTBO: Payload{Size: 0, Offset: 0x9999},
	}
	if err := planLayout(img, 1<<20); err != nil {
		t.Fatalf("planLayout: %v", err)
	}
	if img.RecoveryDTBO.Offset != 0 {
		t.Fatalf("expected recovery_dtbo offset 0 when size is 0, got %d", img.RecoveryDTBO.Offset)
	}
}

func TestCheckLayoutDetectsCollision(t *testing.T) {
	img := &BootImage{
		PageSize: 4096,
		Kernel:   Payload{Size: 5000, Offset: 4096},
		Ramdisk:  Payload{Size: 5000, Offset: 6000}, // overlaps kernel's tail
	}
	if err := checkLayout(img, 1<<20); err == nil {
		t.Fatal("expected layout collision error")
	}
}
