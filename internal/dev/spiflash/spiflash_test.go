package spiflash

import "testing"

func TestNewFillsErasedCellsAndCopiesImage(t *testing.T) {
	f := New(Part8MiB, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	if f.ReadByteAt(0) != 0xDE || f.ReadByteAt(3) != 0xEF {
		t.Fatalf("image bytes not copied to offset 0")
	}
	if f.ReadByteAt(4) != 0xFF {
		t.Fatalf("uninitialized cell should read back 0xFF")
	}
}

func TestReadIDReturnsJEDECID(t *testing.T) {
	f := New(Part8MiB, nil)
	f.Select(true)
	f.Shift(cmdReadID)
	for i, want := range Part8MiB.JEDECID {
		if got := f.Shift(0); got != want {
			t.Fatalf("jedec byte %d: got %#x, want %#x", i, got, want)
		}
	}
	f.Select(false)
}

func TestReadCommandStreamsSequentialBytes(t *testing.T) {
	image := []byte{0x11, 0x22, 0x33, 0x44, 0x55}
	f := New(Part8MiB, image)
	f.Select(true)
	f.Shift(cmdRead)
	f.Shift(0x00) // address high
	f.Shift(0x00)
	f.Shift(0x01) // addr = 1
	for i, want := range image[1:] {
		if got := f.Shift(0); got != want {
			t.Fatalf("byte %d: got %#x, want %#x", i, got, want)
		}
	}
	f.Select(false)
}

func TestPageProgramRequiresWriteEnableAndOnlyClearsBits(t *testing.T) {
	f := New(Part8MiB, []byte{0xFF})
	f.Select(true)
	f.Shift(cmdPageProgram)
	f.Shift(0x00)
	f.Shift(0x00)
	f.Shift(0x00)
	f.Shift(0x0F) // 0xFF & 0x0F -> should NOT apply: write not enabled
	f.Select(false)
	if got := f.ReadByteAt(0); got != 0xFF {
		t.Fatalf("program without write-enable must not modify flash: got %#x", got)
	}

	f.Select(true)
	f.Shift(cmdWriteEnable)
	f.Select(false)

	f.Select(true)
	f.Shift(cmdPageProgram)
	f.Shift(0x00)
	f.Shift(0x00)
	f.Shift(0x00)
	f.Shift(0x0F)
	f.Select(false)
	if got := f.ReadByteAt(0); got != 0x0F {
		t.Fatalf("programmed byte: got %#x, want 0x0f", got)
	}
}

func TestSectorEraseResetsRegionToFF(t *testing.T) {
	f := New(Part8MiB, []byte{0x00, 0x00, 0x00, 0x00})
	f.Select(true)
	f.Shift(cmdWriteEnable)
	f.Select(false)

	f.Select(true)
	f.Shift(cmdSectorErase)
	f.Shift(0x00)
	f.Shift(0x00)
	f.Shift(0x00)
	f.Select(false)

	for i := 0; i < 4; i++ {
		if got := f.ReadByteAt(uint32(i)); got != 0xFF {
			t.Fatalf("byte %d after sector erase: got %#x, want 0xff", i, got)
		}
	}
}

func TestUnselectedBusReadsBackFF(t *testing.T) {
	f := New(Part8MiB, nil)
	if got := f.Shift(cmdRead); got != 0xFF {
		t.Fatalf("shift on unselected flash: got %#x, want 0xff", got)
	}
}
