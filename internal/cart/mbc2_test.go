package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default switchable bank read got %02X want 01", got)
	}

	// Bit 8 of the address set selects ROM bank (not RAM enable).
	m.Write(0x2100, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	// Writing 0 remaps to bank 1.
	m.Write(0x2100, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_BuiltInRAM(t *testing.T) {
	rom := make([]byte, 256*1024)
	m := NewMBC2(rom)

	// RAM reads as 0xFF until enabled.
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	// Bit 8 of the address clear selects RAM enable.
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0xF7) // only the low nibble is stored
	if got := m.Read(0xA000); got != 0xF7 {
		t.Fatalf("RAM RW got %02X want F7 (upper nibble forced to 1s)", got)
	}

	m.Write(0xA000, 0x03)
	if got := m.Read(0xA000); got != 0xF3 {
		t.Fatalf("RAM nibble mask got %02X want F3", got)
	}

	// The 512-entry RAM mirrors across the whole A000-BFFF window.
	if got := m.Read(0xA200); got != 0xF3 {
		t.Fatalf("RAM mirror got %02X want F3", got)
	}
}

func TestMBC2_BatterySaveLoad(t *testing.T) {
	rom := make([]byte, 256*1024)
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A)
	m.Write(0xA010, 0x0C)

	data := m.SaveRAM()
	n := NewMBC2(rom)
	n.LoadRAM(data)
	n.Write(0x0000, 0x0A)
	if got := n.Read(0xA010); got != 0xFC {
		t.Fatalf("battery restore got %02X want FC", got)
	}
}
