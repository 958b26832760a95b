package cart

import (
	"bytes"
	"encoding/gob"
)

// MBC2 caps ROM at 256KB (16 banks) and has a built-in 512x4-bit RAM block
// rather than external RAM; only the lower nibble of each stored byte is
// significant; the upper nibble reads back as 1s on real hardware. RAM
// enable and ROM bank select share the 0x0000-0x3FFF write region, gated
// by bit 8 of the address: bit8 clear selects RAM enable, bit8 set selects
// the ROM bank.
type MBC2 struct {
	rom []byte
	ram [512]byte // only the low nibble of each byte is used

	ramEnabled bool
	romBank    byte // 4 bits (1..15, 0 maps to 1)
}

func NewMBC2(rom []byte) *MBC2 {
	m := &MBC2{rom: rom}
	m.romBank = 1
	return m
}

func (m *MBC2) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x0F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		// The 512x4-bit RAM is mirrored across the whole A000-BFFF window.
		idx := int(addr-0xA000) % 512
		return 0xF0 | (m.ram[idx] & 0x0F)
	default:
		return 0xFF
	}
}

func (m *MBC2) Write(addr uint16, value byte) {
	switch {
	case addr < 0x4000:
		// Bit 8 of the address selects RAM-enable vs ROM-bank-select writes.
		if addr&0x0100 == 0 {
			m.ramEnabled = (value & 0x0F) == 0x0A
			return
		}
		bank := value & 0x0F
		if bank == 0 {
			bank = 1
		}
		m.romBank = bank
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		idx := int(addr-0xA000) % 512
		m.ram[idx] = value & 0x0F
	}
}

// BatteryBacked implementation.
func (m *MBC2) SaveRAM() []byte {
	out := make([]byte, len(m.ram))
	copy(out, m.ram[:])
	return out
}

func (m *MBC2) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	copy(m.ram[:], data)
}

type mbc2StateV1 struct {
	RAM        [512]byte
	RamEnabled bool
	RomBank    byte
}

func (m *MBC2) SaveState() []byte {
	s := mbc2StateV1{RAM: m.ram, RamEnabled: m.ramEnabled, RomBank: m.romBank}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(&s)
	return buf.Bytes()
}

func (m *MBC2) LoadState(data []byte) {
	var s mbc2StateV1
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	m.ram = s.RAM
	m.ramEnabled = s.RamEnabled
	m.romBank = s.RomBank
}
