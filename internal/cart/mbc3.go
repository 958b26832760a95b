package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// MBC3 implements ROM/RAM banking plus the MBC3 real-time clock.
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank low 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (0-3) or RTC register select (08-0C)
// - 6000-7FFF: Latch clock (a 00 then 01 write copies the live clock into the latched snapshot)
// - A000-BFFF: External RAM, or the latched RTC register selected above, when enabled
// ROM: bank 0 fixed at 0000-3FFF; switchable 4000-7FFF uses bank (1..127)
//
// The clock runs on wall-clock time rather than CPU cycles, matching the
// real cartridge's battery-backed quartz: it keeps advancing while the
// emulator is paused or closed, not just while a frame is being stepped.

const (
	rtcRegSeconds = 0x08
	rtcRegMinutes = 0x09
	rtcRegHours   = 0x0A
	rtcRegDayLow  = 0x0B
	rtcRegDayHigh = 0x0C
)

// nowUnix is overridden in tests to pin the wall clock.
var nowUnix = func() int64 { return time.Now().Unix() }

type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte
	ramBank    byte // 0-3 selects a RAM bank; 0x08-0x0C selects an RTC register

	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9-bit day counter
	rtcHalt                 bool
	rtcCarry                bool
	lastRTCWallSec          int64

	lastLatch               byte // last value written to 0x6000-0x7FFF, for the 0->1 latch edge
	latSec, latMin, latHour byte
	latDay                  uint16
	latHalt, latCarry       bool
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// updateRTC folds elapsed wall-clock seconds into the live clock registers.
func (m *MBC3) updateRTC() {
	now := nowUnix()
	elapsed := now - m.lastRTCWallSec
	m.lastRTCWallSec = now
	if elapsed <= 0 || m.rtcHalt {
		return
	}
	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay)*86400 + elapsed
	day := total / 86400
	rem := total % 86400
	m.rtcHour = byte(rem / 3600)
	rem %= 3600
	m.rtcMin = byte(rem / 60)
	m.rtcSec = byte(rem % 60)
	if day > 0x1FF {
		m.rtcCarry = true
		day %= 0x200
	}
	m.rtcDay = uint16(day)
}

func (m *MBC3) selectingRTC() bool {
	return m.ramBank >= rtcRegSeconds && m.ramBank <= rtcRegDayHigh
}

func (m *MBC3) Read(addr uint16) byte {
	m.updateRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
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
		if m.selectingRTC() {
			switch m.ramBank {
			case rtcRegSeconds:
				return m.latSec
			case rtcRegMinutes:
				return m.latMin
			case rtcRegHours:
				return m.latHour
			case rtcRegDayLow:
				return byte(m.latDay & 0xFF)
			case rtcRegDayHigh:
				v := byte(m.latDay>>8) & 0x01
				if m.latHalt {
					v |= 0x40
				}
				if m.latCarry {
					v |= 0x80
				}
				return v
			}
			return 0xFF
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 || (value >= rtcRegSeconds && value <= rtcRegDayHigh) {
			m.ramBank = value
		}
	case addr < 0x8000:
		if value == 0x01 && m.lastLatch == 0x00 {
			m.updateRTC()
			m.latSec, m.latMin, m.latHour, m.latDay = m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay
			m.latHalt, m.latCarry = m.rtcHalt, m.rtcCarry
		}
		m.lastLatch = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.selectingRTC() {
			m.updateRTC()
			switch m.ramBank {
			case rtcRegSeconds:
				m.rtcSec = value % 60
			case rtcRegMinutes:
				m.rtcMin = value % 60
			case rtcRegHours:
				m.rtcHour = value % 24
			case rtcRegDayLow:
				m.rtcDay = (m.rtcDay & 0x100) | uint16(value)
			case rtcRegDayHigh:
				m.rtcDay = (m.rtcDay & 0xFF) | uint16(value&0x01)<<8
				m.rtcHalt = value&0x40 != 0
				m.rtcCarry = value&0x80 != 0
			}
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

// BatteryBacked implementation. RTC state rides along with the RAM image,
// matching how real MBC3 save files append clock data after SRAM.
func (m *MBC3) SaveRAM() []byte {
	m.updateRTC()
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(append([]byte(nil), m.ram...))
	_ = enc.Encode(m.rtcSec)
	_ = enc.Encode(m.rtcMin)
	_ = enc.Encode(m.rtcHour)
	_ = enc.Encode(m.rtcDay)
	_ = enc.Encode(m.rtcHalt)
	_ = enc.Encode(m.rtcCarry)
	_ = enc.Encode(m.lastRTCWallSec)
	return buf.Bytes()
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) == 0 {
		return
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	var ram []byte
	if err := dec.Decode(&ram); err != nil {
		return
	}
	copy(m.ram, ram)
	_ = dec.Decode(&m.rtcSec)
	_ = dec.Decode(&m.rtcMin)
	_ = dec.Decode(&m.rtcHour)
	_ = dec.Decode(&m.rtcDay)
	_ = dec.Decode(&m.rtcHalt)
	_ = dec.Decode(&m.rtcCarry)
	_ = dec.Decode(&m.lastRTCWallSec)
}

type mbc3StateV1 struct {
	RAM                     []byte
	RamEnabled              bool
	RomBank, RamBank        byte
	RtcSec, RtcMin, RtcHour byte
	RtcDay                  uint16
	RtcHalt, RtcCarry       bool
	LastRTCWallSec          int64
	LastLatch               byte
	LatSec, LatMin, LatHour byte
	LatDay                  uint16
	LatHalt, LatCarry       bool
}

func (m *MBC3) SaveState() []byte {
	s := mbc3StateV1{
		RAM: append([]byte(nil), m.ram...), RamEnabled: m.ramEnabled,
		RomBank: m.romBank, RamBank: m.ramBank,
		RtcSec: m.rtcSec, RtcMin: m.rtcMin, RtcHour: m.rtcHour, RtcDay: m.rtcDay,
		RtcHalt: m.rtcHalt, RtcCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		LastLatch: m.lastLatch,
		LatSec:    m.latSec, LatMin: m.latMin, LatHour: m.latHour, LatDay: m.latDay,
		LatHalt: m.latHalt, LatCarry: m.latCarry,
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(&s)
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3StateV1
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(m.ram, s.RAM)
	m.ramEnabled = s.RamEnabled
	m.romBank, m.ramBank = s.RomBank, s.RamBank
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RtcSec, s.RtcMin, s.RtcHour, s.RtcDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RtcHalt, s.RtcCarry, s.LastRTCWallSec
	m.lastLatch = s.LastLatch
	m.latSec, m.latMin, m.latHour, m.latDay = s.LatSec, s.LatMin, s.LatHour, s.LatDay
	m.latHalt, m.latCarry = s.LatHalt, s.LatCarry
}
