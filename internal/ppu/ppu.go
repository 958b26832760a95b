package ppu

import (
	"bytes"
	"encoding/gob"
)

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs captures the register values in effect when a scanline began
// rendering, so callers (and tests) can inspect mid-frame raster effects
// and the per-line window counter.
type LineRegs struct {
	SCX, SCY, WY, WX, LCDC, BGP, OBP0, OBP1 byte
	WinLine                                 int
	WindowVisible                           bool
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, CGB bank/palette state, and
// basic timing. It exposes CPU-facing Read/Write for VRAM/OAM and PPU IO
// regs, and renders a scanline at a time into an RGBA framebuffer.
type PPU struct {
	// memory
	vram  [0x2000]byte // 0x8000-0x9FFF, bank 0
	vram1 [0x2000]byte // CGB bank 1
	oam   [0xA0]byte   // 0xFE00-0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B
	vbk  byte // FF4F, bit0 selects VRAM bank

	bgps byte // FF68 (bit7 auto-increment, bits0-5 index)
	ocps byte // FF6A
	bgPalRAM  [64]byte
	objPalRAM [64]byte

	dot int // dots within current line [0..455]

	cgb           bool
	winLineCtr    int
	lineRegs      [144]LineRegs
	fb            [160 * 144 * 4]byte

	req InterruptRequester
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

// SetCGB toggles CGB-specific register/palette behavior and scanline
// compositing (bank-aware tile attributes, palette RAM instead of
// BGP/OBP0/OBP1 greyscale).
func (p *PPU) SetCGB(v bool) { p.cgb = v }

// Framebuffer returns the most recently composited frame as packed RGBA8888.
func (p *PPU) Framebuffer() []byte { return p.fb[:] }

// LineRegs returns the registers captured when scanline ly entered pixel
// transfer (mode 3). Zero value if that line hasn't been reached yet.
func (p *PPU) LineRegs(ly int) LineRegs {
	if ly < 0 || ly >= 144 {
		return LineRegs{}
	}
	return p.lineRegs[ly]
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vramBank(p.vbk&1, addr-0x8000)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	case addr == 0xFF4F:
		return 0xFE | (p.vbk & 1)
	case addr == 0xFF68:
		return p.bgps
	case addr == 0xFF69:
		return p.bgPalRAM[p.bgps&0x3F]
	case addr == 0xFF6A:
		return p.ocps
	case addr == 0xFF6B:
		return p.objPalRAM[p.ocps&0x3F]
	default:
		return 0xFF
	}
}

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.setVRAMBank(p.vbk&1, addr-0x8000, value)
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCtr = -1
			p.setMode(0)
			p.updateLYC()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineCtr = -1
			p.setMode(2)
			p.updateLYC()
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		// LY is read-only; writes are ignored on real hardware.
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	case addr == 0xFF4F:
		p.vbk = value & 1
	case addr == 0xFF68:
		p.bgps = value & 0xBF
	case addr == 0xFF69:
		p.bgPalRAM[p.bgps&0x3F] = value
		if p.bgps&0x80 != 0 {
			p.bgps = (p.bgps & 0xC0) | ((p.bgps + 1) & 0x3F)
		}
	case addr == 0xFF6A:
		p.ocps = value & 0xBF
	case addr == 0xFF6B:
		p.objPalRAM[p.ocps&0x3F] = value
		if p.ocps&0x80 != 0 {
			p.ocps = (p.ocps & 0xC0) | ((p.ocps + 1) & 0x3F)
		}
	}
}

func (p *PPU) vramBank(bank byte, off uint16) byte {
	if bank == 0 {
		return p.vram[off]
	}
	return p.vram1[off]
}

func (p *PPU) setVRAMBank(bank byte, off uint16, v byte) {
	if bank == 0 {
		p.vram[off] = v
	} else {
		p.vram1[off] = v
	}
}

// Read implements VRAMReader for internal scanline rendering: a raw,
// mode-gate-free view of VRAM bank 0.
func (p *PPU) Read(addr uint16) byte {
	if addr < 0x8000 || addr >= 0xA000 {
		return 0xFF
	}
	return p.vram[addr-0x8000]
}

// ReadBank implements VRAMBankReader for CGB scanline rendering.
func (p *PPU) ReadBank(bank int, addr uint16) byte {
	if addr < 0x8000 || addr >= 0xA000 {
		return 0xFF
	}
	if bank == 0 {
		return p.vram[addr-0x8000]
	}
	return p.vram1[addr-0x8000]
}

// Tick advances PPU state by the given number of dots (CPU cycles).
func (p *PPU) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if (p.lcdc & 0x80) == 0 { // LCD off
			continue
		}
		p.dot++
		var mode byte
		if p.ly >= 144 {
			mode = 1
		} else {
			switch {
			case p.dot < 80:
				mode = 2
			case p.dot < 80+172:
				mode = 3
			default:
				mode = 0
			}
		}
		p.setMode(mode)

		if p.dot >= 456 {
			p.dot = 0
			p.ly++
			if p.ly == 144 {
				if p.req != nil {
					p.req(0)
				}
				if (p.stat & (1 << 4)) != 0 {
					if p.req != nil {
						p.req(1)
					}
				}
			} else if p.ly > 153 {
				p.ly = 0
				p.winLineCtr = -1
			}
			p.updateLYC()
			if p.ly >= 144 {
				p.setMode(1)
			} else {
				p.setMode(2)
			}
		}
	}
}

func (p *PPU) setMode(mode byte) {
	prev := p.stat & 0x03
	if prev == mode {
		return
	}
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	switch mode {
	case 0: // HBlank
		if (p.stat & (1 << 3)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 2: // OAM
		if (p.stat & (1 << 5)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	case 3:
		p.captureAndRenderLine()
	}
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if (p.stat & (1 << 6)) != 0 {
			if p.req != nil {
				p.req(1)
			}
		}
	} else {
		p.stat &^= 1 << 2
	}
}

// captureAndRenderLine records the registers in effect for this scanline
// and composites BG+window+sprites into the framebuffer. Real hardware
// streams pixels dot-by-dot through mode 3; this renders the whole line
// at once using the registers sampled at mode-3 entry, which is accurate
// for software that doesn't perform mid-scanline raster tricks.
func (p *PPU) captureAndRenderLine() {
	ly := p.ly
	winEnabled := p.lcdc&0x20 != 0 && p.lcdc&0x01 != 0
	visible := winEnabled && p.wy <= ly && p.wx < 167
	winLine := 0
	if visible {
		p.winLineCtr++
		winLine = p.winLineCtr
	}
	p.lineRegs[ly] = LineRegs{
		SCX: p.scx, SCY: p.scy, WY: p.wy, WX: p.wx,
		LCDC: p.lcdc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WinLine: winLine, WindowVisible: visible,
	}

	if p.lcdc&0x80 == 0 {
		return
	}

	bgMapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	winMapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		winMapBase = 0x9C00
	}
	tileData8000 := p.lcdc&0x10 != 0
	bgAttrBase := bgMapBase + 0x2000
	winAttrBase := winMapBase + 0x2000

	var bgci [160]byte
	var bgPal [160]byte
	var bgPri [160]bool
	if p.cgb {
		bgci, bgPal, bgPri = RenderBGScanlineCGB(p, bgMapBase, bgAttrBase, tileData8000, p.scx, p.scy, ly)
	} else if p.lcdc&0x01 != 0 {
		bgci = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, p.scx, p.scy, ly)
	}

	if visible {
		wxStart := int(p.wx) - 7
		if p.cgb {
			wci, wPal, wPri := RenderWindowScanlineCGB(p, winMapBase, winAttrBase, tileData8000, wxStart, byte(winLine))
			for x := wxStart; x < 160; x++ {
				if x < 0 {
					continue
				}
				bgci[x] = wci[x]
				bgPal[x] = wPal[x]
				bgPri[x] = wPri[x]
			}
		} else {
			wci := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, byte(winLine))
			for x := wxStart; x < 160; x++ {
				if x < 0 {
					continue
				}
				bgci[x] = wci[x]
			}
		}
	}

	var spci [160]byte
	if p.lcdc&0x02 != 0 {
		tall := p.lcdc&0x04 != 0
		sprites := selectSpritesForLine(&p.oam, ly, tall)
		spci = ComposeSpriteLine(p, sprites, ly, bgci, p.cgb)
	}

	row := int(ly) * 160 * 4
	for x := 0; x < 160; x++ {
		var r, g, b byte
		if spci[x] != 0 {
			ci := spci[x] & 0x03
			palSel := spci[x] >> 2
			if p.cgb {
				r, g, b = p.objColor(int(palSel), int(ci))
			} else {
				pal := p.obp0
				if palSel == 1 {
					pal = p.obp1
				}
				r, g, b = dmgShade(shadeOf(pal, ci))
			}
		} else if p.cgb {
			r, g, b = p.bgColor(int(bgPal[x]), int(bgci[x]))
		} else {
			r, g, b = dmgShade(shadeOf(p.bgp, bgci[x]))
		}
		off := row + x*4
		p.fb[off+0] = r
		p.fb[off+1] = g
		p.fb[off+2] = b
		p.fb[off+3] = 0xFF
	}
}

func shadeOf(pal byte, ci byte) byte { return (pal >> (ci * 2)) & 0x03 }

func dmgShade(shade byte) (r, g, b byte) {
	switch shade {
	case 0:
		return 0xE0, 0xF8, 0xD0
	case 1:
		return 0x88, 0xC0, 0x70
	case 2:
		return 0x34, 0x68, 0x56
	default:
		return 0x08, 0x18, 0x20
	}
}

func (p *PPU) bgColor(pal, ci int) (r, g, b byte) { return cgb555(p.bgPalRAM[pal*8+ci*2], p.bgPalRAM[pal*8+ci*2+1]) }
func (p *PPU) objColor(pal, ci int) (r, g, b byte) {
	return cgb555(p.objPalRAM[pal*8+ci*2], p.objPalRAM[pal*8+ci*2+1])
}

func cgb555(lo, hi byte) (r, g, b byte) {
	v := uint16(lo) | uint16(hi)<<8
	r5 := byte(v & 0x1F)
	g5 := byte((v >> 5) & 0x1F)
	b5 := byte((v >> 10) & 0x1F)
	return r5<<3 | r5>>2, g5<<3 | g5>>2, b5<<3 | b5>>2
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

type ppuStateV1 struct {
	VRAM, VRAM1                              []byte
	OAM                                       []byte
	LCDC, STAT, SCY, SCX, LY, LYC             byte
	BGP, OBP0, OBP1, WY, WX, VBK              byte
	BGPS, OCPS                                byte
	BGPalRAM, OBJPalRAM                       []byte
	Dot                                       int
	CGB                                       bool
	WinLineCtr                                int
}

// SaveState serializes VRAM/OAM, registers, CGB palette RAM, and timing
// state needed to resume mid-frame.
func (p *PPU) SaveState() []byte {
	s := ppuStateV1{
		VRAM: append([]byte(nil), p.vram[:]...), VRAM1: append([]byte(nil), p.vram1[:]...),
		OAM:    append([]byte(nil), p.oam[:]...),
		LCDC:   p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx, VBK: p.vbk,
		BGPS: p.bgps, OCPS: p.ocps,
		BGPalRAM: append([]byte(nil), p.bgPalRAM[:]...), OBJPalRAM: append([]byte(nil), p.objPalRAM[:]...),
		Dot: p.dot, CGB: p.cgb, WinLineCtr: p.winLineCtr,
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(&s)
	return buf.Bytes()
}

// LoadState restores a previously saved PPU state.
func (p *PPU) LoadState(data []byte) {
	var s ppuStateV1
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	copy(p.vram[:], s.VRAM)
	copy(p.vram1[:], s.VRAM1)
	copy(p.oam[:], s.OAM)
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx, p.vbk = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX, s.VBK
	p.bgps, p.ocps = s.BGPS, s.OCPS
	copy(p.bgPalRAM[:], s.BGPalRAM)
	copy(p.objPalRAM[:], s.OBJPalRAM)
	p.dot, p.cgb, p.winLineCtr = s.Dot, s.CGB, s.WinLineCtr
}
