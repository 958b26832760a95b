package ppu

import "sort"

// Sprite is one selected OAM entry for the current scanline, already
// adjusted so X/Y are screen-relative top-left coordinates (not the raw
// OAM +8/+16 offsets).
type Sprite struct {
	X, Y     byte
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ComposeSpriteLine renders up to 10 already-selected sprites over a
// background color-index line, returning the composed 2-bit sprite color
// indices (0 = transparent, show background). Behind-BG priority (Attr
// bit 7) hides a sprite pixel wherever the background color index is
// nonzero. Overlapping sprites resolve by X (lower wins) then OAM index
// (lower wins), matching DMG priority; cgb selects OAM-index-only
// ordering.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgb bool) [160]byte {
	var out [160]byte
	ordered := make([]Sprite, len(sprites))
	copy(ordered, sprites)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !cgb && ordered[i].X != ordered[j].X {
			return ordered[i].X < ordered[j].X
		}
		return ordered[i].OAMIndex < ordered[j].OAMIndex
	})

	var claimed [160]bool
	for _, s := range ordered {
		flipX := s.Attr&0x20 != 0
		flipY := s.Attr&0x40 != 0
		bgPriority := s.Attr&0x80 != 0

		row := ly - s.Y
		if flipY {
			row = 7 - row
		}
		base := uint16(s.Tile)*16 + uint16(row)*2
		lo := mem.Read(0x8000 + base)
		hi := mem.Read(0x8000 + base + 1)

		for col := 0; col < 8; col++ {
			screenX := int(s.X) + col
			if screenX < 0 || screenX >= 160 {
				continue
			}
			if claimed[screenX] {
				continue
			}
			bit := col
			if !flipX {
				bit = 7 - col
			}
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			if bgPriority && bgci[screenX] != 0 {
				claimed[screenX] = true
				continue
			}
			out[screenX] = ci | (byte(paletteBitsOf(s)) << 2)
			claimed[screenX] = true
		}
	}
	return out
}

// paletteBitsOf packs the OBP0/OBP1 selector (DMG, bit 4) into the low
// bits of the returned byte so callers can recover which OBJ palette a
// composed pixel used without re-reading attribute bytes.
func paletteBitsOf(s Sprite) byte {
	if s.Attr&0x10 != 0 {
		return 1
	}
	return 0
}

// selectSpritesForLine scans OAM for up to 10 sprites visible on scanline
// ly, given the current sprite height (8 or 16).
func selectSpritesForLine(oam *[0xA0]byte, ly byte, tall bool) []Sprite {
	height := byte(8)
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		oamY := oam[base+0]
		oamX := oam[base+1]
		tile := oam[base+2]
		attr := oam[base+3]
		if oamX == 0 {
			continue
		}
		top := int(oamY) - 16
		if int(ly) < top || int(ly) >= top+int(height) {
			continue
		}
		if tall {
			tile &^= 0x01
		}
		out = append(out, Sprite{
			X: oamX - 8, Y: byte(top), Tile: tile, Attr: attr, OAMIndex: i,
		})
	}
	return out
}
