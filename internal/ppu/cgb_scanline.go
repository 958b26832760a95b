package ppu

// VRAMBankReader extends VRAMReader with bank-aware access, needed to
// decode CGB tile-attribute bytes (which live in VRAM bank 1) alongside
// tile data that may itself live in either bank.
type VRAMBankReader interface {
	VRAMReader
	ReadBank(bank int, addr uint16) byte
}

// RenderBGScanlineCGB renders 160 BG pixels along with their CGB palette
// number and BG-to-OBJ priority bit, decoded from the bank-1 attribute
// map that mirrors mapBase at attrBase.
func RenderBGScanlineCGB(mem VRAMBankReader, mapBase, attrBase uint16, tileData8000 bool, scx, scy, ly byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	bgY := uint16(ly) + uint16(scy)
	fineYBase := byte(bgY & 7)
	mapY := (bgY >> 3) & 31
	fineX := int(scx & 7)
	tileX := (uint16(scx) >> 3) & 31

	x := 0
	first := true
	for x < 160 {
		idxAddr := mapBase + mapY*32 + tileX
		attrAddr := attrBase + mapY*32 + tileX
		tileNum := mem.ReadBank(0, idxAddr)
		attr := mem.ReadBank(1, attrAddr)

		bank := 0
		if attr&0x10 != 0 {
			bank = 1
		}
		xflip := attr&0x20 != 0
		yflip := attr&0x40 != 0
		palNum := attr & 0x07
		priority := attr&0x80 != 0

		fineY := fineYBase
		if yflip {
			fineY = 7 - fineY
		}
		base := tileDataAddr(tileData8000, tileNum, fineY)
		lo := mem.ReadBank(bank, base)
		hi := mem.ReadBank(bank, base+1)

		start := 0
		if first {
			start = fineX
			first = false
		}
		for col := start; col < 8 && x < 160; col++ {
			bit := 7 - byte(col)
			if xflip {
				bit = byte(col)
			}
			c := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			ci[x] = c
			pal[x] = palNum
			pri[x] = priority
			x++
		}
		tileX = (tileX + 1) & 31
	}
	return
}

// RenderWindowScanlineCGB is RenderBGScanlineCGB's window-layer counterpart:
// it starts painting at wxStart and uses winLine as the row within the
// window rather than the scrolled background row.
func RenderWindowScanlineCGB(mem VRAMBankReader, mapBase, attrBase uint16, tileData8000 bool, wxStart int, winLine byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	if wxStart >= 160 {
		return
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineYBase := winLine & 7
	tileX := uint16(0)
	x := wxStart
	for x < 160 {
		idxAddr := mapBase + mapY*32 + tileX
		attrAddr := attrBase + mapY*32 + tileX
		tileNum := mem.ReadBank(0, idxAddr)
		attr := mem.ReadBank(1, attrAddr)

		bank := 0
		if attr&0x10 != 0 {
			bank = 1
		}
		xflip := attr&0x20 != 0
		yflip := attr&0x40 != 0
		palNum := attr & 0x07
		priority := attr&0x80 != 0

		fineY := fineYBase
		if yflip {
			fineY = 7 - fineY
		}
		base := tileDataAddr(tileData8000, tileNum, fineY)
		lo := mem.ReadBank(bank, base)
		hi := mem.ReadBank(bank, base+1)

		for col := 0; col < 8 && x < 160; col++ {
			bit := 7 - byte(col)
			if xflip {
				bit = byte(col)
			}
			c := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			ci[x] = c
			pal[x] = palNum
			pri[x] = priority
			x++
		}
		tileX = (tileX + 1) & 31
	}
	return
}

func tileDataAddr(tileData8000 bool, tileNum byte, fineY byte) uint16 {
	if tileData8000 {
		return 0x8000 + uint16(tileNum)*16 + uint16(fineY)*2
	}
	return 0x9000 + uint16(int8(tileNum))*16 + uint16(fineY)*2
}
