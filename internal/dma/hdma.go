package dma

// HDMA models the CGB VRAM DMA controller (HDMA1-5, 0xFF51-0xFF55):
// general-purpose transfers complete immediately when triggered; H-Blank
// transfers move one 0x10-byte block per H-Blank entry until the
// requested length is exhausted or the CPU cancels it.
type HDMA struct {
	srcHi, srcLo byte
	dstHi, dstLo byte

	active    bool // true only while an HBlank-mode transfer is in progress
	hblank    bool // transfer mode: true = HBlank-paced, false = general purpose
	remaining int  // bytes left to copy (a multiple of 0x10)
	src, dst  uint16
}

func (h *HDMA) WriteSrcHi(v byte) { h.srcHi = v }
func (h *HDMA) WriteSrcLo(v byte) { h.srcLo = v & 0xF0 }
func (h *HDMA) WriteDstHi(v byte) { h.dstHi = v & 0x1F }
func (h *HDMA) WriteDstLo(v byte) { h.dstLo = v & 0xF0 }

func (h *HDMA) source() uint16      { return uint16(h.srcHi)<<8 | uint16(h.srcLo) }
func (h *HDMA) destination() uint16 { return 0x8000 | uint16(h.dstHi)<<8 | uint16(h.dstLo) }

// Active reports whether an HBlank-paced transfer is still in progress.
func (h *HDMA) Active() bool { return h.active }

// WriteControl handles a write to HDMA5 (0xFF55). If bit7 is clear, it
// starts (and, for general-purpose mode, fully executes) a transfer; if
// an HBlank transfer is already active and bit7 is clear, the write
// instead terminates it (real-hardware "stop" quirk).
func (h *HDMA) WriteControl(value byte, copyBlock func(src, dst uint16, n int)) {
	if h.active && value&0x80 == 0 {
		h.active = false
		return
	}
	length := (int(value&0x7F) + 1) * 0x10
	h.hblank = value&0x80 != 0
	h.src = h.source()
	h.dst = h.destination()
	h.remaining = length
	if !h.hblank {
		copyBlock(h.src, h.dst, length)
		h.remaining = 0
		h.active = false
		return
	}
	h.active = true
}

// ReadControl returns HDMA5: 0xFF (bit7 set) when no HBlank transfer is
// active; while one is active, bit7 is clear and bits0-6 hold the
// remaining length in 0x10-byte blocks minus one.
func (h *HDMA) ReadControl() byte {
	if !h.active {
		return 0xFF
	}
	blocks := h.remaining/0x10 - 1
	if blocks < 0 {
		blocks = 0
	}
	return byte(blocks) & 0x7F
}

// StepHBlank copies one 0x10-byte block on H-Blank entry if an
// HBlank-paced transfer is active.
func (h *HDMA) StepHBlank(copyBlock func(src, dst uint16, n int)) {
	if !h.active || h.remaining <= 0 {
		return
	}
	copyBlock(h.src, h.dst, 0x10)
	h.src += 0x10
	h.dst += 0x10
	h.remaining -= 0x10
	if h.remaining <= 0 {
		h.active = false
	}
}

type HDMAState struct {
	SrcHi, SrcLo, DstHi, DstLo byte
	Active, HBlankMode         bool
	Remaining                  int
	Src, Dst                   uint16
}

func (h *HDMA) State() HDMAState {
	return HDMAState{h.srcHi, h.srcLo, h.dstHi, h.dstLo, h.active, h.hblank, h.remaining, h.src, h.dst}
}

func (h *HDMA) Restore(s HDMAState) {
	h.srcHi, h.srcLo, h.dstHi, h.dstLo = s.SrcHi, s.SrcLo, s.DstHi, s.DstLo
	h.active, h.hblank, h.remaining, h.src, h.dst = s.Active, s.HBlankMode, s.Remaining, s.Src, s.Dst
}
