package emu

import (
	"bytes"
	"encoding/gob"
	"errors"
	"io"
	"os"

	"github.com/mnoll-dev/gbcore/internal/bus"
	"github.com/mnoll-dev/gbcore/internal/cart"
	"github.com/mnoll-dev/gbcore/internal/cpu"
	"github.com/mnoll-dev/gbcore/internal/debug"
)

// cyclesPerFrame is one DMG/CGB frame's worth of T-cycles (154 scanlines
// of 456 cycles each), the unit StepFrame advances by.
const cyclesPerFrame = 70224

// Buttons is the joypad state for a single frame; true means pressed.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

// cgbCompatSetNames/cgbCompatSets give every DMG-only title a built-in
// CGB colorization choice, the same trick real Game Boy Color hardware
// performs for non-CGB carts: a curated 4-shade palette is preloaded
// into BG palette 0 and OBJ palettes 0/1, then the PPU runs in CGB mode
// against tile data that never touches CGB attribute bytes, so every
// tile keeps palette index 0 and is recolored uniformly.
var cgbCompatSetNames = []string{"Green", "Sepia", "Blue", "Red", "Pastel", "Mono"}

var cgbCompatSets = [][4][3]byte{
	{{155, 188, 15}, {139, 172, 15}, {48, 98, 48}, {15, 56, 15}},
	{{255, 246, 211}, {206, 159, 102}, {139, 94, 60}, {56, 38, 31}},
	{{200, 230, 255}, {110, 170, 220}, {60, 100, 170}, {20, 40, 90}},
	{{255, 220, 220}, {230, 120, 120}, {170, 60, 60}, {80, 20, 20}},
	{{255, 240, 245}, {255, 200, 220}, {210, 140, 180}, {120, 70, 110}},
	{{255, 255, 255}, {170, 170, 170}, {85, 85, 85}, {0, 0, 0}},
}

// Machine wires a cartridge, bus, and CPU together and drives them one
// frame at a time for a host (a UI, a headless runner, a test harness).
type Machine struct {
	cfg  Config
	w, h int
	fb   []byte // RGBA 160x144*4

	bus *bus.Bus
	cpu *cpu.CPU

	header    *cart.Header
	cgbNative bool
	useCGBBG  bool

	compatPalette int

	romPath      string
	bootROM      []byte
	serialWriter io.Writer

	videoSink    VideoSink
	audioSink    AudioSink
	joypadSource JoypadSource
	store        PersistenceStore

	debugCtl    *debug.Controller
	watch       *debug.Watchpoints
	breakpoints map[uint16]bool
}

func New(cfg Config) *Machine {
	return &Machine{
		cfg: cfg, w: 160, h: 144,
		fb:          make([]byte, 160*144*4),
		watch:       debug.NewWatchpoints(),
		breakpoints: make(map[uint16]bool),
	}
}

// LoadCartridge builds a fresh cartridge/bus/CPU stack from rom bytes and
// resets the CPU to its power-on state. boot, if non-empty, overrides any
// boot ROM set earlier via SetBootROM. A machine can be reloaded with a
// new cartridge at any time; the previous bus/CPU are discarded.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	if len(rom) == 0 {
		return errors.New("gbcore: empty ROM data")
	}

	c := cart.NewCartridge(rom)
	b := bus.NewWithCartridge(c)
	cp := cpu.New(b)

	h, _ := cart.ParseHeader(rom) // tolerate malformed/homebrew headers; h may stay nil

	m.bus = b
	m.cpu = cp
	m.header = h
	m.cgbNative = h != nil && (h.CGBFlag == 0x80 || h.CGBFlag == 0xC0)

	bootData := boot
	if len(bootData) == 0 {
		bootData = m.bootROM
	}
	if len(bootData) >= 0x100 {
		m.bootROM = bootData
		b.SetBootROM(bootData)
	}
	if m.serialWriter != nil {
		b.SetSerialWriter(m.serialWriter)
	}
	if pid, ok := autoCompatPaletteFromHeader(h); ok {
		m.compatPalette = pid
	}

	if len(m.bootROM) >= 0x100 {
		cp.SetPC(0x0000)
	} else {
		cp.ResetNoBoot()
		cp.SetPC(0x0100)
	}
	m.applyCGBMode()
	return nil
}

// LoadROMFromFile reads rom bytes from path and loads them, reusing any
// boot ROM previously installed via SetBootROM. Records path so ROMPath
// reflects where the cartridge came from (used for .sav sibling files).
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := m.LoadCartridge(data, nil); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// SetBootROM installs a DMG boot ROM image. It is stored even before a
// cartridge is loaded and applied immediately to the current bus, if any.
func (m *Machine) SetBootROM(data []byte) {
	m.bootROM = data
	if m.bus != nil && len(data) >= 0x100 {
		m.bus.SetBootROM(data)
	}
}

// SetSerialWriter installs a sink for bytes written through the serial
// port (SB/SC), e.g. for capturing test ROM output.
func (m *Machine) SetSerialWriter(w io.Writer) {
	m.serialWriter = w
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetUseFetcherBG sets the UseFetcherBG config flag. The flag is only
// stored: the PPU renders the DMG background through the fetcher/FIFO
// path whatever its value.
func (m *Machine) SetUseFetcherBG(v bool) { m.cfg.UseFetcherBG = v }

// ROMPath returns the filesystem path the current cartridge was loaded
// from, or "" if it was loaded directly from bytes.
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header's title field, or "" if no valid
// header was parsed.
func (m *Machine) ROMTitle() string {
	if m.header == nil {
		return ""
	}
	return m.header.Title
}

// stepFrameCycles runs CPU instructions until at least one frame's worth
// of T-cycles has elapsed. CPU.Step already drives Bus.Tick internally,
// so this only needs to accumulate the cycle counts Step returns.
func (m *Machine) stepFrameCycles() {
	if m.cpu == nil {
		return
	}
	if m.joypadSource != nil {
		m.SetButtons(m.joypadSource.Poll())
	}
	total := 0
	for total < cyclesPerFrame {
		if m.debugCtl != nil {
			if cmd, ok := m.debugCtl.Poll(); ok {
				m.handleDebugCommand(cmd)
			}
		}
		if len(m.breakpoints) > 0 && m.breakpoints[m.cpu.PC] {
			if m.debugCtl != nil {
				m.debugCtl.Reply(debug.Result{Kind: debug.ResultBreak, Addr: m.cpu.PC})
			}
			break
		}
		total += m.cpu.Step()
	}
	if m.audioSink != nil && m.bus != nil {
		if n := m.bus.APU().StereoAvailable(); n > 0 {
			m.audioSink.PushStereo(m.bus.APU().PullStereo(n))
		}
	}
}

// StepFrame advances the machine by one frame and, if a VideoSink is
// installed, hands it the freshly rendered framebuffer.
func (m *Machine) StepFrame() {
	m.stepFrameCycles()
	if m.videoSink != nil {
		m.videoSink.Present(m.Framebuffer())
	}
}

// StepFrameNoRender advances the machine by one frame without notifying
// a VideoSink, for headless/test loops that only care about side effects
// (serial output, RAM contents) rather than pixels.
func (m *Machine) StepFrameNoRender() {
	m.stepFrameCycles()
}

// Framebuffer returns the PPU's current RGBA 160x144 pixel buffer, or a
// blank one if no cartridge has been loaded yet.
func (m *Machine) Framebuffer() []byte {
	if m.bus == nil {
		return m.fb
	}
	return m.bus.PPU().Framebuffer()
}

// SetButtons replaces the current joypad state for the next instructions
// the CPU executes.
func (m *Machine) SetButtons(btn Buttons) {
	if m.bus == nil {
		return
	}
	var mask byte
	if btn.Right {
		mask |= bus.JoypRight
	}
	if btn.Left {
		mask |= bus.JoypLeft
	}
	if btn.Up {
		mask |= bus.JoypUp
	}
	if btn.Down {
		mask |= bus.JoypDown
	}
	if btn.A {
		mask |= bus.JoypA
	}
	if btn.B {
		mask |= bus.JoypB
	}
	if btn.Select {
		mask |= bus.JoypSelectBtn
	}
	if btn.Start {
		mask |= bus.JoypStart
	}
	m.bus.SetJoypadState(mask)
}

// LoadBattery restores external cartridge RAM from data, for cartridges
// that implement BatteryBacked. Reports whether the cartridge accepted it.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		bb.LoadRAM(data)
		return true
	}
	return false
}

// SaveBattery returns a copy of external cartridge RAM, for cartridges
// that implement BatteryBacked.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	if bb, ok := m.bus.Cart().(cart.BatteryBacked); ok {
		return bb.SaveRAM(), true
	}
	return nil, false
}

// ResetPostBoot resets the CPU to the standard DMG post-boot register
// state without running any boot ROM, keeping the current cartridge.
func (m *Machine) ResetPostBoot() {
	if m.cpu == nil {
		return
	}
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	m.applyCGBMode()
}

// ResetWithBoot resets and, if a boot ROM is installed, runs it from
// 0x0000 again; otherwise it falls back to ResetPostBoot.
func (m *Machine) ResetWithBoot() {
	if m.cpu == nil || m.bus == nil {
		return
	}
	if len(m.bootROM) < 0x100 {
		m.ResetPostBoot()
		return
	}
	m.bus.SetBootROM(m.bootROM)
	m.cpu.SetPC(0x0000)
	m.applyCGBMode()
}

// ResetCGBPostBoot resets to post-boot state and sets the persisted
// "show CGB colors on a DMG-only cart" toggle to force, applying (or
// clearing) the compatibility-palette preload accordingly.
func (m *Machine) ResetCGBPostBoot(force bool) {
	if m.cpu == nil {
		return
	}
	m.useCGBBG = force
	m.cpu.ResetNoBoot()
	m.cpu.SetPC(0x0100)
	m.applyCGBMode()
}

// applyCGBMode pushes the derived CGB-colors decision down to the bus/CPU
// and, if the active cartridge is being colorized via the compatibility
// palette rather than native CGB palette data, preloads it.
func (m *Machine) applyCGBMode() {
	want := m.WantCGBColors()
	if m.bus != nil {
		m.bus.SetCGB(want)
	}
	if m.cpu != nil {
		m.cpu.SetCGB(want)
	}
	if m.IsCGBCompat() {
		m.preloadCompatPalette(m.compatPalette)
	}
}

// WantCGBColors reports whether the machine should render in color: true
// for native CGB cartridges, or for a DMG-only cartridge with the user's
// "show CGB colors" toggle on.
func (m *Machine) WantCGBColors() bool { return m.cgbNative || m.useCGBBG }

// UseCGBBG returns the raw, persisted "show CGB colors on DMG-only carts"
// toggle, independent of whether the current cartridge is itself native
// CGB (use WantCGBColors for the effective decision).
func (m *Machine) UseCGBBG() bool { return m.useCGBBG }

// SetUseCGBBG sets the persisted toggle. Does not itself reset the
// machine; call ResetCGBPostBoot to apply it immediately.
func (m *Machine) SetUseCGBBG(v bool) { m.useCGBBG = v }

// IsCGBCompat reports whether colors are currently coming from the
// compatibility-palette substitution (a DMG-only cart being colorized)
// rather than from native per-cart CGB palette data.
func (m *Machine) IsCGBCompat() bool { return !m.cgbNative && m.WantCGBColors() }

// CurrentCompatPalette returns the active compatibility palette's index.
func (m *Machine) CurrentCompatPalette() int { return m.compatPalette }

// CompatPaletteName returns the display name for a palette index,
// clamped into range.
func (m *Machine) CompatPaletteName(pid int) string {
	if pid < 0 || pid >= len(cgbCompatSetNames) {
		return "Unknown"
	}
	return cgbCompatSetNames[pid]
}

// SetCompatPalette selects a compatibility palette by index and, if it is
// currently in effect, reloads the PPU's palette RAM with it.
func (m *Machine) SetCompatPalette(pid int) {
	if pid < 0 || pid >= len(cgbCompatSets) {
		return
	}
	m.compatPalette = pid
	if m.IsCGBCompat() {
		m.preloadCompatPalette(pid)
	}
}

// CycleCompatPalette moves the compatibility palette selection by dir
// steps (typically -1 or +1), wrapping around.
func (m *Machine) CycleCompatPalette(dir int) {
	n := len(cgbCompatSets)
	pid := ((m.compatPalette+dir)%n + n) % n
	m.SetCompatPalette(pid)
}

// preloadCompatPalette writes a 4-shade palette into BG palette slot 0
// and OBJ palette slots 0/1 via the ordinary BCPS/BCPD and OCPS/OCPD
// autoincrement write paths. A DMG-only cartridge never writes CGB
// VRAM-bank-1 attribute bytes, so every tile's BG palette index stays 0
// and renders uniformly through this one preloaded ramp, while the
// DMG tile data still supplies the 0-3 color index.
func (m *Machine) preloadCompatPalette(pid int) {
	if m.bus == nil || pid < 0 || pid >= len(cgbCompatSets) {
		return
	}
	set := cgbCompatSets[pid]

	m.bus.Write(0xFF68, 0x80) // BCPS: autoincrement, palette 0 byte 0
	for _, c := range set {
		lo, hi := toBGR555(c[0], c[1], c[2])
		m.bus.Write(0xFF69, lo)
		m.bus.Write(0xFF69, hi)
	}

	m.bus.Write(0xFF6A, 0x80) // OCPS: autoincrement, palette 0 byte 0
	for rep := 0; rep < 2; rep++ {
		for _, c := range set {
			lo, hi := toBGR555(c[0], c[1], c[2])
			m.bus.Write(0xFF6B, lo)
			m.bus.Write(0xFF6B, hi)
		}
	}
}

func toBGR555(r, g, b byte) (lo, hi byte) {
	v := uint16(r>>3) | uint16(g>>3)<<5 | uint16(b>>3)<<10
	return byte(v), byte(v >> 8)
}

// APUBufferedStereo returns the number of stereo sample frames currently
// queued in the APU's ring buffer.
func (m *Machine) APUBufferedStereo() int {
	if m.bus == nil {
		return 0
	}
	return m.bus.APU().StereoAvailable()
}

// APUPullStereo pulls up to max stereo frames as a flat interleaved
// []int16 (L0,R0,L1,R1,...).
func (m *Machine) APUPullStereo(max int) []int16 {
	if m.bus == nil {
		return nil
	}
	return m.bus.APU().PullStereo(max)
}

// APUCapBufferedStereo discards queued frames beyond n, used by a host
// audio callback to bound latency after a stall (e.g. the window losing
// focus) without an audible pop from a sudden full-buffer catch-up.
func (m *Machine) APUCapBufferedStereo(n int) {
	if m.bus == nil {
		return
	}
	if avail := m.bus.APU().StereoAvailable(); avail > n {
		m.bus.APU().PullStereo(avail - n)
	}
}

// APUClearAudioLatency drops all currently queued stereo frames.
func (m *Machine) APUClearAudioLatency() {
	if m.bus == nil {
		return
	}
	if avail := m.bus.APU().StereoAvailable(); avail > 0 {
		m.bus.APU().PullStereo(avail)
	}
}

// DebugController returns the command/result channel pair a debugger
// front-end uses to set breakpoints and watchpoints and to read and write
// memory between instructions, creating it on first use. CmdStep and
// CmdContinue are only acknowledged; memory commands do not consult the
// watchpoint table.
func (m *Machine) DebugController() *debug.Controller {
	if m.debugCtl == nil {
		m.debugCtl = debug.NewController()
	}
	return m.debugCtl
}

// SetBreakpoint/ClearBreakpoint manage PC-based execution breakpoints
// checked once per instruction in stepFrameCycles.
func (m *Machine) SetBreakpoint(pc uint16)   { m.breakpoints[pc] = true }
func (m *Machine) ClearBreakpoint(pc uint16) { delete(m.breakpoints, pc) }

// Watchpoints exposes the memory watchpoint table for a debug front-end.
func (m *Machine) Watchpoints() *debug.Watchpoints { return m.watch }

// Disassemble returns the mnemonic and length of the instruction at pc.
func (m *Machine) Disassemble(pc uint16) (string, int) {
	if m.bus == nil {
		return "", 0
	}
	return debug.Disassemble(m.bus.Read, pc)
}

func (m *Machine) handleDebugCommand(cmd debug.Command) {
	switch cmd.Kind {
	case debug.CmdSetBreakpoint:
		m.SetBreakpoint(cmd.Addr)
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultOK})
	case debug.CmdClearBreakpoint:
		m.ClearBreakpoint(cmd.Addr)
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultOK})
	case debug.CmdSetWatchpoint:
		m.watch.Set(cmd.Addr, cmd.Bank, cmd.Mode)
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultOK})
	case debug.CmdClearWatchpoint:
		m.watch.Clear(cmd.Addr, cmd.Bank)
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultOK})
	case debug.CmdReadMemory:
		var v byte
		if m.bus != nil {
			v = m.bus.Read(cmd.Addr)
		}
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultMemory, Addr: cmd.Addr, Value: v})
	case debug.CmdWriteMemory:
		if m.bus != nil {
			m.bus.Write(cmd.Addr, cmd.Value)
		}
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultOK})
	case debug.CmdContinue, debug.CmdStep:
		m.debugCtl.Reply(debug.Result{Kind: debug.ResultOK})
	}
}

type machineStateV1 struct {
	Bus           []byte
	CPU           []byte
	CGBNative     bool
	UseCGBBG      bool
	CompatPalette int
}

func (m *Machine) encodeState() ([]byte, error) {
	if m.bus == nil || m.cpu == nil {
		return nil, errors.New("gbcore: no cartridge loaded")
	}
	s := machineStateV1{
		Bus: m.bus.SaveState(), CPU: m.cpu.SaveState(),
		CGBNative: m.cgbNative, UseCGBBG: m.useCGBBG, CompatPalette: m.compatPalette,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Machine) decodeState(data []byte) error {
	var s machineStateV1
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if m.bus == nil || m.cpu == nil {
		return errors.New("gbcore: no cartridge loaded")
	}
	m.bus.LoadState(s.Bus)
	m.cpu.LoadState(s.CPU)
	m.cgbNative, m.useCGBBG, m.compatPalette = s.CGBNative, s.UseCGBBG, s.CompatPalette
	m.applyCGBMode()
	return nil
}

// SaveStateToFile serializes the bus and CPU state to path (or, if a
// PersistenceStore is installed, under path as its key).
func (m *Machine) SaveStateToFile(path string) error {
	data, err := m.encodeState()
	if err != nil {
		return err
	}
	if m.store != nil {
		return m.store.SaveState(path, data)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadStateFromFile restores bus and CPU state previously written by
// SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	var data []byte
	var err error
	if m.store != nil {
		data, err = m.store.LoadState(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return m.decodeState(data)
}
