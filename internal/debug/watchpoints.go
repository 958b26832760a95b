package debug

// Mode selects which kind of access a watchpoint reacts to.
type Mode int

const (
	WatchNone Mode = iota
	WatchRead
	WatchWrite
	WatchReadWrite
)

func (m Mode) matches(isWrite bool) bool {
	switch m {
	case WatchRead:
		return !isWrite
	case WatchWrite:
		return isWrite
	case WatchReadWrite:
		return true
	default:
		return false
	}
}

type wpKey struct {
	Addr uint16
	Bank int
}

// Watchpoints tracks a set of address/bank breakpoints keyed on access
// type. A hit latches until Ack is called for that address, so a tight
// loop that repeatedly touches a watched byte only reports the first
// crossing per stop.
type Watchpoints struct {
	points map[wpKey]Mode
	hit    map[wpKey]bool
}

func NewWatchpoints() *Watchpoints {
	return &Watchpoints{points: make(map[wpKey]Mode), hit: make(map[wpKey]bool)}
}

func (w *Watchpoints) Set(addr uint16, bank int, mode Mode) {
	w.points[wpKey{addr, bank}] = mode
}

func (w *Watchpoints) Clear(addr uint16, bank int) {
	k := wpKey{addr, bank}
	delete(w.points, k)
	delete(w.hit, k)
}

func (w *Watchpoints) ClearAll() {
	w.points = make(map[wpKey]Mode)
	w.hit = make(map[wpKey]bool)
}

// Check reports whether addr/bank just crossed a watchpoint for the given
// access, latching the hit so repeat accesses don't re-fire until Ack.
func (w *Watchpoints) Check(addr uint16, bank int, isWrite bool) bool {
	k := wpKey{addr, bank}
	mode, ok := w.points[k]
	if !ok || !mode.matches(isWrite) || w.hit[k] {
		return false
	}
	w.hit[k] = true
	return true
}

// Ack clears the latch for addr/bank so it can fire again later.
func (w *Watchpoints) Ack(addr uint16, bank int) {
	delete(w.hit, wpKey{addr, bank})
}
