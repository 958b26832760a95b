package debug

// CommandKind identifies what a debugger front-end is asking the running
// machine to do.
type CommandKind int

const (
	CmdContinue CommandKind = iota
	CmdStep
	CmdSetBreakpoint
	CmdClearBreakpoint
	CmdSetWatchpoint
	CmdClearWatchpoint
	CmdReadMemory
	CmdWriteMemory
)

// Command is one request sent from a front-end to the machine. Only the
// fields relevant to Kind are populated.
type Command struct {
	Kind   CommandKind
	Addr   uint16
	Bank   int
	Value  byte
	Mode   Mode
	Length int
}

// ResultKind identifies what a Result carries.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultBreak
	ResultWatch
	ResultMemory
	ResultError
)

// Result is one reply sent from the machine back to a front-end.
type Result struct {
	Kind  ResultKind
	Addr  uint16
	Value byte
	Data  []byte
	Err   string
}

// Controller is the command/result channel pair a debugger front-end uses
// to set breakpoints and watchpoints and to read and write memory on a
// running Machine. The machine only polls it between instructions, never
// mid-instruction. CmdStep and CmdContinue are acknowledged with ResultOK
// but do not pause, step or resume execution; execution stops only at PC
// breakpoints.
type Controller struct {
	cmds    chan Command
	results chan Result
}

func NewController() *Controller {
	return &Controller{
		cmds:    make(chan Command, 8),
		results: make(chan Result, 8),
	}
}

// Send queues a command for the machine to pick up at its next poll
// point. Called by the front-end.
func (c *Controller) Send(cmd Command) {
	c.cmds <- cmd
}

// Poll returns a pending command without blocking, for the machine's
// instruction-boundary check.
func (c *Controller) Poll() (Command, bool) {
	select {
	case cmd := <-c.cmds:
		return cmd, true
	default:
		return Command{}, false
	}
}

// Recv blocks for the next result. Called by the front-end.
func (c *Controller) Recv() Result {
	return <-c.results
}

// Reply sends a result back to the front-end. Called by the machine
// after acting on a Command.
func (c *Controller) Reply(res Result) {
	c.results <- res
}
