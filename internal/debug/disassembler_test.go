package debug

import "testing"

func readerFor(bytes ...byte) func(uint16) byte {
	return func(addr uint16) byte {
		if int(addr) < len(bytes) {
			return bytes[addr]
		}
		return 0xFF
	}
}

func TestDisassemble_NoOperand(t *testing.T) {
	text, n := Disassemble(readerFor(0x00), 0)
	if text != "NOP" || n != 1 {
		t.Fatalf("got %q/%d want NOP/1", text, n)
	}
}

func TestDisassemble_Imm8(t *testing.T) {
	text, n := Disassemble(readerFor(0x3E, 0x42), 0)
	if text != "LD A,$42" || n != 2 {
		t.Fatalf("got %q/%d want LD A,$42/2", text, n)
	}
}

func TestDisassemble_Imm16(t *testing.T) {
	text, n := Disassemble(readerFor(0xC3, 0x34, 0x12), 0)
	if text != "JP $1234" || n != 3 {
		t.Fatalf("got %q/%d want JP $1234/3", text, n)
	}
}

func TestDisassemble_RegisterGroup(t *testing.T) {
	// LD C,A = 0x4F
	text, n := Disassemble(readerFor(0x4F), 0)
	if text != "LD C,A" || n != 1 {
		t.Fatalf("got %q/%d want LD C,A/1", text, n)
	}
	// HALT is the one 0x76 hole in the LD r,r' block.
	text, _ = Disassemble(readerFor(0x76), 0)
	if text != "HALT" {
		t.Fatalf("got %q want HALT", text)
	}
	// XOR A = 0xAF
	text, _ = Disassemble(readerFor(0xAF), 0)
	if text != "XOR A" {
		t.Fatalf("got %q want XOR A", text)
	}
}

func TestDisassemble_CBPrefixed(t *testing.T) {
	// BIT 7,H = CB 7C
	text, n := Disassemble(readerFor(0xCB, 0x7C), 0)
	if text != "BIT 7,H" || n != 2 {
		t.Fatalf("got %q/%d want BIT 7,H/2", text, n)
	}
	// SWAP A = CB 37
	text, _ = Disassemble(readerFor(0xCB, 0x37), 0)
	if text != "SWAP A" {
		t.Fatalf("got %q want SWAP A", text)
	}
}

func TestDisassemble_Undefined(t *testing.T) {
	text, n := Disassemble(readerFor(0xD3), 0)
	if text != "DB $D3" || n != 1 {
		t.Fatalf("got %q/%d want DB $D3/1", text, n)
	}
}

func TestWatchpoints_LatchAndAck(t *testing.T) {
	w := NewWatchpoints()
	w.Set(0xC000, 0, WatchWrite)

	if !w.Check(0xC000, 0, true) {
		t.Fatalf("expected first write to latch a hit")
	}
	if w.Check(0xC000, 0, true) {
		t.Fatalf("expected second write to stay suppressed until Ack")
	}
	w.Ack(0xC000, 0)
	if !w.Check(0xC000, 0, true) {
		t.Fatalf("expected hit to re-arm after Ack")
	}
	if w.Check(0xC000, 0, false) {
		t.Fatalf("a read should not trigger a write-only watchpoint")
	}
}

func TestController_SendPollReply(t *testing.T) {
	c := NewController()
	c.Send(Command{Kind: CmdStep})

	cmd, ok := c.Poll()
	if !ok || cmd.Kind != CmdStep {
		t.Fatalf("expected to poll a pending CmdStep")
	}
	if _, ok := c.Poll(); ok {
		t.Fatalf("expected no second pending command")
	}

	c.Reply(Result{Kind: ResultOK})
	if res := c.Recv(); res.Kind != ResultOK {
		t.Fatalf("got result kind %v want ResultOK", res.Kind)
	}
}
