package cpu

import "testing"

func TestCPU_StopHaltsUntilJoypadInterrupt(t *testing.T) {
	c := newCPUWithROM([]byte{0x10, 0x00, 0x00}) // STOP 00; NOP
	if cycles := c.Step(); cycles != 4 {
		t.Fatalf("STOP cycles got %d want 4", cycles)
	}
	if !c.stopped {
		t.Fatalf("CPU should be stopped after STOP")
	}
	if c.PC != 2 {
		t.Fatalf("PC after STOP got %#04x want 0x0002", c.PC)
	}
	// No interrupt pending: stays asleep and does not advance PC.
	c.Step()
	if !c.stopped || c.PC != 2 {
		t.Fatalf("CPU should remain stopped with PC unchanged, got stopped=%v pc=%#04x", c.stopped, c.PC)
	}
	// Joypad interrupt pending wakes the CPU.
	c.bus.Write(0xFF0F, 0x10)
	c.Step()
	if c.stopped {
		t.Fatalf("CPU should wake from STOP on pending joypad interrupt")
	}
}

func TestCPU_StopArmedSpeedSwitchTogglesKEY1(t *testing.T) {
	c := newCPUWithROM([]byte{0x10, 0x00})
	c.SetCGB(true)
	c.bus.Write(0xFF4D, 0x01) // arm speed switch
	cycles := c.Step()
	if cycles < 1000 {
		t.Fatalf("armed STOP should stall for the speed switch, got %d cycles", cycles)
	}
	if c.stopped {
		t.Fatalf("armed speed-switch STOP should not enter a full stop")
	}
	if c.bus.Read(0xFF4D)&0x80 == 0 {
		t.Fatalf("KEY1 current-speed bit should be set after switching to double speed")
	}
}

func TestCPU_HaltBugDuplicatesNextInstruction(t *testing.T) {
	// IE enables VBlank, IF already has VBlank pending, IME=0: HALT exits the
	// sleep immediately but the CPU re-executes the byte after HALT.
	c := newCPUWithROM([]byte{0x76, 0x3C, 0x3C}) // HALT; INC A; INC A
	c.bus.Write(0xFFFF, 0x01)
	c.bus.Write(0xFF0F, 0x01)
	c.Step() // HALT: exits immediately, arms the bug
	if c.halted {
		t.Fatalf("HALT should not actually sleep when an interrupt is already pending with IME=0")
	}
	c.Step() // first INC A, but PC fails to advance past it
	if c.A != 1 {
		t.Fatalf("A after first INC got %d want 1", c.A)
	}
	if c.PC != 1 {
		t.Fatalf("PC should not have advanced past the duplicated opcode, got %#04x", c.PC)
	}
	c.Step() // same INC A executes again
	if c.A != 2 {
		t.Fatalf("A after duplicated INC got %d want 2", c.A)
	}
}

func TestCPU_CB_BitHL_Costs12Cycles(t *testing.T) {
	c := newCPUWithROM([]byte{0xCB, 0x46}) // BIT 0,(HL)
	if cycles := c.Step(); cycles != 12 {
		t.Fatalf("BIT 0,(HL) cycles got %d want 12", cycles)
	}
}

func TestCPU_CB_SetHL_Costs16Cycles(t *testing.T) {
	c := newCPUWithROM([]byte{0xCB, 0xC6}) // SET 0,(HL)
	if cycles := c.Step(); cycles != 16 {
		t.Fatalf("SET 0,(HL) cycles got %d want 16", cycles)
	}
}
