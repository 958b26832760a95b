package apu

import "testing"

func TestCh1DACOffDisablesChannelOnTrigger(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0x00) // NR12: vol=0, envDir=0 (decrease), period=0 -> DAC off
	a.CPUWrite(0xFF14, 0x80) // NR14: trigger
	if a.ch1.enabled {
		t.Fatalf("ch1 enabled after trigger with DAC off")
	}
}

func TestCh1DACOnEnablesChannelOnTrigger(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0xF0) // vol=15, envDir=decrease -> DAC on
	a.CPUWrite(0xFF14, 0x80)
	if !a.ch1.enabled {
		t.Fatalf("ch1 not enabled after trigger with DAC on")
	}
}

func TestCh2DACOnAtVolumeZeroIncreasing(t *testing.T) {
	// Regression: vol==0 with an increasing envelope used to be misclassified as DAC-off.
	a := New(48000)
	a.CPUWrite(0xFF17, 0x08) // NR22: vol=0, envDir=increase(bit3=1), period=0 -> DAC on (upper 5 bits nonzero)
	a.CPUWrite(0xFF19, 0x80)
	if !a.ch2.dacEn {
		t.Fatalf("ch2 DAC should be enabled when upper 5 bits of NR22 are nonzero")
	}
	if !a.ch2.enabled {
		t.Fatalf("ch2 should trigger on when DAC enabled")
	}
}

func TestPowerOffPreservesWaveRAMAndLength(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF1A, 0x80) // NR30 DAC on
	a.CPUWrite(0xFF30, 0xAB) // wave RAM byte 0
	a.CPUWrite(0xFF1B, 0x10) // NR31 length = 256-16 = 240
	a.CPUWrite(0xFF11, 0x20) // NR11 length = 64-32 = 32

	a.CPUWrite(0xFF26, 0x00) // power off
	if a.enabled {
		t.Fatalf("APU should report powered off")
	}
	if a.ch3.ram[0] != 0xAB {
		t.Fatalf("wave RAM byte lost on power-off, got %02X", a.ch3.ram[0])
	}
	if a.ch3.length != 240 {
		t.Fatalf("ch3 length lost on power-off, got %d", a.ch3.length)
	}
	if a.ch1.length != 32 {
		t.Fatalf("ch1 length lost on power-off, got %d", a.ch1.length)
	}
}

func TestPowerOffBlocksControlWrites(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF26, 0x00) // power off
	a.CPUWrite(0xFF12, 0xF0) // attempt to set CH1 envelope while off
	if a.ch1.vol != 0 {
		t.Fatalf("control register write should be ignored while APU is off, got vol=%d", a.ch1.vol)
	}
	// Wave RAM writes still pass through while off.
	a.CPUWrite(0xFF30, 0x42)
	if a.ch3.ram[0] != 0x42 {
		t.Fatalf("wave RAM write should pass through while APU is off")
	}
	// Length-counter writes still pass through while off (DMG quirk).
	a.CPUWrite(0xFF11, 0x3F)
	if a.ch1.length != 1 {
		t.Fatalf("length write should pass through while APU is off, got length=%d", a.ch1.length)
	}
}

func TestPowerOnResetsFrameSequencer(t *testing.T) {
	a := New(48000)
	a.Tick(cpuHz / 512) // advance the frame sequencer one step
	a.CPUWrite(0xFF26, 0x00)
	a.CPUWrite(0xFF26, 0x80)
	if !a.enabled {
		t.Fatalf("APU should report powered on")
	}
	if a.fsStep != 0 {
		t.Fatalf("frame sequencer step after power cycle got %d want 0", a.fsStep)
	}
}
