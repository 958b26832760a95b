package emu

// VideoSink receives a completed frame's RGBA framebuffer. A Machine holds
// at most one; Present is called once per StepFrame, after rendering and
// after the frame's audio has been pushed to the AudioSink.
type VideoSink interface {
	Present(framebuffer []byte)
}

// AudioSink receives freshly mixed stereo samples as they leave the APU's
// ring buffer. Interleaved left/right int16 pairs, same layout as
// Machine.APUPullStereo.
type AudioSink interface {
	PushStereo(samples []int16)
}

// JoypadSource lets a host poll for the current button state instead of
// pushing it through SetButtons on its own schedule. A Machine with a
// JoypadSource set polls it once per StepFrame before stepping the CPU.
type JoypadSource interface {
	Poll() Buttons
}

// PersistenceStore abstracts where battery RAM and save states live, so a
// headless harness or a test can swap in an in-memory store instead of
// the filesystem paths SaveStateToFile/LoadStateFromFile use. The
// Machine's own SaveBattery/LoadBattery take and return bytes and do not
// use the store.
type PersistenceStore interface {
	SaveBattery(key string, data []byte) error
	LoadBattery(key string) ([]byte, error)
	SaveState(key string, data []byte) error
	LoadState(key string) ([]byte, error)
}

// SetVideoSink installs a sink that receives the framebuffer after every
// rendered frame, in addition to the normal Framebuffer() getter.
func (m *Machine) SetVideoSink(s VideoSink) { m.videoSink = s }

// SetAudioSink installs a sink that receives stereo samples as StepFrame
// pulls them off the APU's ring buffer for latency bookkeeping.
func (m *Machine) SetAudioSink(s AudioSink) { m.audioSink = s }

// SetJoypadSource installs a source polled once per StepFrame, before
// SetButtons would otherwise take effect for that frame.
func (m *Machine) SetJoypadSource(s JoypadSource) { m.joypadSource = s }

// SetPersistenceStore installs a store SaveStateToFile/LoadStateFromFile
// use instead of the filesystem. Pass nil to revert to plain file I/O.
func (m *Machine) SetPersistenceStore(s PersistenceStore) { m.store = s }
