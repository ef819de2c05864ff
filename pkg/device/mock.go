package device

import (
	"sync"
	"time"
)

// MockCall records a single controller invocation.
type MockCall struct {
	Method     string
	On         bool
	Level      int
	AudioBytes int
	SampleRate int
	Time       time.Time
}

// Mock is a device controller for testing and for agents that run
// without hardware. Behavior is customizable via function fields;
// all calls are recorded for inspection.
type Mock struct {
	SetLightFunc     func(on bool) error
	SetVolumeFunc    func(level int) error
	PlayAudioFunc    func(pcm []byte, sampleRate int) error
	DaemonStatusFunc func() (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// NewMock creates a mock controller that accepts every command and
// reports a running daemon.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) record(call MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call.Time = time.Now()
	m.calls = append(m.calls, call)
}

// SetLight records the call and delegates to SetLightFunc if set.
func (m *Mock) SetLight(on bool) error {
	m.record(MockCall{Method: "SetLight", On: on})
	if m.SetLightFunc != nil {
		return m.SetLightFunc(on)
	}
	return nil
}

// SetVolume records the call and delegates to SetVolumeFunc if set.
func (m *Mock) SetVolume(level int) error {
	m.record(MockCall{Method: "SetVolume", Level: level})
	if m.SetVolumeFunc != nil {
		return m.SetVolumeFunc(level)
	}
	return nil
}

// PlayAudio records the call and delegates to PlayAudioFunc if set.
func (m *Mock) PlayAudio(pcm []byte, sampleRate int) error {
	m.record(MockCall{Method: "PlayAudio", AudioBytes: len(pcm), SampleRate: sampleRate})
	if m.PlayAudioFunc != nil {
		return m.PlayAudioFunc(pcm, sampleRate)
	}
	return nil
}

// DaemonStatus records the call and delegates to DaemonStatusFunc if set.
func (m *Mock) DaemonStatus() (string, error) {
	m.record(MockCall{Method: "DaemonStatus"})
	if m.DaemonStatusFunc != nil {
		return m.DaemonStatusFunc()
	}
	return "running", nil
}

// Calls returns a copy of all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the most recent call, or nil if none were made.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears the recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// WithError configures every command to fail with the given error.
func (m *Mock) WithError(err error) *Mock {
	m.SetLightFunc = func(bool) error { return err }
	m.SetVolumeFunc = func(int) error { return err }
	m.PlayAudioFunc = func([]byte, int) error { return err }
	m.DaemonStatusFunc = func() (string, error) { return "", err }
	return m
}
