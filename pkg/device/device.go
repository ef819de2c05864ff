// Package device provides interfaces and implementations for controlling
// the assistant's physical peripherals through the device daemon.
//
// Interfaces are small and composable so consumers depend only on the
// capability they use: a tool that toggles the light takes a
// LightController, not the full Controller.
package device

// LightController provides front-light control.
type LightController interface {
	SetLight(on bool) error
}

// VolumeController provides speaker volume control.
type VolumeController interface {
	SetVolume(level int) error
}

// SpeakerController plays PCM16 audio through the device speaker.
type SpeakerController interface {
	PlayAudio(pcm []byte, sampleRate int) error
}

// StatusController provides daemon status queries.
type StatusController interface {
	DaemonStatus() (string, error)
}

// Controller is the composite interface for full device control.
type Controller interface {
	LightController
	VolumeController
	SpeakerController
	StatusController
}

// Ensure the implementations satisfy Controller
var (
	_ Controller = (*HTTPController)(nil)
	_ Controller = (*Mock)(nil)
)
