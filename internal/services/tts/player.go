package tts

import "time"

// Player is the playback surface the presentation layer provides for
// prepared audio files. Implementations live outside this module; the
// pipeline only prepares audio ahead of time.
type Player interface {
	Play(path string) error
	Pause() error
	Seek(offset time.Duration) error
	Stop() error
}

// NopPlayer discards all playback requests. It stands in where no audio
// output exists, such as headless runs and tests.
type NopPlayer struct{}

func (NopPlayer) Play(string) error        { return nil }
func (NopPlayer) Pause() error             { return nil }
func (NopPlayer) Seek(time.Duration) error { return nil }
func (NopPlayer) Stop() error              { return nil }
