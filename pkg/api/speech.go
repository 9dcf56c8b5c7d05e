package api

import (
	"context"
	"io"
)

// Speech converts between text and audio for voice-capable channels.
type Speech interface {
	// Synthesize returns mp3 audio for text.
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// Transcribe returns the text spoken in audio.
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}
