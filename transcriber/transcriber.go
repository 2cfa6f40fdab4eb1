package transcriber

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carechat/audio"
	"carechat/backend"
	"carechat/log"
)

// ErrUnavailable is returned by backends that cannot transcribe right now.
var ErrUnavailable = errors.New("speech-to-text is temporarily unavailable")

type Result struct {
	Text    string
	Audio   time.Duration
	Elapsed time.Duration
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, clip audio.Clip) (Result, error)
}

// Remote posts clips to the backend's transcription endpoint.
type Remote struct {
	client *backend.Client
}

func NewRemote(client *backend.Client) *Remote {
	return &Remote{client: client}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Transcribe(ctx context.Context, clip audio.Clip) (Result, error) {
	start := time.Now()
	text, err := r.client.Transcribe(ctx, clip.Data, clip.MimeType)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe: %w", err)
	}
	res := Result{Text: text, Audio: clip.Duration, Elapsed: time.Since(start)}
	log.Info(fmt.Sprintf("transcribed %.1fs of audio in %dms", res.Audio.Seconds(), res.Elapsed.Milliseconds()))
	return res, nil
}

// Unavailable stands in while the transcription service is switched off.
type Unavailable struct{}

func (Unavailable) Name() string { return "unavailable" }

func (Unavailable) Transcribe(context.Context, audio.Clip) (Result, error) {
	return Result{}, ErrUnavailable
}

// New picks the Remote backend when live transcription is enabled.
func New(client *backend.Client, enabled bool) Transcriber {
	if enabled {
		return NewRemote(client)
	}
	return Unavailable{}
}
