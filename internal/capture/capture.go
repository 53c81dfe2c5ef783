// Package capture manages the lifecycle of a live screen/microphone
// recording session. The controller owns exactly one stream at a time and
// moves through three states: idle, recording, previewing. Where the media
// bytes come from is abstracted behind Source so the recorder agent can plug
// in a real device pipeline and tests can plug in a fake.
package capture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/unainr/screen-recorder/internal/apperr"
)

// ErrPermissionDenied is returned by a Source when the user declines the
// OS-level capture prompt. Declining is a normal outcome, not a fault.
var ErrPermissionDenied = errors.New("capture permission denied")

type State int

const (
	StateIdle State = iota
	StateRecording
	StatePreviewing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePreviewing:
		return "previewing"
	default:
		return "unknown"
	}
}

// SourceOptions is fixed at acquisition time; toggling the mic mid-session
// has no effect on an already running stream.
type SourceOptions struct {
	MicEnabled bool
}

// Stream is a live capture in progress. Chunks delivers encoded media data
// and is closed when the stream ends, whether through Stop or through the
// OS-level sharing UI.
type Stream interface {
	Chunks() <-chan []byte
	MimeType() string
	Stop() error
}

type Source interface {
	Acquire(ctx context.Context, opts SourceOptions) (Stream, error)
}

// Recording is the finalized, immutable result of a capture session.
type Recording struct {
	Data     []byte
	MimeType string
	Duration time.Duration
}

type Controller struct {
	source Source
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	micEnabled bool
	stream     Stream
	buf        bytes.Buffer
	elapsedSec int64
	recording  *Recording
	done       chan struct{}
}

func NewController(source Source, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{source: source, logger: logger, micEnabled: true}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) MicEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micEnabled
}

// SetMicEnabled changes whether the next session captures microphone audio.
// It is a no-op while a session is recording or previewing.
func (c *Controller) SetMicEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return
	}
	c.micEnabled = enabled
}

// Elapsed reports the session length at one-second resolution. It keeps its
// final value through previewing and resets on Discard.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.elapsedSec) * time.Second
}

// Start acquires a stream and begins buffering its output. A declined
// permission prompt comes back as a PermissionDenied failure and is not
// logged; any other acquisition failure is logged and reported as
// CaptureUnavailable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return apperr.New(apperr.KindValidationFailed, "cannot start while "+state.String())
	}
	micEnabled := c.micEnabled
	c.mu.Unlock()

	stream, err := c.source.Acquire(ctx, SourceOptions{MicEnabled: micEnabled})
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return apperr.New(apperr.KindPermissionDenied, "screen sharing was declined")
		}
		c.logger.Error("failed to acquire capture stream", "error", err)
		return apperr.Wrap(apperr.KindCaptureUnavailable, "could not start screen capture", err)
	}

	c.mu.Lock()
	c.stream = stream
	c.buf.Reset()
	c.elapsedSec = 0
	c.recording = nil
	c.state = StateRecording
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.collect(stream, c.done)
	return nil
}

// collect drains the stream until it closes, then finalizes the session.
// The stream closing is the single finalization point: both an explicit Stop
// and the user ending the share from the OS UI land here.
func (c *Controller) collect(stream Stream, done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	chunks := stream.Chunks()
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				c.finalize(stream, done)
				return
			}
			c.mu.Lock()
			c.buf.Write(chunk)
			c.mu.Unlock()
		case <-ticker.C:
			c.mu.Lock()
			if c.state == StateRecording && c.stream == stream {
				c.elapsedSec++
			}
			c.mu.Unlock()
		}
	}
}

func (c *Controller) finalize(stream Stream, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(done)

	if c.state != StateRecording || c.stream != stream {
		return
	}
	data := make([]byte, c.buf.Len())
	copy(data, c.buf.Bytes())
	c.recording = &Recording{
		Data:     data,
		MimeType: stream.MimeType(),
		Duration: time.Duration(c.elapsedSec) * time.Second,
	}
	c.buf.Reset()
	c.stream = nil
	c.state = StatePreviewing
}

// Stop ends the active session, releases the stream, and transitions to
// previewing. The finalized recording is returned and stays retrievable via
// Result until Discard.
func (c *Controller) Stop() (*Recording, error) {
	c.mu.Lock()
	if c.state != StateRecording {
		state := c.state
		c.mu.Unlock()
		return nil, apperr.New(apperr.KindValidationFailed, "cannot stop while "+state.String())
	}
	stream := c.stream
	done := c.done
	c.mu.Unlock()

	if err := stream.Stop(); err != nil {
		c.logger.Error("failed to release capture stream", "error", err)
	}
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording == nil {
		return nil, apperr.New(apperr.KindCaptureUnavailable, "capture produced no recording")
	}
	return c.recording, nil
}

// Result returns the finalized recording while previewing.
func (c *Controller) Result() (*Recording, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing || c.recording == nil {
		return nil, false
	}
	return c.recording, true
}

// Discard drops the previewed recording and returns to idle. Calling it
// while already idle is a no-op, so callers may invoke it unconditionally on
// cleanup paths.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreviewing {
		return
	}
	c.recording = nil
	c.buf.Reset()
	c.elapsedSec = 0
	c.state = StateIdle
}
