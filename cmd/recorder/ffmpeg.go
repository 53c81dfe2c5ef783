package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/unainr/screen-recorder/internal/capture"
)

// ffmpegSource captures the X11 display with ffmpeg and streams the encoded
// webm output through a pipe.
type ffmpegSource struct {
	display     string
	audioDevice string
}

func (s *ffmpegSource) Acquire(ctx context.Context, opts capture.SourceOptions) (capture.Stream, error) {
	args := []string{"-loglevel", "error", "-f", "x11grab", "-i", s.display}
	if opts.MicEnabled {
		args = append(args, "-f", "pulse", "-i", s.audioDevice, "-c:a", "libopus")
	} else {
		args = append(args, "-an")
	}
	args = append(args, "-c:v", "libvpx", "-deadline", "realtime", "-f", "webm", "pipe:1")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	stream := &ffmpegStream{cmd: cmd, chunks: make(chan []byte, 16)}
	go stream.read(stdout)
	return stream, nil
}

type ffmpegStream struct {
	cmd      *exec.Cmd
	chunks   chan []byte
	stopOnce sync.Once
}

func (s *ffmpegStream) Chunks() <-chan []byte { return s.chunks }

func (s *ffmpegStream) MimeType() string { return "video/webm" }

// Stop asks ffmpeg to finish the current file cleanly. The chunk channel
// closes once the pipe drains, which is what ends the capture session.
func (s *ffmpegStream) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		err = s.cmd.Process.Signal(syscall.SIGINT)
	})
	return err
}

func (s *ffmpegStream) read(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 64*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			_ = s.cmd.Wait()
			return
		}
	}
}
