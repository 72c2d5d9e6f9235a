package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/VickramC07/BikeGuard/internal/logger"
)

const (
	initialFrameBuffer = 1 << 20
	maxFrameSize       = 32 << 20
)

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// FFmpegOpener opens sources by spawning ffmpeg and decoding its MJPEG output
type FFmpegOpener struct {
	logger *logger.Logger
	opts   FFmpegOptions
}

// NewFFmpegOpener creates an opener, failing if no ffmpeg executable is found
func NewFFmpegOpener(opts FFmpegOptions, log *logger.Logger) (*FFmpegOpener, error) {
	path, err := DetectFFmpeg(opts.Path)
	if err != nil {
		return nil, err
	}
	opts.Path = path

	log.Debug("FFmpeg opener initialized", "path", path)

	return &FFmpegOpener{logger: log, opts: opts}, nil
}

// Open starts ffmpeg for spec and waits for the first frame
func (o *FFmpegOpener) Open(ctx context.Context, spec Spec) (Source, error) {
	switch spec.Kind {
	case KindDevice:
		if _, err := os.Stat(spec.DevicePath()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, spec, err)
		}
	case KindFile:
		if _, err := os.Stat(spec.Target); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, spec, err)
		}
	}

	spawn := o.spawner(spec)
	proc, err := spawn()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, spec, err)
	}

	src := newSourceFromProcess(spec, proc, o.logger)
	if spec.Live() {
		src.respawn = spawn
	}

	if err := src.prime(ctx); err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, spec, err)
	}

	o.logger.Info("Video source opened", "source", spec.String(), "live", spec.Live())
	return src, nil
}

// spawner returns a function starting a fresh ffmpeg process for spec
func (o *FFmpegOpener) spawner(spec Spec) func() (*ffmpegProcess, error) {
	args := BuildArgs(spec, o.opts)
	return func() (*ffmpegProcess, error) {
		procCtx, cancel := context.WithCancel(context.Background())
		cmd := exec.CommandContext(procCtx, o.opts.Path, args...)

		stderr := &bytes.Buffer{}
		cmd.Stderr = stderr

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			cancel()
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
		}

		o.logger.Debug("FFmpeg started", "source", spec.String(), "args", strings.Join(args, " "))
		return newProcess(stdout, cmd.Wait, cancel, stderr), nil
	}
}

// ffmpegProcess is one running ffmpeg and its output pipe
type ffmpegProcess struct {
	stdout io.ReadCloser
	kill   func()
	stderr *bytes.Buffer

	wait     func() error
	waitOnce sync.Once
	waitErr  error

	releaseOnce sync.Once
	releaseErr  error
}

func newProcess(stdout io.ReadCloser, wait func() error, kill func(), stderr *bytes.Buffer) *ffmpegProcess {
	if kill == nil {
		kill = func() {}
	}
	return &ffmpegProcess{stdout: stdout, wait: wait, kill: kill, stderr: stderr}
}

func (p *ffmpegProcess) exitErr() error {
	p.waitOnce.Do(func() {
		if p.wait != nil {
			p.waitErr = p.wait()
		}
	})
	return p.waitErr
}

// release kills the process, closes the pipe and reaps it
func (p *ffmpegProcess) release() error {
	p.releaseOnce.Do(func() {
		p.kill()
		p.releaseErr = p.stdout.Close()
		if errors.Is(p.releaseErr, os.ErrClosed) {
			p.releaseErr = nil
		}
		_ = p.exitErr()
	})
	return p.releaseErr
}

// FFmpegSource decodes frames from an MJPEG byte stream produced by ffmpeg.
// A live source whose ffmpeg exits is restarted on the next read.
type FFmpegSource struct {
	logger  *logger.Logger
	spec    Spec
	proc    *ffmpegProcess
	scanner *bufio.Scanner
	respawn func() (*ffmpegProcess, error)
	now     func() time.Time

	seq      uint64
	restarts int
	pending  *Frame
	done     bool

	closeOnce sync.Once
	closeErr  error
}

func newFFmpegSource(spec Spec, stdout io.ReadCloser, wait func() error, kill func(), log *logger.Logger) *FFmpegSource {
	return newSourceFromProcess(spec, newProcess(stdout, wait, kill, nil), log)
}

func newSourceFromProcess(spec Spec, proc *ffmpegProcess, log *logger.Logger) *FFmpegSource {
	return &FFmpegSource{
		logger:  log,
		spec:    spec,
		proc:    proc,
		scanner: frameScanner(proc.stdout),
		now:     time.Now,
	}
}

func frameScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialFrameBuffer), maxFrameSize)
	scanner.Split(splitJPEG)
	return scanner
}

// prime reads the first frame so that an unusable source fails at open time
func (s *FFmpegSource) prime(ctx context.Context) error {
	frame, err := s.read(ctx)
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			return fmt.Errorf("no frames produced")
		}
		return err
	}
	s.pending = frame
	return nil
}

// Next returns the next decoded frame
func (s *FFmpegSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pending != nil {
		frame := s.pending
		s.pending = nil
		return frame, nil
	}
	return s.read(ctx)
}

func (s *FFmpegSource) read(ctx context.Context) (*Frame, error) {
	if s.done {
		if s.respawn == nil {
			return nil, s.exhausted()
		}
		if err := s.restart(); err != nil {
			return nil, &ReadError{Seq: s.seq + 1, Err: fmt.Errorf("failed to restart ffmpeg: %w", err)}
		}
	}

	// A blocked read is released by killing ffmpeg when ctx ends.
	stop := context.AfterFunc(ctx, s.proc.kill)
	ok := s.scanner.Scan()
	stop()

	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.done = true
		if err := s.scanner.Err(); err != nil {
			return nil, &ReadError{Seq: s.seq + 1, Err: err}
		}
		return nil, s.exhausted()
	}

	img, err := jpeg.Decode(bytes.NewReader(s.scanner.Bytes()))
	if err != nil {
		return nil, &ReadError{Seq: s.seq + 1, Err: fmt.Errorf("decode jpeg: %w", err)}
	}

	s.seq++
	return &Frame{
		Image:      ToRGBA(img),
		Seq:        s.seq,
		CapturedAt: s.now(),
	}, nil
}

// restart replaces the exited process with a fresh one
func (s *FFmpegSource) restart() error {
	_ = s.proc.release()

	proc, err := s.respawn()
	if err != nil {
		s.logger.Warn("Failed to restart ffmpeg", "source", s.spec.String(), "error", err)
		return err
	}

	s.proc = proc
	s.scanner = frameScanner(proc.stdout)
	s.done = false
	s.restarts++
	s.logger.Info("FFmpeg restarted", "source", s.spec.String(), "restarts", s.restarts)
	return nil
}

// exhausted maps the end of ffmpeg output to EndOfStream or a ReadError
func (s *FFmpegSource) exhausted() error {
	err := s.proc.exitErr()
	if err == nil && !s.spec.Live() {
		return ErrEndOfStream
	}
	if err == nil {
		err = fmt.Errorf("stream ended")
	}
	if s.proc.stderr != nil && s.proc.stderr.Len() > 0 {
		err = fmt.Errorf("%w (%s)", err, strings.TrimSpace(s.proc.stderr.String()))
	}
	return &ReadError{Seq: s.seq + 1, Err: err}
}

// Restarts returns how many times ffmpeg was restarted
func (s *FFmpegSource) Restarts() int {
	return s.restarts
}

// Live reports whether the source is a device or network stream
func (s *FFmpegSource) Live() bool {
	return s.spec.Live()
}

// Close stops ffmpeg and releases the pipe
func (s *FFmpegSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.proc.release()
		s.logger.Debug("Video source closed", "source", s.spec.String(), "frames", s.seq)
	})
	return s.closeErr
}

// splitJPEG is a bufio.SplitFunc yielding one complete JPEG image per token.
// Bytes before a start-of-image marker are discarded.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may begin a marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Request more data; drop leading garbage.
		return start, nil, nil
	}

	end += start + len(jpegSOI) + len(jpegEOI)
	return end, data[start:end], nil
}
