//go:build opencv

package opencv

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Window is a HighGUI window
type Window struct {
	mu     sync.Mutex
	win    *gocv.Window
	closed bool
}

// NewWindow opens a named window
func NewWindow(name string) (*Window, error) {
	return &Window{win: gocv.NewWindow(name)}, nil
}

// Show renders img
func (w *Window) Show(img image.Image) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("window closed")
	}
	w.win.IMShow(mat)
	return nil
}

// PollKey returns the low byte of the pressed key, or -1
func (w *Window) PollKey(wait time.Duration) int {
	ms := int(wait / time.Millisecond)
	if ms < 1 {
		ms = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return -1
	}
	key := w.win.WaitKey(ms)
	if key < 0 {
		return -1
	}
	return key & 0xFF
}

// Close destroys the window
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.win.Close()
}
