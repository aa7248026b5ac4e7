package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 90 * time.Millisecond

// Spinner renders an animated status line on stderr while a resolution is
// in flight. It stops on Stop or when the context is cancelled, erasing
// the line either way so log output stays clean. Stop may be called more
// than once.
type Spinner struct {
	message string
	ctx     context.Context
	out     io.Writer
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// newSpinnerWithContext creates a spinner tied to ctx. Start must be
// called before Stop.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	return &Spinner{
		message: message,
		ctx:     ctx,
		out:     os.Stderr,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the animation in a background goroutine.
func (s *Spinner) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.erase()
				return
			case <-s.quit:
				s.erase()
				return
			case <-ticker.C:
				frame := spinnerFrames[i%len(spinnerFrames)]
				fmt.Fprintf(s.out, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
			}
		}
	}()
}

// Stop ends the animation and waits until the status line is erased.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Spinner) erase() {
	width := utf8.RuneCountInString(s.message) + 2
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", width))
}
