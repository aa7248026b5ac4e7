package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestSpinnerWritesAndErases(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(context.Background(), "Resolving pkg:pypi/requests")
	s.out = &buf

	s.Start()
	time.Sleep(3 * spinnerInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Resolving pkg:pypi/requests") {
		t.Errorf("output %q missing status message", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Errorf("output %q should end with the line erased", out)
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinnerWithContext(context.Background(), "working")
	s.out = &bytes.Buffer{}
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSpinnerWithContext(ctx, "working")
	s.out = &bytes.Buffer{}
	s.Start()

	cancel()

	select {
	case <-s.done:
	case <-time.After(time.Second):
		t.Fatal("spinner did not stop after context cancellation")
	}

	// Stop after cancellation must not hang or panic.
	s.Stop()
}
