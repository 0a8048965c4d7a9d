package spinner

import (
	"bytes"
	"strings"
	"testing"
)

func TestSpinner(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	s := New(buf, "waiting for upload")
	s.Restart()
	s.Stop()
	if s.sp == nil && !strings.Contains(buf.String(), "waiting for upload") {
		t.Fatalf("expected static fallback line, got %q", buf.String())
	}
}
