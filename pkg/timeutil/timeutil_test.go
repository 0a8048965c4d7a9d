package timeutil

import (
	"testing"
	"time"
)

func TestNewTimeFrame(t *testing.T) {
	start := time.Now()
	end := start.Add(3 * time.Second)
	tf := NewTimeFrame(start, end)
	if tf.Took != 3*time.Second {
		t.Fatalf("Took expected 3s, got %v", tf.Took)
	}
	if tf.TookString != "3s" {
		t.Fatalf("TookString expected %q, got %q", "3s", tf.TookString)
	}
}

func TestGetTS(t *testing.T) {
	ts := GetTS(10)
	if len(ts) != 10 {
		t.Fatalf("expected 10 characters, got %q", ts)
	}
}
