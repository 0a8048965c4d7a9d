package logutil

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/densedit/train-launcher/pkg/fileutil"
)

func TestMultiWriter(t *testing.T) {
	tmpPath := fileutil.GetTempFilePath() + ".log"
	defer os.RemoveAll(tmpPath)

	lg, wr, logFile, err := NewWithStderrWriter("info", []string{tmpPath})
	if err != nil {
		t.Fatal(err)
	}
	defer logFile.Close()

	lg.Info("hi")
	fmt.Fprintf(wr, "hello %q\n", "test")
	fmt.Fprintf(wr, "hello %q\n", "test")

	b, err := os.ReadFile(tmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `hello "test"`) {
		t.Fatalf("unexpected log file contents %q", string(b))
	}
}

func TestStderrOnly(t *testing.T) {
	_, wr, logFile, err := NewWithStderrWriter("info", []string{"stderr"})
	if err != nil {
		t.Fatal(err)
	}
	if wr != os.Stderr {
		t.Fatalf("expected os.Stderr writer, got %v", wr)
	}
	if logFile != nil {
		t.Fatalf("expected nil log file, got %v", logFile)
	}
}
