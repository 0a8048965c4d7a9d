// Package spinner implements a terminal spinner for long waits.
package spinner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/densedit/train-launcher/pkg/terminal"
)

// New returns a new spinner writing to wr.
// Falls back to a single static line when the terminal has no color support.
func New(wr io.Writer, suffix string) (s Spinner) {
	sets := spinner.CharSets[39]
	if time.Now().Hour() > 17 { // after business hours
		sets = spinner.CharSets[70]
	}
	if wr == nil {
		wr = os.Stderr
	}
	s = Spinner{wr: wr, suffix: suffix}
	if _, err := terminal.IsColor(); err == nil {
		s.sp = spinner.New(sets, 500*time.Millisecond, spinner.WithWriter(wr))
		s.sp.Suffix = "  " + strings.TrimSpace(suffix)
		s.sp.FinalMSG = "\n"
	}
	return s
}

type Spinner struct {
	wr     io.Writer
	suffix string
	sp     *spinner.Spinner
}

func (s Spinner) Restart() {
	fmt.Fprintf(s.wr, "\n\n")
	if s.sp != nil {
		s.sp.Start()
	} else {
		fmt.Fprintf(s.wr, "%s\n", s.suffix)
	}
}

func (s Spinner) Stop() {
	fmt.Fprintf(s.wr, "\n")
	if s.sp != nil {
		s.sp.Stop()
	}
}
