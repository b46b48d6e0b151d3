package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// barWidth is the number of characters of the progress bar
const barWidth = 40

// progressBar draws block completion on a terminal line
type progressBar struct {
	w     io.Writer
	start time.Time
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w, start: time.Now()}
}

// update matches kriging.ProgressCallback
func (p *progressBar) update(completed, total int, message string) {
	if total <= 0 {
		if message != "" {
			fmt.Fprintln(p.w, message)
		}
		return
	}
	fmt.Fprint(p.w, "\r"+renderBar(completed, total, time.Since(p.start), message))
	if completed >= total {
		fmt.Fprintln(p.w)
	}
}

// renderBar formats the bar with percentage, counts and timing
func renderBar(completed, total int, elapsed time.Duration, message string) string {
	percentage := float64(completed) / float64(total) * 100
	numBars := int(percentage / 100 * barWidth)

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < barWidth; i++ {
		switch {
		case i < numBars:
			sb.WriteString("█")
		case i == numBars:
			sb.WriteString("▓")
		default:
			sb.WriteString("░")
		}
	}
	sb.WriteString("]")
	fmt.Fprintf(&sb, " %5.1f%% (%d/%d)", percentage, completed, total)

	if completed > 0 {
		fmt.Fprintf(&sb, " | %.1fs elapsed", elapsed.Seconds())
		remaining := 0.0
		if completed < total {
			remaining = elapsed.Seconds() / float64(completed) * float64(total-completed)
		}
		fmt.Fprintf(&sb, " | %s remaining", formatSeconds(remaining))
	}
	if message != "" {
		sb.WriteString(" | " + message)
	}
	return sb.String()
}

// formatSeconds picks seconds, minutes or hours
func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.1fs", s)
	case s < 3600:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fh", s/3600)
	}
}
