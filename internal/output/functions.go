package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// FormatSpeed formats an average transfer rate
func FormatSpeed(bytes uint64, elapsed float64) string {
	if elapsed <= 0 {
		return "0 B/s"
	}
	return humanize.Bytes(uint64(float64(bytes)/elapsed)) + "/s"
}

// FormatProgress renders "written / total" in human units
func FormatProgress(written, total uint64) string {
	return fmt.Sprintf("%s / %s", humanize.Bytes(written), humanize.Bytes(total))
}

// Percent of total written, 100 for empty files
func Percent(written, total uint64) float64 {
	if total == 0 {
		return 100
	}
	return float64(written) / float64(total) * 100
}

// PrintProgressBar creates a progress bar string
func PrintProgressBar(current, total uint64, width int) string {
	if width <= 0 {
		width = 30
	}
	if current > total {
		current = total
	}
	percent := Percent(current, total) / 100
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return debugStyle.Render(fmt.Sprintf("%s %.1f%% %s ", bar, percent*100, StyleSymbols["bullet"]))
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24 // Default fallback height
	}
	return height
}
