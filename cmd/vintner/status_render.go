package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vintner/internal/batch"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.Und)

// statusLabel renders a machine status for display: "ocr_done" -> "Ocr Done".
func statusLabel(status batch.Status) string {
	return titleCaser.String(strings.ReplaceAll(string(status), "_", " "))
}

func statusColor(status batch.Status) string {
	switch status {
	case batch.StatusPublished:
		return ansiGreen
	case batch.StatusFailed:
		return ansiRed
	case batch.StatusFormatted:
		return ansiBlue
	default:
		return ""
	}
}

func colorizeStatus(status batch.Status, colorize bool) string {
	label := statusLabel(status)
	if !colorize {
		return label
	}
	color := statusColor(status)
	if color == "" {
		return label
	}
	return color + label + ansiReset
}

func reviewLabel(item *batch.Item, colorize bool) string {
	if !item.NeedsReview() {
		return ""
	}
	if colorize {
		return ansiYellow + "review" + ansiReset
	}
	return "review"
}

func renderBatchSummary(w io.Writer, b *batch.Batch) {
	fmt.Fprintf(w, "Batch %d: %d items", b.ID, len(b.Items))
	var flags []string
	if b.OcrLocked {
		flags = append(flags, "ocr done")
	}
	if b.CompareLocked {
		flags = append(flags, "compare done")
	}
	if b.Cancelled {
		flags = append(flags, "cancelled")
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(flags, ", "))
	}
	fmt.Fprintln(w)
	if b.LastError != "" {
		fmt.Fprintf(w, "Last error: %s\n", b.LastError)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
