package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// statusColor picks a color for stall and reservation statuses.
func statusColor(status string) *color.Color {
	switch status {
	case "AVAILABLE", "CONFIRMED":
		return green
	case "RESERVED", "PENDING":
		return yellow
	case "MAINTENANCE", "CANCELLED":
		return red
	}
	return cyan
}

func paintStatus(status string) string {
	return statusColor(status).Sprint(status)
}

func printError(w io.Writer, err error) {
	red.Fprintf(w, "error: ")
	fmt.Fprintln(w, err)
}

func printSuccess(w io.Writer, format string, a ...any) {
	green.Fprintf(w, "✓ "+format+"\n", a...)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func table(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}
