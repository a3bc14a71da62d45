package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// statusf prints a status message to w unless quiet mode is set.
func statusf(w io.Writer, quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// displayName normalizes a user-supplied name to NFC so composed and
// decomposed accents print and align the same.
func displayName(s string) string {
	return norm.NFC.String(s)
}

// formatExpiry renders a token expiry relative to now.
func formatExpiry(validUntil, now time.Time) string {
	if validUntil.IsZero() {
		return "-"
	}

	stamp := validUntil.Local().Format(time.RFC3339)

	d := validUntil.Sub(now).Truncate(time.Second)
	if d <= 0 {
		return fmt.Sprintf("%s (expired %s ago)", stamp, -d)
	}

	return fmt.Sprintf("%s (in %s)", stamp, d)
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = cell + strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}
