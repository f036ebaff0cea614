package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

// ANSI color codes for gap severity (used when Colored=true).
const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[0;31m"
	ansiYellow = "\033[0;33m"
)

// Format selects how an Inventory is rendered.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatTable:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported format %q (use json or table)", s)
}

// TableOptions controls table rendering.
type TableOptions struct {
	// Colored wraps gap severities with ANSI codes. Default false (CI-safe).
	Colored bool
}

// Render writes inv to w in the given format.
func Render(w io.Writer, inv *models.Inventory, format Format, opts TableOptions) error {
	switch format {
	case FormatJSON:
		return RenderJSON(w, inv)
	case FormatTable, "":
		RenderTable(w, inv, opts)
		return nil
	}
	return fmt.Errorf("unsupported format %q", format)
}

// RenderJSON writes inv as indented JSON.
func RenderJSON(w io.Writer, inv *models.Inventory) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(inv); err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	return nil
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// severityCell returns the severity padded to width characters.
// When colored, ANSI codes wrap only the text; trailing padding spaces are plain
// so subsequent columns stay aligned.
func severityCell(sev models.GapSeverity, width int, colored bool) string {
	text := string(sev)
	if !colored {
		return fmt.Sprintf("%-*s", width, text)
	}
	var code string
	switch sev {
	case models.GapError:
		code = ansiRed
	case models.GapWarning:
		code = ansiYellow
	default:
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return code + text + ansiReset + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
// A single-char ellipsis replaces the last rune when truncation occurs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

// RenderTable writes one row per collected resource, followed by the gaps
// that make the inventory partial.
//
// Column order:
//
//	RESOURCE ID  REGION  TYPE  DETAIL
func RenderTable(w io.Writer, inv *models.Inventory, opts TableOptions) {
	fmt.Fprintf(w, "Account %s (profile %s), %d regions, collected %s\n\n",
		inv.AccountID, inv.Profile, len(inv.Regions), inv.CollectedAt.Format("2006-01-02 15:04:05Z07:00"))

	rows := inventoryRows(inv)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No resources.")
	} else {
		const (
			wResource = 40
			wRegion   = 15
			wType     = 24
			wDetail   = 50
		)
		header := fmt.Sprintf("%-*s  %-*s  %-*s  %s", wResource, "RESOURCE ID", wRegion, "REGION", wType, "TYPE", "DETAIL")
		fmt.Fprintln(w, header)
		fmt.Fprintln(w, strings.Repeat("-", len(header)+wDetail-len("DETAIL")))
		for _, r := range rows {
			fmt.Fprintf(w, "%-*s  %-*s  %-*s  %s\n",
				wResource, truncateField(r.id, wResource),
				wRegion, truncateField(r.region, wRegion),
				wType, truncateField(r.kind, wType),
				ShortenMessage(r.detail, wDetail))
		}
	}

	gaps := inv.Gaps()
	if len(gaps) == 0 {
		return
	}
	const (
		wSeverity = 8
		wRegion   = 15
		wPass     = 42
	)
	fmt.Fprintf(w, "\n%d collection gaps:\n", len(gaps))
	header := fmt.Sprintf("%-*s  %-*s  %-*s  %s", wSeverity, "SEVERITY", wRegion, "REGION", wPass, "PASS", "MESSAGE")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))
	for _, g := range gaps {
		fmt.Fprintf(w, "%s  %-*s  %-*s  %s\n",
			severityCell(g.Severity, wSeverity, opts.Colored),
			wRegion, truncateField(g.Region, wRegion),
			wPass, truncateField(g.ResourceType+"/"+g.Pass, wPass),
			ShortenMessage(g.Message, 60))
	}
}
