package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// TableOptions controls which columns RenderTable renders and how severity is coloured.
type TableOptions struct {
	// Colored colours severity labels. Default false (CI-safe).
	Colored bool

	// IncludeDomain adds a DOMAIN column.
	IncludeDomain bool

	// IncludeAccount adds an ACCOUNT column (useful across subscriptions).
	IncludeAccount bool

	// ScopeLabel is the column header for the resource group column.
	// Defaults to "RESOURCE GROUP". Use "NAMESPACE" for Kubernetes and
	// "VPC" for AWS.
	ScopeLabel string
}

func severityColor(sev models.Severity) *color.Color {
	switch sev {
	case models.SeverityCritical:
		return color.New(color.FgRed, color.Bold)
	case models.SeverityHigh:
		return color.New(color.FgRed)
	case models.SeverityMedium:
		return color.New(color.FgYellow)
	case models.SeverityLow:
		return color.New(color.FgBlue)
	default:
		return nil
	}
}

// ColorSeverity colours a severity label when colored is true.
// Colour is forced on so the caller decides, not terminal detection.
func ColorSeverity(sev models.Severity, colored bool) string {
	s := string(sev)
	if !colored {
		return s
	}
	c := severityColor(sev)
	if c == nil {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
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

// severityCell pads the severity to width. Padding stays outside the colour
// codes so later columns align.
func severityCell(sev models.Severity, width int, colored bool) string {
	text := string(sev)
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return ColorSeverity(sev, colored) + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns,
// keeping the tail, which is the distinguishing part of resource IDs.
func truncateField(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return "…" + string(runes[len(runes)-max+1:])
}

type column struct {
	title string
	width int
	cell  func(f models.Finding) string
}

func tableColumns(opts TableOptions) []column {
	cols := []column{{"RESOURCE", 34, func(f models.Finding) string { return f.ResourceID }}}
	if opts.IncludeAccount {
		cols = append(cols, column{"ACCOUNT", 20, func(f models.Finding) string { return f.AccountID }})
	}
	cols = append(cols,
		column{opts.ScopeLabel, 16, func(f models.Finding) string { return f.ResourceGroup }},
		column{"SEVERITY", 10, nil},
	)
	if opts.IncludeDomain {
		cols = append(cols, column{"DOMAIN", 8, func(f models.Finding) string { return f.Domain }})
	}
	return append(cols, column{"PORT", 6, func(f models.Finding) string {
		if f.Port == "" {
			return "-"
		}
		return f.Port
	}})
}

const messageWidth = 60

// RenderTable writes one row per finding:
//
//	RESOURCE  [ACCOUNT]  SCOPE  SEVERITY  [DOMAIN]  PORT  MESSAGE
func RenderTable(w io.Writer, findings []models.Finding, opts TableOptions) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No findings.")
		return
	}
	if opts.ScopeLabel == "" {
		opts.ScopeLabel = "RESOURCE GROUP"
	}
	cols := tableColumns(opts)

	titles := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		titles = append(titles, fmt.Sprintf("%-*s", c.width, c.title))
	}
	header := strings.Join(append(titles, "MESSAGE"), "  ")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)-len("MESSAGE")+messageWidth))

	for _, f := range findings {
		cells := make([]string, 0, len(cols)+1)
		for _, c := range cols {
			if c.cell == nil {
				cells = append(cells, severityCell(f.Severity, c.width, opts.Colored))
				continue
			}
			cells = append(cells, fmt.Sprintf("%-*s", c.width, truncateField(c.cell(f), c.width)))
		}
		cells = append(cells, ShortenMessage(f.Explanation, messageWidth))
		fmt.Fprintln(w, strings.Join(cells, "  "))
	}
}
