package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/layerforge/layerforge/internal/domain"
)

// ── warm palette ──
var (
	accent    = lipgloss.Color("#D97706") // amber
	fg        = lipgloss.Color("#E8E6E3") // warm light gray
	dim       = lipgloss.Color("#6B7280") // muted gray
	faint     = lipgloss.Color("#3F3F46") // very dim
	success   = lipgloss.Color("#22C55E") // green
	danger    = lipgloss.Color("#EF4444") // red
	warning   = lipgloss.Color("#F59E0B") // amber-yellow
	info      = lipgloss.Color("#8B949E") // soft blue-gray
	skipColor = lipgloss.Color("#4B5563") // dark gray
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Align(lipgloss.Center)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 4).
			Align(lipgloss.Center).
			Width(68)

	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	faintStyle    = lipgloss.NewStyle().Foreground(faint)
	passStyle     = lipgloss.NewStyle().Foreground(success)
	failStyle     = lipgloss.NewStyle().Foreground(danger)
	warnStyle     = lipgloss.NewStyle().Foreground(warning)
	skipStyle     = lipgloss.NewStyle().Foreground(skipColor)
	warnTagStyle  = lipgloss.NewStyle().Foreground(warning).Bold(true)
	infoTagStyle  = lipgloss.NewStyle().Foreground(info)
	fileStyle     = lipgloss.NewStyle().Foreground(dim)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	layerStyle    = lipgloss.NewStyle().Bold(true).Foreground(fg)
	separatorLine = faintStyle.Render(strings.Repeat("─", 64))
)

// maxUnitsShown caps the unit list printed under each layer.
const maxUnitsShown = 8

// RenderStructure formats a scanned project: one bar per layer with the units
// found in it.
func RenderStructure(st *domain.ProjectStructure) string {
	var b strings.Builder

	// ── Header ──
	title := headerStyle.Render("layerforge")
	subtitle := dimStyle.Render("Project Structure")
	ns := st.RootNamespace
	if ns == "" {
		ns = "(no root namespace)"
	}
	summary := titleStyle.Render(ns) + "\n" +
		dimStyle.Render(fmt.Sprintf("%d units · %d unclassified · %s", st.TotalUnits(), st.Unclassified, orDash(st.Language)))
	b.WriteString(boxStyle.Render(title + "\n" + subtitle + "\n\n" + summary))
	b.WriteString("\n\n")

	// ── Layers ──
	total := st.TotalUnits()
	for _, layer := range domain.LayerOrder {
		units := st.UnitsFor(layer)
		pct := 0
		if total > 0 {
			pct = len(units) * 100 / total
		}
		name := layerStyle.Render(padRight(string(layer), 22))
		count := dimStyle.Render(fmt.Sprintf("%d", len(units)))
		fmt.Fprintf(&b, "  %s %s  %s\n", name, bar(pct, 20), count)

		for i, u := range units {
			if i == maxUnitsShown {
				fmt.Fprintf(&b, "    %s\n", faintStyle.Render(fmt.Sprintf("… %d more", len(units)-i)))
				break
			}
			fmt.Fprintf(&b, "    %s %s  %s\n", passStyle.Render("●"), u.TypeName, fileStyle.Render(shortenPath(u.Path)))
		}
	}

	if len(st.SourceRoots) > 0 || len(st.Resources) > 0 {
		b.WriteString("\n  " + separatorLine + "\n\n")
		if len(st.SourceRoots) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", titleStyle.Render("Source roots"), dimStyle.Render(strings.Join(st.SourceRoots, ", ")))
		}
		if len(st.Resources) > 0 {
			fmt.Fprintf(&b, "  %s %s\n", titleStyle.Render("Resources"), dimStyle.Render(fmt.Sprintf("%d files", len(st.Resources))))
		}
	}

	renderWarnings(&b, st.Warnings)
	b.WriteString("\n")
	return b.String()
}

func renderWarnings(b *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "  %s  %s\n", titleStyle.Render("Warnings"),
		warnTagStyle.Render(fmt.Sprintf("%d", len(warnings))))
	for _, w := range warnings {
		fmt.Fprintf(b, "    %s %s\n", warnTagStyle.Render("warn "), dimStyle.Render(w))
	}
}

func bar(pct, width int) string {
	filled := max(0, min(pct*width/100, width))
	if pct > 0 && filled == 0 {
		filled = 1
	}
	empty := width - filled

	filledStr := lipgloss.NewStyle().Foreground(accent).Render(strings.Repeat("█", filled))
	emptyStr := lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", empty))
	return filledStr + emptyStr
}

func shortenPath(path string) string {
	for _, marker := range []string{"src/main/java/", "src/main/kotlin/"} {
		if idx := strings.Index(path, marker); idx >= 0 {
			path = path[idx+len(marker):]
			break
		}
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 4 {
		return "…/" + strings.Join(parts[len(parts)-3:], "/")
	}
	return path
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	if hash == "" {
		return "·······"
	}
	return hash
}

// RenderHistory formats run history for terminal output.
func RenderHistory(entries []domain.RunSummary) string {
	if len(entries) == 0 {
		return "  " + dimStyle.Render("No run history found.") + "\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  " + titleStyle.Render("Run History") + "\n")
	b.WriteString("  " + faintStyle.Render(strings.Repeat("─", 50)) + "\n\n")

	for _, e := range entries {
		status := passStyle.Render("ok  ")
		if !e.Success {
			status = failStyle.Render("fail")
		}
		layers := fmt.Sprintf("%d/%d layers", e.LayersOK, e.LayersTotal)

		line := fmt.Sprintf("  %s  %s  %s  %s  %s",
			dimStyle.Render(e.StartedAt.Format("2006-01-02 15:04")),
			faintStyle.Render(shortHash(e.CommitHash)),
			status,
			padRight(e.Keyword, 24),
			dimStyle.Render(layers),
		)
		if n := len(e.WrittenFiles); n > 0 {
			line += "  " + infoTagStyle.Render(fmt.Sprintf("%d files", n))
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	return b.String()
}
