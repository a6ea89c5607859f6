package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/layerforge/layerforge/internal/domain"
)

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle          = lipgloss.NewStyle().Foreground(dim).Italic(true)
	enhanceStyle       = lipgloss.NewStyle().Foreground(info).Bold(true)
	createStyle        = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// RenderDecisions formats the per-layer placement decisions in generation order.
func RenderDecisions(d domain.Decisions) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s\n", sectionHeaderStyle.Render("Placement"))
	if d.Fallback {
		fmt.Fprintf(&b, "  %s %s\n", warnTagStyle.Render("fallback"), dimStyle.Render(d.Warning))
	}
	b.WriteString("\n")

	for _, dec := range d.Ordered() {
		fmt.Fprintf(&b, "  %s %s %s\n",
			layerStyle.Render(padRight(string(dec.Layer), 22)),
			actionTag(dec.Action),
			dec.Target,
		)
		if dec.Path != "" {
			fmt.Fprintf(&b, "    %s\n", fileStyle.Render(dec.Path))
		}
		if dec.RequestType != "" {
			fmt.Fprintf(&b, "    %s\n", dimStyle.Render(fmt.Sprintf("%s → %s", dec.RequestType, dec.ResponseType)))
		}
		if dec.Rationale != "" {
			fmt.Fprintf(&b, "    %s\n", hintStyle.Render(dec.Rationale))
		}
	}
	return b.String()
}

func actionTag(a domain.Action) string {
	switch a {
	case domain.ActionEnhanceExisting:
		return enhanceStyle.Render("enhance")
	case domain.ActionCreateNew:
		return createStyle.Render("create ")
	default:
		return skipStyle.Render("skip   ")
	}
}

// RenderReport formats a finished run: one line per layer, then the files
// written and any git state captured.
func RenderReport(r *domain.RunReport) string {
	var b strings.Builder

	// ── Header ──
	status := passStyle.Bold(true).Render("success")
	if !r.Success {
		status = failStyle.Bold(true).Render("no changes committed")
	}
	title := headerStyle.Render("layerforge")
	feature := titleStyle.Render(r.Feature.Keyword)
	elapsed := dimStyle.Render(r.FinishedAt.Sub(r.StartedAt).Round(100 * time.Millisecond).String())
	b.WriteString(boxStyle.Render(title + "\n" + feature + "\n\n" + status + "  " + elapsed))
	b.WriteString("\n\n")

	// ── Layers ──
	for _, res := range r.Results {
		fmt.Fprintf(&b, "  %s %s %s  %s\n",
			terminationIcon(res),
			layerStyle.Render(padRight(string(res.Layer), 22)),
			actionTag(res.Decision.Action),
			dimStyle.Render(fmt.Sprintf("%s · %d turns", res.Termination, len(res.Turns))),
		)
		for _, f := range res.WrittenFiles {
			fmt.Fprintf(&b, "      %s\n", fileStyle.Render(f))
		}
		if res.Error != "" {
			fmt.Fprintf(&b, "      %s\n", failStyle.Render(res.Error))
		}
		if res.Warning != "" {
			fmt.Fprintf(&b, "      %s\n", warnStyle.Render(res.Warning))
		}
	}

	b.WriteString("\n  " + separatorLine + "\n\n")
	written := r.WrittenFiles()
	fmt.Fprintf(&b, "  %s %s\n", titleStyle.Render("Files written"), dimStyle.Render(fmt.Sprintf("%d", len(written))))
	if r.CommitHash != "" {
		fmt.Fprintf(&b, "  %s %s", titleStyle.Render("Base commit"), faintStyle.Render(shortHash(r.CommitHash)))
		if n := len(r.DirtyFiles); n > 0 {
			b.WriteString("  " + warnStyle.Render(fmt.Sprintf("%d uncommitted changes", n)))
		}
		b.WriteString("\n")
	}
	if r.Decisions.Fallback {
		fmt.Fprintf(&b, "  %s %s\n", warnTagStyle.Render("fallback"), dimStyle.Render(r.Decisions.Warning))
	}
	b.WriteString("\n  " + hintStyle.Render("Backups of modified files are under backup/. Run id "+r.ID) + "\n")
	return b.String()
}

func terminationIcon(res domain.GenerationResult) string {
	switch {
	case res.Termination == domain.TerminationSkipped:
		return skipStyle.Render("○")
	case res.Success:
		return passStyle.Render("●")
	case res.Termination == domain.TerminationFailed:
		return failStyle.Render("●")
	default:
		return warnStyle.Render("●")
	}
}
