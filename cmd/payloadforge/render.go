package main

import (
	"fmt"
	"sort"
	"strings"

	"payloadforge/internal/cache"
	"payloadforge/internal/pipeline"
	"payloadforge/internal/sections"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	parentStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	syntheticStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("3"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// renderSections draws parents with their sub-sections beneath them.
func renderSections(res *pipeline.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", titleStyle.Render(fmt.Sprintf("%d sections", len(res.Sections))))
	if len(res.Platforms) > 0 {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render("platforms: "+strings.Join(res.Platforms, ", ")))
	}
	b.WriteString("\n")

	for _, parent := range sections.Parents(res.Sections) {
		name := parentStyle.Render(parent.Name)
		if parent.IsSynthetic {
			name = syntheticStyle.Render(parent.Name + " (catalogue)")
		}
		fmt.Fprintf(&b, "%s %s%s\n", name, dimStyle.Render(parent.Identifier), paramCount(parent))

		children := sections.Children(res.Sections, parent.Identifier)
		for i, child := range children {
			branch := "├─"
			if i == len(children)-1 {
				branch = "└─"
			}
			fmt.Fprintf(&b, "  %s %s %s%s\n", dimStyle.Render(branch), child.Name, dimStyle.Render(child.Identifier), paramCount(child))
		}
	}

	b.WriteString("\n")
	if res.MainSpecTier == cache.TierFallback {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render("main specification unavailable, showing built-in fallback"))
	}
	if res.FallbackSections > 0 {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render(fmt.Sprintf("%d section documents unavailable", res.FallbackSections)))
	}
	if res.RefreshAdvised {
		fmt.Fprintf(&b, "%s\n", warnStyle.Render("cache manifest is stale or missing, a refresh is advised"))
	}
	return b.String()
}

func paramCount(s sections.Section) string {
	if len(s.Parameters) == 0 {
		return ""
	}
	return dimStyle.Render(fmt.Sprintf(" [%d params]", len(s.Parameters)))
}

// renderDiagnostics prints the cache status block.
func renderDiagnostics(backend, location string, d cache.Diagnostics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("cache status"))
	fmt.Fprintf(&b, "backend:   %s (%s)\n", backend, location)

	if !d.ManifestLoaded {
		fmt.Fprintf(&b, "manifest:  %s\n", warnStyle.Render("unavailable: "+d.ManifestError))
	} else {
		fresh := okStyle.Render("fresh")
		if !d.Fresh {
			fresh = warnStyle.Render("stale")
		}
		fmt.Fprintf(&b, "manifest:  %d files, generated %s, %s\n",
			d.TotalFiles, d.GeneratedAt.Format("2006-01-02 15:04:05 MST"), fresh)
	}

	tiers := make([]string, 0, len(d.Hits))
	for tier := range d.Hits {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		fmt.Fprintf(&b, "%-10s hits=%d failures=%d\n", tier+":", d.Hits[tier], d.Failures[tier])
	}
	return b.String()
}
