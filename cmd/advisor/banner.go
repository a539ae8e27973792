package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerRuleStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	bannerMarkStyle    = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	bannerTitleStyle   = lipgloss.NewStyle().Foreground(colorText).Bold(true)
	bannerTaglineStyle = lipgloss.NewStyle().Foreground(colorPrimaryDark).Italic(true)
	bannerVersionStyle = lipgloss.NewStyle().Foreground(colorMuted)
)

// renderBanner draws a small course map: three year columns feeding the title.
func renderBanner() string {
	node := bannerMarkStyle.Render("◆")
	edge := bannerRuleStyle.Render("──")
	down := bannerRuleStyle.Render("│")
	title := bannerTitleStyle.Render("ADVISOR")

	lines := []string{
		"   " + node + edge + node + edge + node,
		"   " + down + "  " + down + "  " + down,
		"   " + node + edge + node + edge + node,
		"      " + down,
		"   " + title,
	}
	return strings.Join(lines, "\n")
}

func renderBannerWithTagline() string {
	tagline := bannerTaglineStyle.Render("   one year at a time")
	ver := bannerVersionStyle.Render("   " + version)
	return strings.Join([]string{renderBanner(), tagline, ver}, "\n")
}
