// Package ui renders terminal output for the mdboard CLI.
package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/mschirtzinger/mdboard/internal/syncstatus"
)

var (
	accentColor = lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#A78BFA"}
	passColor   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	warnColor   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	failColor   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	mutedColor  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	accentStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(passColor).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(warnColor).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(failColor).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
)

// Init picks the color profile for w, honouring NO_COLOR and CLICOLOR_FORCE.
func Init(w io.Writer) {
	out := termenv.NewOutput(w)
	lipgloss.SetColorProfile(out.EnvColorProfile())
	lipgloss.SetHasDarkBackground(out.HasDarkBackground())
}

func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderPass(s string) string   { return passStyle.Render(s) }
func RenderWarn(s string) string   { return warnStyle.Render(s) }
func RenderFail(s string) string   { return failStyle.Render(s) }
func RenderMuted(s string) string  { return mutedStyle.Render(s) }

// RenderSyncState returns an icon and the state name, colored by severity.
func RenderSyncState(s syncstatus.State) string {
	switch s {
	case syncstatus.Synced:
		return RenderPass("✓ " + s.String())
	case syncstatus.Syncing:
		return RenderAccent("⟳ " + s.String())
	case syncstatus.LocalChanges:
		return RenderAccent("↑ " + s.String())
	case syncstatus.RemoteChanges:
		return RenderWarn("↓ " + s.String())
	case syncstatus.Diverged:
		return RenderWarn("⇅ " + s.String())
	case syncstatus.Conflict, syncstatus.Error:
		return RenderFail("✗ " + s.String())
	default:
		return RenderMuted("- " + s.String())
	}
}
