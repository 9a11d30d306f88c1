package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/tempvc/internal/application"
	"github.com/bnema/tempvc/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const seatBarWidth = 10

type RenderOptions struct {
	Now time.Time
}

func renderView(snapshot application.Snapshot, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Temporary Voice Channels"),
		s.header.Render(fmt.Sprintf("templates: %d  tracked: %d", len(snapshot.Templates), len(snapshot.Channels))),
	}

	if len(snapshot.Templates) == 0 {
		lines = append(lines, s.section.Render(s.empty.Render("No trigger templates configured.")))
	} else {
		parts := make([]string, 0, len(snapshot.Templates))
		for _, template := range snapshot.Templates {
			parts = append(parts, renderTemplate(template, s))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))
	}

	if len(snapshot.Channels) == 0 {
		lines = append(lines, s.section.Render(s.empty.Render("No temporary channels tracked.")))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	parts := make([]string, 0, len(snapshot.Channels))
	for _, channel := range snapshot.Channels {
		parts = append(parts, renderChannel(channel, opts, s))
	}
	lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTemplate(template domain.TriggerTemplate, s styles) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.template.Render(strings.TrimSpace(template.DisplayName)),
		" ",
		s.key.Render("seats:"),
		" ",
		renderSeatBar(template.MemberCapacity, seatBarWidth, s),
		" ",
		s.detail.Render(fmt.Sprintf("%d", template.MemberCapacity)),
		" ",
		s.key.Render("next:"),
		" ",
		s.detail.Render(template.ChannelName(template.Sequence)),
		" ",
		s.header.Render(fmt.Sprintf("(trigger %s)", template.TriggerChannelID)),
	)
}

func renderChannel(channel domain.TrackedChannel, opts RenderOptions, s styles) string {
	age := lipgloss.NewStyle().Foreground(ageColor(channel.CreatedAt, opts.Now))
	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.channel.Render(channel.Name),
		" ",
		s.header.Render(fmt.Sprintf("(%s)", channel.ChannelID)),
		" ",
		age.Render(formatAge(channel.CreatedAt, opts.Now)),
	)

	if channel.State == domain.ChannelStatePendingDeletion {
		line += " " + s.warning.Render("[pending deletion]")
	}

	return line
}

// renderSeatBar draws one cell per seat, capped at width with a trailing "+"
// for larger channels.
func renderSeatBar(capacity int, width int, s styles) string {
	if capacity <= 0 || width <= 0 {
		return ""
	}

	filled := capacity
	overflow := ""
	if filled > width {
		filled = width
		overflow = "+"
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(overflow),
		s.barBracket.Render("]"),
	)
}

func formatAge(createdAt, now time.Time) string {
	if createdAt.IsZero() {
		return "created at unknown time"
	}
	if now.IsZero() {
		return "created " + createdAt.Format(time.RFC3339)
	}

	elapsed := now.Sub(createdAt)
	if elapsed < time.Minute {
		return "created just now"
	}
	if elapsed < time.Hour {
		return "created " + plural(int(elapsed.Minutes()), "minute") + " ago"
	}
	if elapsed < 24*time.Hour {
		return "created " + plural(int(elapsed.Hours()), "hour") + " ago"
	}

	days := int(math.Floor(elapsed.Hours() / 24))
	return fmt.Sprintf("created %s ago (%s)", plural(days, "day"), createdAt.Format("15:04 on 02 Jan"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp, 240 faded to 255 bright.
	baseColor := 240.0
	targetColor := 255.0
	interpolated := baseColor + (targetColor-baseColor)*normalized

	return lipgloss.Color(fmt.Sprintf("%d", int(interpolated)))
}

// ageColor fades from bright for a fresh channel to grey after a day.
func ageColor(createdAt, now time.Time) lipgloss.Color {
	if now.IsZero() || createdAt.IsZero() || createdAt.After(now) {
		return lipgloss.Color("255")
	}

	window := 24 * time.Hour
	remaining := window.Seconds() - now.Sub(createdAt).Seconds()
	return interpolateColor(remaining, 0, window.Seconds())
}
