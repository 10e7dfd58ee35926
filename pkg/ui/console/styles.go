package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette (xterm-256).
const (
	colorWhite   = lipgloss.Color("231")
	colorInk     = lipgloss.Color("16")
	colorNavy    = lipgloss.Color("25")
	colorSky     = lipgloss.Color("153")
	colorSlate   = lipgloss.Color("61")
	colorAmber   = lipgloss.Color("214")
	colorSakura  = lipgloss.Color("211")
	colorTeal    = lipgloss.Color("73")
	colorRed     = lipgloss.Color("203")
	colorDarkRed = lipgloss.Color("52")
	colorMuted   = lipgloss.Color("244")
)

// cardStyle renders one transcript entry as a badge over a bordered box.
type cardStyle struct {
	badge lipgloss.Style
	box   lipgloss.Style
	label string
}

func newCard(label string, accent lipgloss.Color, border lipgloss.Border) cardStyle {
	return cardStyle{
		label: label,
		badge: lipgloss.NewStyle().Bold(true).Foreground(colorInk).Background(accent).Padding(0, 1),
		box:   lipgloss.NewStyle().Border(border).BorderForeground(accent).Padding(0, 1),
	}
}

func (c cardStyle) render(width int, content string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		c.badge.Render(c.label),
		c.box.Width(width).Render(strings.TrimSpace(content)),
	)
}

type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	bootLine   lipgloss.Style
	bootDone   lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style

	user       cardStyle
	translated cardStyle
	echoed     cardStyle
	failed     cardStyle
}

func defaultTheme() theme {
	bold := lipgloss.NewStyle().Bold(true)

	return theme{
		header:     bold.Padding(0, 1).Foreground(colorWhite).Background(colorNavy),
		headerMeta: lipgloss.NewStyle().Foreground(colorSky),
		divider:    lipgloss.NewStyle().Foreground(colorSlate),
		bootLine:   lipgloss.NewStyle().Foreground(colorTeal),
		bootDone:   bold.Foreground(colorSakura),
		status:     bold.Foreground(colorMuted),
		statusBusy: bold.Foreground(colorAmber),
		statusErr:  bold.Foreground(colorRed),
		hint:       lipgloss.NewStyle().Foreground(colorMuted),
		inputLabel: bold.Foreground(colorAmber),
		input:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSlate).Padding(0, 1),
		viewport:   lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(colorSlate).Padding(0, 1),

		user:       newCard("YOU", colorAmber, lipgloss.RoundedBorder()),
		translated: newCard("EN → JA", colorSakura, lipgloss.RoundedBorder()),
		echoed:     newCard("AS IS", colorTeal, lipgloss.RoundedBorder()),
		failed: cardStyle{
			label: "ERROR",
			badge: bold.Foreground(colorWhite).Background(colorRed).Padding(0, 1),
			box:   lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(colorRed).Foreground(colorRed).Background(colorDarkRed).Padding(0, 1),
		},
	}
}

// cardFor picks the card for an entry. Bot replies are told apart by the
// relay's reply wording.
func (t theme) cardFor(item entry) cardStyle {
	switch item.role {
	case roleUser:
		return t.user
	case roleError:
		return t.failed
	}

	if strings.HasPrefix(item.content, translatedPrefix) {
		return t.translated
	}
	return t.echoed
}
