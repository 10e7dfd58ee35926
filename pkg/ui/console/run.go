// Package console is a local terminal front end for the relay: every line the
// operator types is handled exactly like a chat message and the bot's replies
// are rendered as cards.
package console

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ReplyFunc handles one typed line and returns every text the bot sent back.
// An error means not even the generic error reply could be delivered.
type ReplyFunc func(ctx context.Context, text string) ([]string, error)

// Info is shown in the console header.
type Info struct {
	Provider string
	Model    string
	Prefix   string
}

func Run(ctx context.Context, replyFn ReplyFunc, info Info) error {
	program := tea.NewProgram(newModel(ctx, replyFn, info), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return err
	}

	fmt.Println(renderGoodbyeBanner())
	return nil
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("231")).
		Background(lipgloss.Color("25")).
		Padding(1, 2)

	return style.Render("🌐 さようなら, thanks for using transbot")
}
