package main

import (
	"estate-chat/domain"
	"fmt"
	"io"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type view struct {
	out     io.Writer
	userID  string
	colours bool
}

func (v view) conversations(items []domain.ConversationSummary) {
	if len(items) == 0 {
		fmt.Fprintln(v.out, "No conversations yet.")
		return
	}
	table := tablewriter.NewWriter(v.out)
	table.SetHeader([]string{"Counterpart", "Name", "Last message", "At"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range items {
		table.Append([]string{
			c.OtherID,
			lo.FromPtrOr(c.Name, "-"),
			truncate(c.LastMessage, 40),
			c.LastAt.Local().Format(time.DateTime),
		})
	}
	table.Render()
}

func (v view) thread(counterpart string, messages []domain.Message) {
	v.header(fmt.Sprintf("  ====== %s ======", counterpart))
	for _, m := range messages {
		line := fmt.Sprintf("[%s] %s", m.CreatedAt.Local().Format(time.TimeOnly), m.Content)
		if m.SenderID == v.userID {
			line = fmt.Sprintf("%s %s", line, lo.Ternary(m.ReadAt != nil, "✓✓", "✓"))
			fmt.Fprintln(v.out, v.paint(color.FgCyan, "  > "+line))
			continue
		}
		fmt.Fprintln(v.out, v.paint(color.FgGreen, "  < "+line))
	}
}

func (v view) header(s string) {
	if v.colours {
		s = color.New(color.BgBlack, color.FgGreen).Render(s)
	}
	fmt.Fprintln(v.out, s)
}

func (v view) info(format string, args ...any) {
	fmt.Fprintln(v.out, v.paint(color.FgYellow, fmt.Sprintf(format, args...)))
}

func (v view) paint(c color.Color, s string) string {
	if !v.colours {
		return s
	}
	return c.Render(s)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
