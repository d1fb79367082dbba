// Package render turns ledger aggregates into the user-facing texts and
// leaderboard cards posted by the chat adapters.
package render

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/sales-leaderboard-bot/internal/money"
)

// Card colors.
const (
	ColorToday = 0x2b6cb0
	ColorFinal = 0x16a34a
)

// Fixed user-facing texts.
const (
	TodayTitle     = "📊 Today’s Sales Leaderboard"
	EmptyBoard     = "_No sales yet_"
	NothingToUndo  = "No entries found today."
	TotalFieldName = "Total Submitted"
)

// Line is one ranked leaderboard entry with a resolved display name.
type Line struct {
	Rank  int
	Name  string
	Total decimal.Decimal
}

// Field is a named value shown under the leaderboard.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Card is a platform-neutral leaderboard payload. Adapters render it as a
// Discord embed or a Telegram HTML message.
type Card struct {
	Title  string
	Color  int
	Lines  []Line
	Fields []Field
}

// FallbackName labels a user whose display name could not be resolved.
func FallbackName(userID string) string { return "User " + userID }

// TodayCard is the on-demand leaderboard for the current day.
func TodayCard(lines []Line) Card {
	return Card{Title: TodayTitle, Color: ColorToday, Lines: lines}
}

// FinalCard is the end-of-day leaderboard posted by the daily summary.
func FinalCard(day time.Time, lines []Line, total decimal.Decimal) Card {
	return Card{
		Title:  fmt.Sprintf("🏁 %s - Final Leaderboard", day.Format("Monday, Jan 2, 2006")),
		Color:  ColorFinal,
		Lines:  lines,
		Fields: []Field{{Name: TotalFieldName, Value: money.Format(total)}},
	}
}

// TotalLine is the plain summary sentence for a finished day.
func TotalLine(day time.Time, total decimal.Decimal) string {
	return fmt.Sprintf("The total for %s was %s", day.Format("01/02/2006"), money.Format(total))
}

// UndoDone confirms a removed entry.
func UndoDone(amount decimal.Decimal) string {
	return fmt.Sprintf("Removed your last entry (%s).", money.Format(amount))
}

// Markdown renders the ranked lines as a Discord markdown description.
func (c Card) Markdown() string {
	if len(c.Lines) == 0 {
		return EmptyBoard
	}
	var b strings.Builder
	for i, l := range c.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "**%d. %s** - %s", l.Rank, l.Name, money.Format(l.Total))
	}
	return b.String()
}

// HTML renders the whole card for Telegram's HTML parse mode.
func (c Card) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(c.Title))
	if len(c.Lines) == 0 {
		b.WriteString("<i>No sales yet</i>")
	}
	for i, l := range c.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "<b>%d. %s</b> - %s", l.Rank, html.EscapeString(l.Name), money.Format(l.Total))
	}
	for _, f := range c.Fields {
		fmt.Fprintf(&b, "\n\n<b>%s</b>: %s", html.EscapeString(f.Name), html.EscapeString(f.Value))
	}
	return b.String()
}
