package notifier

import (
	"fmt"
	"html"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"StockChart/internal/model"
	"StockChart/internal/pipeline"
	"StockChart/internal/recorder"
)

// FormatSummary formats the outcome of one export run into a Telegram message.
func FormatSummary(s *pipeline.Summary) string {
	var b strings.Builder

	icon := "📊"
	switch s.Status {
	case recorder.StatusPartial:
		icon = "⚠️"
	case recorder.StatusFailed:
		icon = "❌"
	case recorder.StatusEmpty:
		icon = "📭"
	}
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s → %s\n\n",
		icon, html.EscapeString(s.Query.Symbol), s.Query.FromParam(), s.Query.ToParam()))

	if s.Records == 0 {
		b.WriteString("No data for this range.\n")
	} else {
		b.WriteString(fmt.Sprintf("Records: %d (%d pages)\n", s.Records, s.Pages))
		if s.HasPrices() {
			b.WriteString(fmt.Sprintf("Last close: %s (%s)\n", formatPrice(s.LastClose), s.LastDate.Format(model.DateLayout)))
			b.WriteString(fmt.Sprintf("Period high: %s | low: %s (at %.0f%% of range)\n",
				formatPrice(s.High), formatPrice(s.Low), s.Position*100))
			periods := make([]int, 0, len(s.SMA))
			for p := range s.SMA {
				periods = append(periods, p)
			}
			sort.Ints(periods)
			for _, p := range periods {
				b.WriteString(fmt.Sprintf("MA%d: %s\n", p, formatPrice(s.SMA[p])))
			}
		}
	}
	if s.SpreadsheetPath != "" {
		b.WriteString(fmt.Sprintf("Spreadsheet: %s\n", html.EscapeString(filepath.Base(s.SpreadsheetPath))))
	}
	if s.ChartPath != "" {
		b.WriteString(fmt.Sprintf("Chart: %s\n", html.EscapeString(filepath.Base(s.ChartPath))))
	}
	if s.Err != nil {
		b.WriteString(fmt.Sprintf("\nError: %s\n", html.EscapeString(s.Err.Error())))
	}
	b.WriteString(fmt.Sprintf("\n<i>%s in %s</i>", s.Status, s.Elapsed.Round(time.Millisecond)))
	return b.String()
}

// FormatHistory lists recent sessions, newest first.
func FormatHistory(sessions []recorder.Session) string {
	if len(sessions) == 0 {
		return "No sessions recorded yet."
	}
	var b strings.Builder
	b.WriteString("🗂 <b>Recent sessions</b>\n\n")
	for _, s := range sessions {
		b.WriteString(fmt.Sprintf("%s  %s %s→%s  %d rows  %s\n",
			s.StartedAt.Format("2006-01-02 15:04"),
			html.EscapeString(s.Symbol),
			s.From.Format(model.DateLayout),
			s.To.Format(model.DateLayout),
			s.Records,
			s.Status,
		))
	}
	return b.String()
}

// FormatHelp lists the commands the bot understands.
func FormatHelp() string {
	return "Available commands:\n" +
		"• /fetch SYM dd/mm/yyyy dd/mm/yyyy\n" +
		"• /history [n]\n" +
		"• /jobs\n" +
		"• /help"
}

// formatPrice renders a price with thousands separators, e.g. 96500 → 96,500.
func formatPrice(v float64) string {
	s := fmt.Sprintf("%.0f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
