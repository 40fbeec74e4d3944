package console

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

// recentEvents is how many of a market's latest events get listed under its line.
const recentEvents = 3

type Formatter struct {
	Color bool
}

func (f *Formatter) colorize(s, c string) string {
	if !f.Color {
		return s
	}
	return c + s + ansiReset
}

func (f *Formatter) zoneColor(res *model.MarketResult, row model.MetricRow) string {
	switch {
	case res.ExtremeHigh(row):
		return ansiGreen
	case res.ExtremeLow(row):
		return ansiRed
	default:
		return ansiYellow
	}
}

func eventColor(k model.EventKind) string {
	switch k {
	case model.EventOverbought, model.EventBullCross:
		return ansiGreen
	case model.EventOversold, model.EventBearCross:
		return ansiRed
	default:
		return ansiYellow
	}
}

func optional(o model.Optional, prec int, sign bool) string {
	v, ok := o.Get()
	if !ok {
		return "--"
	}
	if sign {
		return fmt.Sprintf("%+.*f", prec, v)
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// RenderResult formats the latest row of a market plus its most recent events.
func (f *Formatter) RenderResult(res *model.MarketResult) string {
	var sb strings.Builder
	sb.WriteString(f.colorize("[COT] ", ansiDim))
	sb.WriteString(res.Market.ID)
	if res.Market.Display != "" {
		sb.WriteString(" ")
		sb.WriteString(f.colorize("("+res.Market.Display+")", ansiDim))
	}

	row, ok := res.Latest()
	if !ok {
		sb.WriteString(" no rows\n")
		return sb.String()
	}

	col := f.zoneColor(res, row)
	fmt.Fprintf(&sb, " %s net=%+d idx=%s pct=%s z=%s",
		row.ReportDate.Format("2006-01-02"),
		row.Net,
		optional(row.COTIndex, 1, false),
		f.colorize(optional(row.Percentile, 1, false), col),
		optional(row.ZScore, 2, true),
	)
	switch {
	case res.ExtremeHigh(row):
		sb.WriteString(" " + f.colorize("EXTREME HIGH", ansiGreen))
	case res.ExtremeLow(row):
		sb.WriteString(" " + f.colorize("EXTREME LOW", ansiRed))
	}
	sb.WriteString("\n")

	events := res.Events
	if len(events) > recentEvents {
		events = events[len(events)-recentEvents:]
	}
	for _, ev := range events {
		fmt.Fprintf(&sb, "      %s %s pct=%.1f\n",
			ev.ReportDate.Format("2006-01-02"),
			f.colorize(fmt.Sprintf("%-10s", ev.Kind), eventColor(ev.Kind)),
			ev.Percentile)
	}
	return sb.String()
}

// RenderSummary formats the run totals and each failed market.
func (f *Formatter) RenderSummary(run port.RunSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s report=%s group=%s window=%d extremes=%g ok=%s",
		f.colorize("[COT]", ansiDim),
		run.Report, run.Group, run.Window, run.Extreme,
		f.colorize(strconv.Itoa(len(run.Succeeded)), ansiGreen))

	if len(run.Failed) == 0 {
		sb.WriteString(" failed=0\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, " failed=%s\n", f.colorize(strconv.Itoa(len(run.Failed)), ansiRed))

	ids := make([]string, 0, len(run.Failed))
	for id := range run.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&sb, "      %s %s\n", f.colorize(id, ansiRed), run.Failed[id])
	}
	return sb.String()
}
