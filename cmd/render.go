package cmd

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
	"github.com/jonesrussell/north-cloud/cadence/internal/ingest"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

func renderSummaries(w io.Writer, summaries []ingest.Summary) {
	t := newTable(w, table.Row{"Agency", "Platform", "Feeds", "Skipped", "Fetched", "Queued", "Duplicates", "Errors", "Note"})
	for _, s := range summaries {
		t.AppendRow(table.Row{
			s.AgencyID,
			s.Platform,
			s.FeedsScraped,
			s.FeedsSkipped,
			s.DocsFetched,
			s.DocsPushed,
			s.Duplicates,
			len(s.Errors),
			firstNonEmpty(s.Skipped, strings.Join(s.Errors, "; ")),
		})
	}
	t.Render()
}

func renderHealth(w io.Writer, rows []domain.AgencyHealth) {
	t := newTable(w, table.Row{"Agency", "Name", "Platform", "Status", "Last Run", "Docs Last Run"})
	for _, r := range rows {
		lastRun := "never"
		if r.LastRunAt.Valid {
			lastRun = r.LastRunAt.Time.Format(time.RFC3339)
		}
		docs := "-"
		if r.DocsFetchedLast.Valid {
			docs = formatInt(r.DocsFetchedLast.Int64)
		}
		t.AppendRow(table.Row{r.AgencyID, r.CanonicalName, r.PlatformType.String, r.Status, lastRun, docs})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(rows), ""})
	t.Render()
}

func renderDeadLetters(w io.Writer, entries []domain.DeadLetterEntry) {
	t := newTable(w, table.Row{"Agency", "Attempts", "Failed At", "Error"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.AgencyID, e.Attempts, e.TS.Format(time.RFC3339), e.Error})
	}
	t.Render()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
