package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/restoimport/internal/core"
)

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

// progressPrinter writes one line per stage milestone.
type progressPrinter struct {
	w io.Writer
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) print(pr core.Progress) {
	switch pr.Phase {
	case core.PhaseStageStarted:
		fmt.Fprintf(p.w, "loading %s into %s\n", pr.Kind, pr.Collection)
	case core.PhaseStageCompleted:
		fmt.Fprintf(p.w, "  %d records in %d batches\n", pr.Records, pr.Batches)
	case core.PhaseIndexing:
		fmt.Fprintln(p.w, "creating indexes")
	case core.PhaseDone:
		fmt.Fprintf(p.w, "  %d indexes ensured\n", pr.Indexes)
	case core.PhaseFailed:
		fmt.Fprintf(p.w, "failed during %s\n", pr.State)
	}
}

func printResult(r *core.RunResult) {
	fmt.Println()
	rows := make([][]string, 0, len(r.Report.Stages))
	for _, s := range r.Report.Stages {
		rows = append(rows, []string{
			string(s.Kind),
			s.Collection,
			strconv.Itoa(s.Records),
			strconv.Itoa(s.Batches),
			formatMS(s.DurationMS),
		})
	}
	printTable(os.Stdout, []string{"KIND", "COLLECTION", "RECORDS", "BATCHES", "DURATION"}, rows)

	fmt.Printf("\nrun %s %s: %d records, %d indexes in %s\n",
		r.RunID, r.Status, r.Report.Records(), r.Report.Indexes, formatMS(r.Report.DurationMS))
	if r.FailedState != "" {
		fmt.Printf("failed state: %s\n", r.FailedState)
	}
}

// printCounts shows what a dry run would have written.
func printCounts(counts map[string]int) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(counts[name])})
	}
	fmt.Println("\ndry run, nothing written:")
	printTable(os.Stdout, []string{"COLLECTION", "DOCUMENTS"}, rows)
}

func printIndexes(stages []core.EntityDefinition, ensured int) {
	rows := make([][]string, 0)
	for _, def := range stages {
		for _, idx := range def.Indexes {
			rows = append(rows, []string{def.Collection, idx.Name, formatKeys(idx.Keys), strconv.FormatBool(idx.Unique)})
		}
	}
	printTable(os.Stdout, []string{"COLLECTION", "INDEX", "KEYS", "UNIQUE"}, rows)
	fmt.Printf("\n%d of %d indexes ensured\n", ensured, len(rows))
}

func printRuns(runs []core.RunRecord) {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		records := 0
		for _, s := range run.Stages {
			records += s.Records
		}
		code := run.ErrorCode
		if code == "" {
			code = "-"
		}
		rows = append(rows, []string{
			run.ID,
			formatTime(run.StartedAt),
			string(run.Status),
			strconv.Itoa(records),
			strconv.Itoa(run.Indexes),
			code,
		})
	}
	printTable(os.Stdout, []string{"RUN_ID", "STARTED_AT", "STATUS", "RECORDS", "INDEXES", "ERROR"}, rows)
}

func formatKeys(keys []core.IndexKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		switch k.Order {
		case core.Descending:
			parts[i] = k.Field + ":-1"
		case core.Text:
			parts[i] = k.Field + ":text"
		default:
			parts[i] = k.Field + ":1"
		}
	}
	return strings.Join(parts, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatMS(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
