// Command yearend summarises a card year-end statement CSV from the shell.
//
//	yearend -file 2024.csv -start 2024-01-01 -end 2024-12-31 -category Travel
//	yearend -file big.csv -stream -chunk-size 5000 -group-by category
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"yearend/internal/analyzer"
	"yearend/internal/cli"
	"yearend/internal/config"
	"yearend/internal/core"
	"yearend/internal/log"
	"yearend/internal/metrics"
	"yearend/internal/statement"
)

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type options struct {
	file       string
	start      string
	end        string
	categories stringList
	groupBy    string
	stream     bool
	chunkSize  int
	sampleSize int
	asJSON     bool
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return
	}
	fmt.Fprintln(os.Stderr, "yearend:", err)
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		os.Exit(2)
	}
	os.Exit(1)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli.LoadEnvFile()
	cfg := config.Load()

	fs := flag.NewFlagSet("yearend", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.file, "file", "", "statement CSV to read (required)")
	fs.StringVar(&opts.start, "start", "", "first day to include, YYYY-MM-DD (default: earliest transaction)")
	fs.StringVar(&opts.end, "end", "", "last day to include, YYYY-MM-DD (default: latest transaction)")
	fs.Var(&opts.categories, "category", "category to include; repeat for more (default: every category)")
	fs.StringVar(&opts.groupBy, "group-by", "sub_category", "grouping: category or sub_category")
	fs.BoolVar(&opts.stream, "stream", false, "read the file in chunks; categories default to those in the first -sample-size rows")
	fs.IntVar(&opts.chunkSize, "chunk-size", cfg.ChunkSize, "rows per chunk in -stream mode")
	fs.IntVar(&opts.sampleSize, "sample-size", cfg.SampleSize, "rows sampled for categories in -stream mode")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.file == "" {
		fs.Usage()
		return &core.ValidationError{Field: "file", Message: "-file is required"}
	}

	logger := cli.SetupLogger(opts.logLevel, stderr).WithComponent(log.ComponentCLI)
	svc := analyzer.New(analyzer.Options{
		ChunkSize:  opts.chunkSize,
		SampleSize: opts.sampleSize,
		CacheSize:  1,
	}, logger, metrics.New())

	var (
		sum summary
		err error
	)
	if opts.stream {
		sum, err = runStream(ctx, svc, opts)
	} else {
		sum, err = runWhole(ctx, svc, opts)
	}
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	return sum.writeTable(stdout)
}

func runWhole(ctx context.Context, svc *analyzer.Service, opts options) (summary, error) {
	data, err := os.ReadFile(opts.file)
	if err != nil {
		return summary{}, err
	}
	ds, err := svc.Ingest(ctx, analyzer.Upload{Name: opts.file, Data: data})
	if err != nil {
		return summary{}, err
	}

	full, hasRows := ds.FullRange()
	r, err := parseRange(opts.start, opts.end, full, hasRows)
	if err != nil {
		return summary{}, err
	}
	cats := []string(opts.categories)
	if len(cats) == 0 {
		cats = ds.Categories
	}
	q, err := buildQuery(r, cats, opts.groupBy)
	if err != nil {
		return summary{}, err
	}

	report, err := svc.Analyze(ctx, ds.ID, q)
	if err != nil {
		return summary{}, err
	}
	return newSummary(opts.file, ds.Stats, q, report, 0), nil
}

func runStream(ctx context.Context, svc *analyzer.Service, opts options) (summary, error) {
	cats := []string(opts.categories)
	if len(cats) == 0 {
		f, err := os.Open(opts.file)
		if err != nil {
			return summary{}, err
		}
		cats, err = svc.Sample(ctx, f, opts.sampleSize)
		f.Close()
		if err != nil {
			return summary{}, err
		}
	}

	r, err := parseRange(opts.start, opts.end, core.DateRange{}, false)
	if err != nil {
		return summary{}, err
	}
	q, err := buildQuery(r, cats, opts.groupBy)
	if err != nil {
		return summary{}, err
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return summary{}, err
	}
	defer f.Close()

	res, err := svc.AnalyzeStream(ctx, f, q, opts.chunkSize)
	if err != nil {
		return summary{}, err
	}
	return newSummary(opts.file, res.Stats, q, &res.Report, res.Chunks), nil
}

// parseRange reads -start and -end. Without rows to default from, both are
// required.
func parseRange(start, end string, full core.DateRange, hasRows bool) (core.DateRange, error) {
	r := full
	if start != "" {
		d, err := core.ParseISODate(start)
		if err != nil {
			return core.DateRange{}, &core.ValidationError{Field: "start", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", start)}
		}
		r.Start = d
	} else if !hasRows {
		return core.DateRange{}, &core.ValidationError{Field: "start", Message: "-start is required"}
	}
	if end != "" {
		d, err := core.ParseISODate(end)
		if err != nil {
			return core.DateRange{}, &core.ValidationError{Field: "end", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", end)}
		}
		r.End = d
	} else if !hasRows {
		return core.DateRange{}, &core.ValidationError{Field: "end", Message: "-end is required"}
	}
	return r, nil
}

func buildQuery(r core.DateRange, cats []string, groupBy string) (core.Query, error) {
	by, err := core.ParseGroupBy(groupBy)
	if err != nil {
		return core.Query{}, err
	}
	q := core.Query{Range: r, Categories: core.NewCategoryFilter(cats...), GroupBy: by}
	if err := q.Validate(); err != nil {
		return core.Query{}, err
	}
	return q, nil
}

type summaryGroup struct {
	Key     string `json:"key"`
	Charges string `json:"charges"`
}

type summary struct {
	File       string             `json:"file"`
	Stats      statement.RowStats `json:"stats"`
	Chunks     int                `json:"chunks,omitempty"`
	Start      string             `json:"start"`
	End        string             `json:"end"`
	GroupBy    string             `json:"group_by"`
	Count      int                `json:"count"`
	Groups     []summaryGroup     `json:"groups"`
	Charges    string             `json:"charges"`
	Credits    string             `json:"credits"`
	Net        string             `json:"net"`
	report     *core.Report
	categories int
}

func newSummary(file string, stats statement.RowStats, q core.Query, report *core.Report, chunks int) summary {
	groups := make([]summaryGroup, 0, len(report.Aggregate.Groups))
	for _, g := range report.Aggregate.Groups {
		groups = append(groups, summaryGroup{Key: g.Key, Charges: core.FormatAmount(g.Charges)})
	}
	return summary{
		File:       file,
		Stats:      stats,
		Chunks:     chunks,
		Start:      q.Range.Start.String(),
		End:        q.Range.End.String(),
		GroupBy:    string(report.Aggregate.GroupBy),
		Count:      len(report.Transactions),
		Groups:     groups,
		Charges:    core.FormatAmount(report.Totals.Charges),
		Credits:    core.FormatAmount(report.Totals.Credits),
		Net:        core.FormatAmount(report.Totals.Net),
		report:     report,
		categories: len(q.Categories),
	}
}

func (s summary) writeTable(w io.Writer) error {
	st := s.Stats
	fmt.Fprintf(w, "%s: %d rows read, %d kept (%d bad date, %d bad charge, %d malformed)\n",
		s.File, st.Read, st.Kept, st.BadDate, st.BadCharge, st.Malformed)
	fmt.Fprintf(w, "%s to %s, %d categories, %d transactions\n\n", s.Start, s.End, s.categories, s.Count)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tCHARGES\t\n", strings.ToUpper(strings.ReplaceAll(s.GroupBy, "_", "-")))
	for _, g := range s.report.Aggregate.Groups {
		fmt.Fprintf(tw, "%s\t%s\t\n", g.Key, core.FormatDollars(g.Charges))
	}
	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "Total charges\t%s\t\n", core.FormatDollars(s.report.Totals.Charges))
	fmt.Fprintf(tw, "Total credits\t%s\t\n", core.FormatDollars(s.report.Totals.Credits))
	fmt.Fprintf(tw, "Net\t%s\t\n", core.FormatDollars(s.report.Totals.Net))
	return tw.Flush()
}
