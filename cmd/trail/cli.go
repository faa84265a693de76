package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/trail/internal/db"
	"github.com/hpungsan/trail/internal/errors"
	"github.com/hpungsan/trail/internal/ingest"
	"github.com/hpungsan/trail/internal/ops"
	"github.com/hpungsan/trail/internal/watch"
	"github.com/hpungsan/trail/internal/web"
)

// reportWidth is the glamour word-wrap width for `trail report`.
const reportWidth = 100

// newCLIApp creates the CLI application with all commands. rt may be nil
// when only help or version output is needed.
func newCLIApp(rt *env) *cli.App {
	app := &cli.App{
		Name:    "trail",
		Usage:   "Searchable memory of your screen activity",
		Version: Version,
		Commands: []*cli.Command{
			ingestCmd(rt),
			watchCmd(rt),
			searchCmd(rt),
			dateCmd(rt),
			rangeCmd(rt),
			appCmd(rt),
			appsCmd(rt),
			datesCmd(rt),
			statsCmd(rt),
			deleteCmd(rt),
			reindexCmd(rt),
			clearCmd(rt),
			exportCmd(rt),
			importCmd(rt),
			reportCmd(rt),
			rulesCmd(rt),
			uiCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func ingestCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "ingest",
		Usage:     "Process screenshot files in order",
		ArgsUsage: "<file>...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("at least one screenshot file is required"))
			}
			coord, err := rt.coordinator()
			if err != nil {
				return outputError(err)
			}

			shots := make([]ingest.Screenshot, 0, c.NArg())
			for _, path := range c.Args().Slice() {
				shot, err := ingest.ScreenshotFromFile(path)
				if err != nil {
					return outputError(err)
				}
				shots = append(shots, shot)
			}

			results := coord.ProcessBatch(c.Context, shots)
			coord.Wait()
			return outputJSON(map[string]any{
				"results": results,
				"status":  coord.Status(),
			})
		},
	}
}

func watchCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a directory and ingest new screenshots as they appear",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Screenshot directory (default: screenshot_dir from config)"},
			&cli.IntFlag{Name: "per-minute", Usage: "Maximum extractions per minute (0 = unlimited)", Value: -1},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("dir")
			if dir == "" {
				dir = rt.cfg.ScreenshotDir
			}
			if dir == "" {
				return outputError(errors.NewInvalidRequest("no screenshot directory: pass --dir or set screenshot_dir"))
			}
			perMinute := rt.cfg.ExtractPerMinute
			if n := c.Int("per-minute"); n >= 0 {
				perMinute = n
			}

			coord, err := rt.coordinator()
			if err != nil {
				return outputError(err)
			}
			defer coord.Wait()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			color.New(color.FgCyan).Fprintf(os.Stdout, "Watching %s (Ctrl+C to stop)\n", dir)
			w := watch.New(dir, coord, watch.Options{
				PerMinute: perMinute,
				OnResult:  printWatchResult,
				Logger:    rt.log,
			})
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// printWatchResult prints one colored status line per screenshot.
func printWatchResult(res *ingest.Result, err error) {
	if res == nil {
		color.New(color.FgRed).Fprintf(os.Stdout, "✗ %v\n", err)
		return
	}
	switch res.State {
	case ingest.StateIndexed:
		activity := ""
		if res.Entry != nil {
			activity = res.Entry.Activity
		}
		color.New(color.FgGreen).Fprintf(os.Stdout, "✓ %s  %s\n", res.Filename, activity)
	case ingest.StateSkippedDuplicate:
		color.New(color.FgHiBlack).Fprintf(os.Stdout, "= %s  duplicate of %s\n", res.Filename, res.SimilarTo)
	case ingest.StateExcluded:
		color.New(color.FgYellow).Fprintf(os.Stdout, "- %s  excluded by %s\n", res.Filename, res.ExcludedBy)
	default:
		msg := res.Error
		if msg == "" && err != nil {
			msg = err.Error()
		}
		color.New(color.FgRed).Fprintf(os.Stdout, "✗ %s  %s\n", res.Filename, msg)
	}
}

func searchCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Full-text search; with --app/--from/--to the filters are combined",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultSearchLimit, Usage: "Maximum results"},
			&cli.BoolFlag{Name: "unweighted", Usage: "Rank every field equally"},
			&cli.StringFlag{Name: "app", Aliases: []string{"a"}, Usage: "Only this app"},
			&cli.StringFlag{Name: "from", Usage: "Start date"},
			&cli.StringFlag{Name: "to", Usage: "End date"},
		},
		Action: func(c *cli.Context) error {
			query := c.Args().First()
			if c.IsSet("app") || c.IsSet("from") || c.IsSet("to") {
				return output(ops.SearchCombined(c.Context, rt.db, ops.CombinedInput{
					StartDate: c.String("from"),
					EndDate:   c.String("to"),
					Keywords:  query,
					AppName:   c.String("app"),
					Limit:     c.Int("limit"),
				}))
			}
			return output(ops.SearchFulltext(c.Context, rt.db, ops.SearchInput{
				Query:      query,
				Limit:      c.Int("limit"),
				Unweighted: c.Bool("unweighted"),
			}))
		},
	}
}

func dateCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "date",
		Usage:     "List one day's activity",
		ArgsUsage: "<date>",
		Action: func(c *cli.Context) error {
			return output(ops.SearchByDate(c.Context, rt.db, c.Args().First()))
		},
	}
}

func rangeCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "range",
		Usage:     "List activity between two dates inclusive",
		ArgsUsage: "<start> <end>",
		Action: func(c *cli.Context) error {
			return output(ops.SearchByDateRange(c.Context, rt.db, c.Args().Get(0), c.Args().Get(1)))
		},
	}
}

func appCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "app",
		Usage:     "List activity in one app, most recent first",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			return output(ops.SearchByApp(c.Context, rt.db, c.Args().First()))
		},
	}
}

func appsCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "apps",
		Usage: "List every app seen",
		Action: func(c *cli.Context) error {
			return output(ops.ListApps(c.Context, rt.db))
		},
	}
}

func datesCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "dates",
		Usage: "List every date with activity",
		Action: func(c *cli.Context) error {
			return output(ops.ListDates(c.Context, rt.db))
		},
	}
}

func statsCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show index statistics and ingestion status",
		Action: func(c *cli.Context) error {
			stats, err := ops.GetIndexStats(c.Context, rt.db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"index":  stats,
				"dedup":  map[string]int{"hashes": rt.dedupIndex().Len(), "threshold": rt.dedupIndex().Threshold()},
				"rules":  rt.rules.Load().Len(),
				"driver": db.Driver(),
			})
		},
	}
}

func deleteCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove one entry from the index",
		ArgsUsage: "<filename>",
		Action: func(c *cli.Context) error {
			return output(ops.Delete(rt.db, c.Args().First()))
		},
	}
}

func reindexCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "reindex",
		Usage: "Rebuild the full-text index from stored entries",
		Action: func(c *cli.Context) error {
			return output(ops.Reindex(c.Context, rt.db))
		},
	}
}

func clearCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every entry and forget every screenshot hash",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("clear deletes all entries; pass --yes to confirm"))
			}
			return output(ops.Clear(rt.db, rt.dedupIndex()))
		},
	}
}

func exportCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export entries to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: <data dir>/exports/trail-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "from", Usage: "Start date"},
			&cli.StringFlag{Name: "to", Usage: "End date"},
		},
		Action: func(c *cli.Context) error {
			return output(ops.Export(c.Context, rt.db, rt.dir, rt.cfg, ops.ExportInput{
				Path:      c.String("path"),
				StartDate: c.String("from"),
				EndDate:   c.String("to"),
			}))
		},
	}
}

func importCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import entries from a JSONL export",
		ArgsUsage: "<path>",
		Action: func(c *cli.Context) error {
			return output(ops.Import(c.Context, rt.db, rt.dir, rt.cfg, ops.ImportInput{Path: c.Args().First()}))
		},
	}
}

func reportCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Render a day's activity log",
		ArgsUsage: "<date>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Print HTML instead of rendering to the terminal"},
			&cli.BoolFlag{Name: "raw", Usage: "Print the markdown source"},
		},
		Action: func(c *cli.Context) error {
			date := c.Args().First()
			if date == "" {
				date = "today"
			}
			report, err := ops.Report(c.Context, rt.db, ops.ReportInput{Date: date, HTML: c.Bool("html")})
			if err != nil {
				return outputError(err)
			}

			switch {
			case c.Bool("html"):
				_, err = fmt.Fprint(os.Stdout, report.HTML)
			case c.Bool("raw"):
				_, err = fmt.Fprint(os.Stdout, report.Markdown)
			default:
				err = renderMarkdown(report.Markdown)
			}
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

func renderMarkdown(md string) error {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(reportWidth),
	)
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(os.Stdout, out)
	return err
}

func rulesCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Show or change the learned rules",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the current rules",
				Action: func(c *cli.Context) error {
					return outputJSON(ops.ShowRules(rt.rules))
				},
			},
			{
				Name:  "history",
				Usage: "List rule changes, oldest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Only the last N changes"},
				},
				Action: func(c *cli.Context) error {
					return outputJSON(ops.RuleHistory(rt.rules, c.Int("limit")))
				},
			},
			{
				Name:      "feedback",
				Usage:     "Turn plain-language feedback into a rule change",
				ArgsUsage: "<text>",
				Action: func(c *cli.Context) error {
					text := strings.Join(c.Args().Slice(), " ")
					return output(ops.ApplyFeedback(c.Context, rt.rules, rt.interpreter(), text))
				},
			},
			{
				Name:  "undo",
				Usage: "Revert the most recent rule change",
				Action: func(c *cli.Context) error {
					return output(ops.UndoRules(rt.rules))
				},
			},
		},
	}
}

func uiCmd(rt *env) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Browse activity in a local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: web.DefaultBind, Usage: "Address to listen on"},
			&cli.IntFlag{Name: "port", Value: web.DefaultPort, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(rt.db, rt.cfg, Version, c.String("bind"), c.Int("port"), rt.log)
			if err := web.Run(c.Context, srv, rt.log); err != nil && err != http.ErrServerClosed {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// output prints v as JSON, or the error in CLI form.
func output[T any](v T, err error) error {
	if err != nil {
		return outputError(err)
	}
	return outputJSON(v)
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if trailErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", trailErr.Code, trailErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
