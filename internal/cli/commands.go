package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"finanse/internal/core"
	"finanse/internal/services"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
)

// App holds what the commands run against. A short lived CLI builds it
// once in main.
type App struct {
	Report     *services.ReportService
	Merge      *services.MergeService
	Milestones *services.MilestoneService

	Out io.Writer
	Err io.Writer
	// Plain prints markdown without terminal styling.
	Plain bool
}

// Register adds every command to c.
func Register(c *subcommands.Commander, app *App) {
	c.Register(&reportCmd{app: app}, "reports")
	c.Register(&limitsCmd{app: app}, "reports")

	c.Register(&duplicatesCmd{app: app}, "assets")
	c.Register(&mergeCmd{app: app}, "assets")

	c.Register(&milestonesCmd{app: app}, "milestones")
	c.Register(&milestoneAddCmd{app: app}, "milestones")
	c.Register(&milestoneDeleteCmd{app: app}, "milestones")
}

func (a *App) stdout() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) stderr() io.Writer {
	if a.Err == nil {
		return os.Stderr
	}
	return a.Err
}

func (a *App) fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(a.stderr(), "Error: %v\n", err)
	return subcommands.ExitFailure
}

func (a *App) printMarkdown(md string) subcommands.ExitStatus {
	if a.Plain {
		fmt.Fprint(a.stdout(), md)
		return subcommands.ExitSuccess
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return a.fail(err)
	}
	out, err := r.Render(md)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprint(a.stdout(), out)
	return subcommands.ExitSuccess
}

func (a *App) printJSON(v any) subcommands.ExitStatus {
	enc := json.NewEncoder(a.stdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return a.fail(err)
	}
	return subcommands.ExitSuccess
}

type reportCmd struct {
	app    *App
	period string
	json   bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display the monthly finance dashboard" }
func (*reportCmd) Usage() string {
	return `finanse-cli report [-p YYYY-MM] [-json]

  Shows net worth, the month against the previous one and the average,
  anomalies, projections, milestones and retirement limits.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "p", "", "Month to report (defaults to the current month)")
	f.BoolVar(&c.json, "json", false, "Print the dashboard as JSON")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period := c.app.Report.CurrentPeriod()
	if c.period != "" {
		p, err := core.ParsePeriod(c.period)
		if err != nil {
			fmt.Fprintf(c.app.stderr(), "Error parsing period: %v\n", err)
			return subcommands.ExitUsageError
		}
		period = p
	}
	d, err := c.app.Report.Dashboard(ctx, period)
	if err != nil {
		return c.app.fail(err)
	}
	if c.json {
		return c.app.printJSON(d)
	}
	return c.app.printMarkdown(DashboardMarkdown(d))
}

type limitsCmd struct {
	app  *App
	year int
}

func (*limitsCmd) Name() string     { return "limits" }
func (*limitsCmd) Synopsis() string { return "display retirement account contribution limits" }
func (*limitsCmd) Usage() string {
	return `finanse-cli limits [-y year]

  Shows how much of each retirement account cap has been used.
`
}

func (c *limitsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", 0, "Year (defaults to the current year)")
}

func (c *limitsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	year := c.year
	if year == 0 {
		year = c.app.Report.CurrentPeriod().Year
	}
	usage, err := c.app.Report.Limits(ctx, year)
	if err != nil {
		return c.app.fail(err)
	}
	return c.app.printMarkdown(LimitsMarkdown(year, usage, c.app.Report.BaseCurrency()))
}

type duplicatesCmd struct {
	app *App
}

func (*duplicatesCmd) Name() string     { return "duplicates" }
func (*duplicatesCmd) Synopsis() string { return "list assets that look like duplicates" }
func (*duplicatesCmd) Usage() string {
	return `finanse-cli duplicates

  Groups assets sharing a normalized name, category, currency and account.
`
}

func (*duplicatesCmd) SetFlags(*flag.FlagSet) {}

func (c *duplicatesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	groups, err := c.app.Merge.Groups(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	return c.app.printMarkdown(DuplicatesMarkdown(groups))
}

type mergeCmd struct {
	app     *App
	primary string
	name    string
	notes   string
	dryRun  bool
}

func (*mergeCmd) Name() string     { return "merge" }
func (*mergeCmd) Synopsis() string { return "merge duplicate assets into one" }
func (*mergeCmd) Usage() string {
	return `finanse-cli merge [-primary id] [-name name] [-notes notes] [-n] <id> <id> [<id>...]

  Folds the given assets into the primary one (the first id by default).
  The primary keeps the summed amount; the others are deleted.
`
}

func (c *mergeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.primary, "primary", "", "Asset id to keep")
	f.StringVar(&c.name, "name", "", "Name for the merged asset")
	f.StringVar(&c.notes, "notes", "", "Notes for the merged asset")
	f.BoolVar(&c.dryRun, "n", false, "Only print the merge plan")
}

func (c *mergeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ids := f.Args()
	if len(ids) < 2 {
		fmt.Fprintln(c.app.stderr(), "merge needs at least two asset ids")
		return subcommands.ExitUsageError
	}
	plan, err := c.app.Merge.Plan(ctx, ids, c.primary)
	if err != nil {
		return c.app.fail(err)
	}
	if c.name != "" {
		plan.ResultingName = c.name
	}
	if c.notes != "" {
		plan.ResultingNotes = c.notes
	}
	if c.dryRun {
		return c.app.printMarkdown(MergeMarkdown(services.MergeResult{Plan: plan}))
	}
	res, err := c.app.Merge.Submit(ctx, plan)
	if err != nil {
		return c.app.fail(err)
	}
	return c.app.printMarkdown(MergeMarkdown(res))
}

type milestonesCmd struct {
	app *App
}

func (*milestonesCmd) Name() string     { return "milestones" }
func (*milestonesCmd) Synopsis() string { return "list net worth milestones" }
func (*milestonesCmd) Usage() string {
	return `finanse-cli milestones

  Lists milestones with their status. Progress is part of the report.
`
}

func (*milestonesCmd) SetFlags(*flag.FlagSet) {}

func (c *milestonesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ms, err := c.app.Milestones.List(ctx)
	if err != nil {
		return c.app.fail(err)
	}
	return c.app.printMarkdown(MilestonesMarkdown(ms))
}

type milestoneAddCmd struct {
	app      *App
	target   string
	category string
}

func (*milestoneAddCmd) Name() string     { return "milestone-add" }
func (*milestoneAddCmd) Synopsis() string { return "add a net worth milestone" }
func (*milestoneAddCmd) Usage() string {
	return `finanse-cli milestone-add -target <amount> [-c category]

  Adds a milestone for a category, or for the whole net worth with -c all.
`
}

func (c *milestoneAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.target, "target", "", "Target value in the base currency")
	f.StringVar(&c.category, "c", core.ScopeAll, "Category, or all for net worth")
}

func (c *milestoneAddCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	target, err := core.ParseAmount(c.target)
	if err != nil {
		fmt.Fprintf(c.app.stderr(), "Error parsing target: %v\n", err)
		return subcommands.ExitUsageError
	}
	m, err := c.app.Milestones.Create(ctx, target, c.category)
	if err != nil {
		return c.app.fail(err)
	}
	return c.app.printMarkdown(MilestonesMarkdown([]core.Milestone{m}))
}

type milestoneDeleteCmd struct {
	app *App
}

func (*milestoneDeleteCmd) Name() string     { return "milestone-delete" }
func (*milestoneDeleteCmd) Synopsis() string { return "delete a milestone" }
func (*milestoneDeleteCmd) Usage() string {
	return `finanse-cli milestone-delete <id>
`
}

func (*milestoneDeleteCmd) SetFlags(*flag.FlagSet) {}

func (c *milestoneDeleteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(c.app.stderr(), "milestone-delete needs exactly one id")
		return subcommands.ExitUsageError
	}
	if err := c.app.Milestones.Delete(ctx, f.Arg(0)); err != nil {
		return c.app.fail(err)
	}
	fmt.Fprintln(c.app.stdout(), "deleted "+strconv.Quote(f.Arg(0)))
	return subcommands.ExitSuccess
}
