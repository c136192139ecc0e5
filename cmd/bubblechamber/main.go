package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/bubblechamber/internal/config"
	"github.com/san-kum/bubblechamber/internal/experiment"
	"github.com/san-kum/bubblechamber/internal/export"
	"github.com/san-kum/bubblechamber/internal/metrics"
	"github.com/san-kum/bubblechamber/internal/optim"
	"github.com/san-kum/bubblechamber/internal/sim"
	"github.com/san-kum/bubblechamber/internal/storage"
	"github.com/san-kum/bubblechamber/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir string
	verbose bool
	noStore bool

	size           string
	rows           int
	cols           int
	magnetStddev   float64
	frictionLambda float64
	showGrid       bool
	seed           int64
	dt             float64
	epsilon        float64
	margin         float64
	speedMin       float64
	speedMax       float64
	maxSteps       int
	sampler        string
	theme          string

	configFile string
	preset     string
	outDir     string

	// live view
	frameRate     int
	stepsPerFrame int

	// batch
	numRuns int

	// plot
	showTrails bool

	// sweep
	sweepParams []string
	sweepMetric string
	maximize    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bubblechamber",
		Short:         "bubble chamber generative art",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".bubblechamber", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log progress and every generated chamber")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "run until every particle settles and write the SVG",
		Args:  cobra.NoArgs,
		RunE:  runRender,
	}
	addRunFlags(renderCmd)

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "watch a run in the terminal, then write the SVG",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addRunFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", viz.DefaultFPS, "frame rate")
	liveCmd.Flags().IntVar(&stepsPerFrame, "steps-per-frame", viz.DefaultStepsPerFrame, "simulation steps per frame")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "render several consecutive seeds concurrently",
		Args:  cobra.NoArgs,
		RunE:  runBatch,
	}
	addRunFlags(batchCmd)
	batchCmd.Flags().IntVar(&numRuns, "runs", 4, "number of runs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot active particles per step of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().BoolVar(&showTrails, "trails", false, "also draw the stored trails")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a grid of parameter values and rank them by a metric",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil,
		"name=values to sweep, values as a,b,c or start:stop:step ("+strings.Join(optim.ParamNames(), ", ")+")")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "mean_trail_length", "metric to rank by")
	sweepCmd.Flags().BoolVar(&maximize, "maximize", false, "prefer larger metric values")
	sweepCmd.MarkFlagRequired("param")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tGRID\tMAGNET\tFRICTION\tSAMPLER")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%.2f\t%.2f\t%s\n",
					name, p.Size(), p.Rows, p.Cols, p.FieldStddev, p.FrictionLambda, p.Sampler)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(renderCmd, liveCmd, batchCmd, sweepCmd, listCmd, plotCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bubblechamber: %v\n", err)
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&size, "size", def.Size(), "canvas size WxH")
	f.IntVar(&rows, "rows", def.Rows, "chamber rows")
	f.IntVar(&cols, "cols", def.Cols, "chamber columns")
	f.Float64Var(&magnetStddev, "magnet-stddev", def.FieldStddev, "standard deviation of chamber field strength")
	f.Float64Var(&frictionLambda, "friction-lambda", def.FrictionLambda, "velocity decay rate")
	f.BoolVar(&showGrid, "grid", false, "draw chamber boundaries")
	f.Int64Var(&seed, "seed", 0, "random seed (default: current time)")
	f.Float64Var(&dt, "dt", def.Sim.Dt, "timestep")
	f.Float64Var(&epsilon, "epsilon", def.Sim.SettleEpsilon, "speed below which a particle settles")
	f.Float64Var(&margin, "margin", def.Particles.Margin, "spawn inset as a fraction of the chamber")
	f.Float64Var(&speedMin, "speed-min", def.Particles.SpeedMin, "minimum initial speed")
	f.Float64Var(&speedMax, "speed-max", def.Particles.SpeedMax, "maximum initial speed")
	f.IntVar(&maxSteps, "max-steps", 0, "stop after this many steps (0: until settled)")
	f.StringVar(&sampler, "sampler", def.Sampler, "field sampler (normal, perlin)")
	f.StringVar(&theme, "theme", def.Theme, "color theme ("+strings.Join(export.PaletteNames(), ", ")+")")
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&outDir, "out", "out", "directory for SVG artifacts")
	f.BoolVar(&noStore, "no-store", false, "do not record the run in the data directory")
	cmd.MarkFlagsMutuallyExclusive("config", "preset")
}

// resolveConfig layers preset or config file, then environment, then the
// flags given on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("size") {
		w, h, err := config.ParseSize(size)
		if err != nil {
			return nil, err
		}
		cfg.Width, cfg.Height = w, h
	}
	if flags.Changed("rows") {
		cfg.Rows = rows
	}
	if flags.Changed("cols") {
		cfg.Cols = cols
	}
	if flags.Changed("magnet-stddev") {
		cfg.FieldStddev = magnetStddev
	}
	if flags.Changed("friction-lambda") {
		cfg.FrictionLambda = frictionLambda
	}
	if flags.Changed("grid") {
		cfg.ShowGrid = showGrid
	}
	if flags.Changed("dt") {
		cfg.Sim.Dt = dt
	}
	if flags.Changed("epsilon") {
		cfg.Sim.SettleEpsilon = epsilon
	}
	if flags.Changed("margin") {
		cfg.Particles.Margin = margin
	}
	if flags.Changed("speed-min") {
		cfg.Particles.SpeedMin = speedMin
	}
	if flags.Changed("speed-max") {
		cfg.Particles.SpeedMax = speedMax
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if flags.Changed("sampler") {
		cfg.Sampler = sampler
	}
	if flags.Changed("theme") {
		cfg.Theme = theme
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	} else if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "bubblechamber: ", log.LstdFlags)
}

func svgOptions(cfg *config.Config) export.SVGOptions {
	opts := export.DefaultSVGOptions()
	opts.Palette = export.GetPalette(cfg.Theme)
	opts.FieldScale = cfg.FieldStddev
	opts.Title = fmt.Sprintf("bubble chamber %dx%d seed %d", cfg.Rows, cfg.Cols, cfg.Seed)
	return opts
}

func artifactPath(ts time.Time, suffix string) string {
	return filepath.Join(outDir, fmt.Sprintf("cloudscript_%s%s.svg", ts.Format("20060102-150405"), suffix))
}

// svgArtifact is an SVG renderer bound to the file it writes.
type svgArtifact struct {
	path string
	file *os.File
	*export.SVGRenderer
}

func createArtifact(path string, cfg *config.Config) (*svgArtifact, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &svgArtifact{path: path, file: f, SVGRenderer: export.NewSVGRenderer(f, svgOptions(cfg))}, nil
}

// Finalize writes the document and closes the file.
func (a *svgArtifact) Finalize(v sim.View) error {
	if err := a.SVGRenderer.Finalize(v); err != nil {
		a.file.Close()
		return err
	}
	return a.file.Close()
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	artifact, err := createArtifact(artifactPath(time.Now(), ""), cfg)
	if err != nil {
		return err
	}
	defer artifact.file.Close()

	exp, err := experiment.New(*cfg,
		experiment.WithLogger(newLogger()),
		experiment.WithVerbose(verbose),
		experiment.WithRenderers(artifact),
		experiment.WithMetrics(metrics.Defaults()...),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := exp.Execute(ctx)
	if err != nil {
		return err
	}
	return finishRun(cfg, exp, result, artifact.path)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	artifact, err := createArtifact(artifactPath(time.Now(), ""), cfg)
	if err != nil {
		return err
	}
	defer artifact.file.Close()

	out := viz.NewTerminalRenderer(80, 30)
	exp, err := experiment.New(*cfg,
		experiment.WithLogger(newLogger()),
		experiment.WithRenderers(artifact, out),
		experiment.WithMetrics(metrics.Defaults()...),
	)
	if err != nil {
		return err
	}

	opts := viz.LiveOptions{FPS: frameRate, StepsPerFrame: stepsPerFrame, Theme: cfg.Theme}
	result, err := viz.Run(exp, out, opts, tea.WithAltScreen())
	if err != nil {
		artifact.file.Close()
		os.Remove(artifact.path)
		return err
	}
	return finishRun(cfg, exp, result, artifact.path)
}

func finishRun(cfg *config.Config, exp *experiment.Experiment, result *experiment.Result, path string) error {
	runID := ""
	if !noStore {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.RunMetadata{
			Seed:      result.Seed,
			Config:    *cfg,
			Steps:     result.Steps,
			Truncated: result.Truncated,
			Elapsed:   result.Elapsed,
			Artifact:  path,
			Metrics:   result.Metrics,
		}
		id, err := st.Save(meta, result.Activity, exp.Simulation())
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		runID = id
	}

	printSummary(result, path, runID)
	return nil
}

func printSummary(result *experiment.Result, path, runID string) {
	fmt.Printf("wrote %s\n", path)
	if runID != "" {
		fmt.Printf("run:       %s\n", runID)
	}
	fmt.Printf("seed:      %d\n", result.Seed)
	fmt.Printf("steps:     %d (%.0f steps/s)\n", result.Steps, result.StepsPerSecond())
	if result.Truncated {
		fmt.Println("truncated: step cap reached before every particle settled")
	}

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %.4f\n", name, result.Metrics[name])
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	if numRuns <= 0 {
		return fmt.Errorf("%w, got %d", experiment.ErrNoRuns, numRuns)
	}

	ts := time.Now()
	paths := make([]string, numRuns)
	artifacts := make([]*svgArtifact, numRuns)
	defer func() {
		for _, a := range artifacts {
			if a != nil {
				a.file.Close()
			}
		}
	}()

	factory := func(idx int, runSeed int64) ([]sim.Renderer, error) {
		runCfg := *cfg
		runCfg.Seed = runSeed
		paths[idx] = artifactPath(ts, fmt.Sprintf("_%d", runSeed))
		a, err := createArtifact(paths[idx], &runCfg)
		if err != nil {
			return nil, err
		}
		artifacts[idx] = a
		return []sim.Renderer{a}, nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ens := experiment.NewEnsemble(*cfg, numRuns, cfg.Seed, factory, experiment.WithLogger(newLogger()))
	results, err := ens.Run(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tSETTLED\tEXITED\tTRUNCATED\tARTIFACT")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%d\t%.0f\t%.0f\t%v\t%s\n",
			r.Seed, r.Steps, r.Metrics["settled"], r.Metrics["exited"], r.Truncated, paths[i])
	}
	return w.Flush()
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, p := range sweepParams {
		name, spec, ok := strings.Cut(p, "=")
		if !ok {
			return fmt.Errorf("invalid --param %q, want name=values", p)
		}
		values, err := optim.ParseValues(spec)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}

	goal := optim.Minimize
	if maximize {
		goal = optim.Maximize
	}
	g, err := optim.NewGridSearch(names, ranges, goal)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	newLogger().Printf("sweeping %d combinations of %s", g.Size(), strings.Join(names, ", "))
	best, trials, err := g.Search(ctx, *cfg, sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\tSTEPS\n", strings.ToUpper(strings.Join(names, "\t")), strings.ToUpper(sweepMetric))
	for _, t := range trials {
		vals := make([]string, len(names))
		for i, n := range names {
			vals[i] = fmt.Sprintf("%g", t.Params[n])
		}
		if t.Skipped != nil {
			fmt.Fprintf(w, "%s\tskipped\t%v\n", strings.Join(vals, "\t"), t.Skipped)
			continue
		}
		fmt.Fprintf(w, "%s\t%.4f\t%d\n", strings.Join(vals, "\t"), t.Value, t.Result.Steps)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.4f at", sweepMetric, best.Value)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, best.Params[n])
	}
	fmt.Println()
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSIZE\tGRID\tSEED\tSTEPS\tARTIFACT")

	for _, run := range runs {
		steps := fmt.Sprintf("%d", run.Steps)
		if run.Truncated {
			steps += "+"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%dx%d\t%d\t%s\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Config.Size(),
			run.Config.Rows, run.Config.Cols,
			run.Seed,
			steps,
			run.Artifact,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	activity, err := st.LoadActivity(runID)
	if err != nil {
		return err
	}
	if len(activity) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("seed: %d\n", meta.Seed)
	fmt.Printf("steps: %d\n\n", len(activity))

	data := make([]float64, len(activity))
	for i, a := range activity {
		data[i] = float64(a)
	}
	graph := asciigraph.Plot(data,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("active particles per step"),
	)
	fmt.Println(graph)
	fmt.Println()

	if showTrails {
		trails, err := st.LoadTrails(runID)
		if err != nil {
			return err
		}
		fmt.Println(viz.PlotTrails(60, 30, meta.Config.Width, meta.Config.Height, trails))
	}
	return nil
}
