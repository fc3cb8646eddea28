package main

import (
	"fmt"
	"math"
	"math/cmplx"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/AnthonyZalev/gridtrace/internal/config"
	"github.com/AnthonyZalev/gridtrace/internal/cpf"
	"github.com/AnthonyZalev/gridtrace/internal/export"
	"github.com/AnthonyZalev/gridtrace/internal/grid"
	"github.com/AnthonyZalev/gridtrace/internal/metrics"
	"github.com/AnthonyZalev/gridtrace/internal/powerflow"
	"github.com/AnthonyZalev/gridtrace/internal/storage"
	"github.com/AnthonyZalev/gridtrace/internal/viz"
)

var (
	dataDir   string
	scheme    string
	step      float64
	stepMin   float64
	stepMax   float64
	adaptive  bool
	errorTol  float64
	tol       float64
	maxIter   int
	stopAt    string
	qControl  string
	loadScale float64
	// Config file and preset
	configFile string
	preset     string
	// Bus index for PV-curve plots
	plotBus int
	// PNG output path
	outFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gridtrace",
		Short: "continuation power flow and voltage stability tracing",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gridtrace", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose step logging")

	traceCmd := &cobra.Command{
		Use:   "trace [case]",
		Short: "trace the PV curve of a case",
		Args:  cobra.ExactArgs(1),
		RunE:  runTrace,
	}
	addTraceFlags(traceCmd)

	pfCmd := &cobra.Command{
		Use:   "pf [case]",
		Short: "solve the base-case power flow",
		Args:  cobra.ExactArgs(1),
		RunE:  runPowerFlow,
	}
	pfCmd.Flags().Float64Var(&tol, "tol", config.DefaultTol, "convergence tolerance")
	pfCmd.Flags().IntVar(&maxIter, "max-iter", config.DefaultMaxIter, "newton iteration limit")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored traces",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored trace in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotBus, "bus", -1, "bus index for the PV curve (default: weakest bus)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a stored trace to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	pngCmd := &cobra.Command{
		Use:   "png [run_id]",
		Short: "render a stored trace as a PNG plot",
		Args:  cobra.ExactArgs(1),
		RunE:  renderPNG,
	}
	pngCmd.Flags().StringVarP(&outFile, "out", "o", "pv_curve.png", "output file")

	liveCmd := &cobra.Command{
		Use:   "live [case]",
		Short: "trace with live terminal visualization",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addTraceFlags(liveCmd)

	casesCmd := &cobra.Command{
		Use:   "cases",
		Short: "list bundled cases and presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("cases:")
			for _, name := range grid.CaseNames() {
				c := grid.Cases[name]
				fmt.Printf("  %-12s %d buses, %d branches\n", name, len(c.Buses), len(c.Branches))
			}
			fmt.Println("presets:")
			for _, name := range config.ListPresets() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}

	rootCmd.AddCommand(traceCmd, pfCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, pngCmd, liveCmd, casesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addTraceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scheme, "scheme", "arc-length", "parametrization: natural, arc-length, pseudo-arc-length")
	cmd.Flags().Float64Var(&step, "step", config.DefaultStep, "initial continuation step")
	cmd.Flags().Float64Var(&stepMin, "step-min", config.DefaultStepMin, "minimum step")
	cmd.Flags().Float64Var(&stepMax, "step-max", config.DefaultStepMax, "maximum step")
	cmd.Flags().BoolVar(&adaptive, "adaptive", true, "adapt step size to corrector error")
	cmd.Flags().Float64Var(&errorTol, "error-tol", config.DefaultErrorTol, "step adaptation error tolerance")
	cmd.Flags().Float64Var(&tol, "tol", config.DefaultTol, "newton convergence tolerance")
	cmd.Flags().IntVar(&maxIter, "max-iter", config.DefaultMaxIter, "newton iteration limit")
	cmd.Flags().StringVar(&stopAt, "stop-at", "nose", "stop condition: nose, full-curve")
	cmd.Flags().StringVar(&qControl, "q-control", "none", "reactive limit enforcement: none, direct")
	cmd.Flags().Float64Var(&loadScale, "load-scale", config.DefaultLoadScale, "target load scaling factor")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// traceConfig merges preset, config file and command-line flags into one
// config. Flags that were set explicitly win over the file, the file wins
// over the preset.
func traceConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		*cfg = *p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("scheme") {
		cfg.Scheme = scheme
	}
	if cmd.Flags().Changed("step") {
		cfg.Step = step
	}
	if cmd.Flags().Changed("step-min") {
		cfg.StepMin = stepMin
	}
	if cmd.Flags().Changed("step-max") {
		cfg.StepMax = stepMax
	}
	if cmd.Flags().Changed("adaptive") {
		cfg.Adaptive = adaptive
	}
	if cmd.Flags().Changed("error-tol") {
		cfg.ErrorTol = errorTol
	}
	if cmd.Flags().Changed("tol") {
		cfg.Tol = tol
	}
	if cmd.Flags().Changed("max-iter") {
		cfg.MaxIter = maxIter
	}
	if cmd.Flags().Changed("stop-at") {
		cfg.StopAt = stopAt
	}
	if cmd.Flags().Changed("q-control") {
		cfg.QControl = qControl
	}
	if cmd.Flags().Changed("load-scale") {
		cfg.LoadScale = loadScale
	}
	return cfg, nil
}

// prepareTrace solves the base case and assembles the continuation input.
func prepareTrace(caseName string, cfg *config.Config, opts cpf.Options) (*grid.Snapshot, *cpf.Input, error) {
	c, err := grid.Resolve(caseName)
	if err != nil {
		return nil, nil, err
	}
	snap, err := grid.Compile(c)
	if err != nil {
		return nil, nil, err
	}

	pf := powerflow.SolveNR(snap.Y, snap.Sbus, snap.V0, snap.Pv, snap.Pq, opts.Tol, opts.MaxIter)
	if !pf.Converged {
		return nil, nil, fmt.Errorf("base-case power flow did not converge (normF=%g)", pf.NormF)
	}

	in := &cpf.Input{
		Y:          snap.Y,
		SbusBase:   snap.Sbus,
		SbusTarget: snap.TransferTarget(cfg.LoadScale),
		V0:         pf.V,
		Types:      snap.Types,
		Vset:       snap.Vset,
		Qmax:       snap.Qmax,
		Qmin:       snap.Qmin,
	}
	return snap, in, nil
}

func runTrace(cmd *cobra.Command, args []string) error {
	caseName := args[0]

	cfg, err := traceConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Verbose = verbose
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	snap, in, err := prepareTrace(caseName, cfg, opts)
	if err != nil {
		return err
	}

	fmt.Printf("tracing %s (%s, stop at %s)...\n", caseName, opts.Scheme, opts.StopAt)
	start := time.Now()

	drv, err := cpf.New(in, opts, nil)
	if err != nil {
		return err
	}
	res := drv.Run()
	elapsed := time.Since(start)

	sxfr := make([]complex128, len(in.SbusBase))
	for i := range sxfr {
		sxfr[i] = in.SbusTarget[i] - in.SbusBase[i]
	}
	summary := metrics.Summarize(res, sxfr, snap.Case.BaseMVA)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(caseName, busNames(snap.Case), opts, res, summary)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n\n", runID)
	fmt.Println(viz.RenderSummary(caseName, res.State.String(), res.MaxLambda, summary.MarginMVA, res.Steps))
	fmt.Println(viz.RenderLambda(metrics.LambdaSeries(res)))

	bus := weakestBus(res)
	fmt.Println(viz.RenderPV(metrics.VmSeries(res, bus), busName(snap.Case, bus)))
	return nil
}

func runPowerFlow(cmd *cobra.Command, args []string) error {
	c, err := grid.Resolve(args[0])
	if err != nil {
		return err
	}
	snap, err := grid.Compile(c)
	if err != nil {
		return err
	}

	res := powerflow.SolveNR(snap.Y, snap.Sbus, snap.V0, snap.Pv, snap.Pq, tol, maxIter)
	if !res.Converged {
		return fmt.Errorf("power flow did not converge after %d iterations (normF=%g)", res.Iterations, res.NormF)
	}

	fmt.Printf("converged in %d iterations, normF=%.3e\n\n", res.Iterations, res.NormF)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUS\tTYPE\tVM (PU)\tVA (DEG)\tP (MW)\tQ (MVAR)")
	for i, v := range res.V {
		s := res.Scalc[i]
		fmt.Fprintf(w, "%s\t%s\t%.4f\t%.3f\t%.2f\t%.2f\n",
			busName(c, i),
			snap.Types[i],
			cmplx.Abs(v),
			cmplx.Phase(v)*180/math.Pi,
			real(s)*c.BaseMVA,
			imag(s)*c.BaseMVA,
		)
	}
	return w.Flush()
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
	fmt.Fprintln(w, "ID\tCASE\tTIME\tSCHEME\tSTOP\tSTEPS\tMAX LAMBDA\tSTATE")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.4f\t%s\n",
			run.ID,
			run.Case,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Scheme,
			run.StopAt,
			run.Summary.Steps,
			run.Summary.MaxLambda,
			run.Summary.State,
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
	curve, err := st.LoadCurve(runID)
	if err != nil {
		return err
	}
	if len(curve.Lambdas) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Println(viz.RenderSummary(meta.Case, meta.Summary.State, meta.Summary.MaxLambda, meta.Summary.MarginMVA, meta.Summary.Steps))
	fmt.Println(viz.RenderLambda(curve.Lambdas))

	bus := plotBus
	if bus < 0 {
		bus = weakestCurveBus(curve)
	}
	if bus >= len(curve.Vm[0]) {
		return fmt.Errorf("bus index %d out of range (case has %d buses)", bus, len(curve.Vm[0]))
	}
	vm := make([]float64, len(curve.Vm))
	for i := range curve.Vm {
		vm[i] = curve.Vm[i][bus]
	}
	name := fmt.Sprintf("bus%d", bus)
	if bus < len(meta.BusNames) {
		name = meta.BusNames[bus]
	}
	fmt.Println(viz.RenderPV(vm, name))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	meta, curve, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return export.WriteCSV(os.Stdout, meta, curve)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, curve, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return export.WriteJSON(os.Stdout, meta, curve)
}

func renderPNG(cmd *cobra.Command, args []string) error {
	meta, curve, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if err := export.SavePNG(outFile, meta, curve); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	caseName := args[0]

	cfg, err := traceConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}

	_, in, err := prepareTrace(caseName, cfg, opts)
	if err != nil {
		return err
	}

	m := viz.NewLive(caseName, func(observer func(float64)) *cpf.Result {
		o := opts
		o.Observer = observer
		drv, err := cpf.New(in, o, nil)
		if err != nil {
			return &cpf.Result{State: cpf.StoppedDiverged}
		}
		return drv.Run()
	})

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func loadRun(runID string) (*storage.RunMetadata, *storage.Curve, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	curve, err := st.LoadCurve(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(curve.Lambdas) == 0 {
		return nil, nil, fmt.Errorf("run %s has no curve data", runID)
	}
	return meta, curve, nil
}

func busNames(c *grid.Case) []string {
	names := make([]string, len(c.Buses))
	for i := range c.Buses {
		names[i] = busName(c, i)
	}
	return names
}

func busName(c *grid.Case, i int) string {
	if i < len(c.Buses) && c.Buses[i].Name != "" {
		return c.Buses[i].Name
	}
	return fmt.Sprintf("bus%d", i)
}

// weakestBus picks the bus with the lowest voltage magnitude at the point of
// maximum loading, the natural one to show on the PV curve.
func weakestBus(res *cpf.Result) int {
	if len(res.Voltages) == 0 {
		return 0
	}
	nose := 0
	for i, lam := range res.Lambdas {
		if lam == res.MaxLambda {
			nose = i
			break
		}
	}
	v := res.Voltages[nose]
	bus, minVm := 0, 0.0
	for i, vi := range v {
		vm := cmplx.Abs(vi)
		if i == 0 || vm < minVm {
			bus, minVm = i, vm
		}
	}
	return bus
}

func weakestCurveBus(curve *storage.Curve) int {
	if len(curve.Vm) == 0 {
		return 0
	}
	last := curve.Vm[len(curve.Vm)-1]
	bus, minVm := 0, 0.0
	for i, vm := range last {
		if i == 0 || vm < minVm {
			bus, minVm = i, vm
		}
	}
	return bus
}
