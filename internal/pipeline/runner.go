// Package pipeline orchestrates one watermark-bounded batch run: select trip
// files, normalize rows, deduplicate, enrich against the rider dimension and
// persist the fact partition plus both aggregate views.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
	"github.com/citymotion/tripfacts/pkg/metrics"
	"github.com/citymotion/tripfacts/pkg/storage"

	"github.com/citymotion/tripfacts/internal/aggregate"
	"github.com/citymotion/tripfacts/internal/riders"
	"github.com/citymotion/tripfacts/internal/trips"
)

// Terminal run statuses.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusFailed = "failed"
)

// Pipeline states, logged on every transition.
const (
	stateInit       = "INIT"
	stateProcessing = "PROCESSING"
	stateDone       = "DONE"
	stateEmpty      = "EMPTY"
)

const (
	factsFileName        = "trips_latest.csv"
	dailyFileName        = "daily.csv"
	dailyCountryFileName = "daily_by_country.csv"
)

var validate = validator.New()

// Params are the invocation inputs as the CLI receives them.
type Params struct {
	InputDir      string `validate:"required"`
	DimensionPath string `validate:"required"`
	OutputDir     string `validate:"required"`
	Watermark     string `validate:"required,datetime=2006-01-02"`
}

// Validate checks the invocation surface before any I/O happens.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pipeline params")
	}
	return nil
}

// Result is the caller-facing outcome of a run.
type Result struct {
	Status    string `json:"status"`
	FactsPath string `json:"facts,omitempty"`
	AggsPath  string `json:"aggs,omitempty"`

	Stats Stats `json:"-"`
}

// Stats carries per-run observability counters.
type Stats struct {
	RunID         uuid.UUID
	Files         []string
	RowsRead      int
	RowsDropped   int
	DropsByReason map[trips.DropReason]int
	RowsOutput    int
	Duration      time.Duration
}

// RunRecord is the audit row handed to the recorder and the completion
// notifier after a run reaches a terminal state.
type RunRecord struct {
	ID          uuid.UUID
	Watermark   string
	Status      string
	Files       []string
	RowsRead    int
	RowsDropped int
	RowsOutput  int
	DurationMS  int64
	FactsPath   string
	AggsPath    string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Recorder persists run history.
type Recorder interface {
	Record(ctx context.Context, rec RunRecord) error
}

// Exporter ships the aggregate views to the warehouse after file outputs land.
type Exporter interface {
	Export(ctx context.Context, watermark string, daily []aggregate.Daily, country []aggregate.DailyCountry) error
}

// Notifier announces a completed run to downstream consumers.
type Notifier interface {
	Publish(ctx context.Context, rec RunRecord) error
}

// Deps wires a Runner. Recorder, Exporter, Notifier and Metrics are optional;
// the pipeline runs without them.
type Deps struct {
	Logger        *logger.Logger
	Input         storage.Store
	Dimension     storage.Store
	DimensionName string
	Output        storage.Store

	// OutputRoot is the display form of the output location used in the
	// result record (a directory for local runs, an s3 URL for object runs).
	OutputRoot string

	Metrics  *metrics.PipelineMetrics
	Recorder Recorder
	Exporter Exporter
	Notifier Notifier

	Now func() time.Time
}

// Runner executes batch runs. One Runner can serve many sequential runs.
type Runner struct {
	logg          *logger.Logger
	input         storage.Store
	dimension     storage.Store
	dimensionName string
	output        storage.Store
	outputRoot    string
	metrics       *metrics.PipelineMetrics
	recorder      Recorder
	exporter      Exporter
	notifier      Notifier
	now           func() time.Time
}

// NewRunner validates the wiring and builds a Runner.
func NewRunner(deps Deps) (*Runner, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.Input == nil {
		return nil, fmt.Errorf("input store required")
	}
	if deps.Dimension == nil {
		return nil, fmt.Errorf("dimension store required")
	}
	if deps.DimensionName == "" {
		return nil, fmt.Errorf("dimension file name required")
	}
	if deps.Output == nil {
		return nil, fmt.Errorf("output store required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		logg:          deps.Logger,
		input:         deps.Input,
		dimension:     deps.Dimension,
		dimensionName: deps.DimensionName,
		output:        deps.Output,
		outputRoot:    deps.OutputRoot,
		metrics:       deps.Metrics,
		recorder:      deps.Recorder,
		exporter:      deps.Exporter,
		notifier:      deps.Notifier,
		now:           now,
	}, nil
}

// Run executes one batch for the given watermark date. All computation and
// encoding happen in memory before the first output write, so a failed run
// leaves no partial output behind.
func (r *Runner) Run(ctx context.Context, watermark string) (*Result, error) {
	start := r.now()
	runID := uuid.New()

	ctx = r.logg.WithRunID(ctx, runID.String())
	ctx = r.logg.WithWatermark(ctx, watermark)
	r.transition(ctx, stateInit)

	if err := validate.Var(watermark, "required,datetime=2006-01-02"); err != nil {
		err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid watermark date")
		return nil, r.fail(ctx, runID, watermark, start, nil, Stats{}, err)
	}

	r.transition(ctx, stateProcessing)

	dims, err := r.loadDimension(ctx)
	if err != nil {
		return nil, r.fail(ctx, runID, watermark, start, nil, Stats{}, err)
	}

	selected, err := r.selectSources(ctx, watermark)
	if err != nil {
		return nil, r.fail(ctx, runID, watermark, start, nil, Stats{}, err)
	}
	if len(selected) == 0 {
		return r.finishEmpty(ctx, runID, watermark, start), nil
	}

	events, drops, err := r.normalize(ctx, selected)
	if err != nil {
		return nil, r.fail(ctx, runID, watermark, start, selected, Stats{}, err)
	}

	stats := Stats{
		RunID:         runID,
		Files:         selected,
		RowsRead:      len(events) + len(drops),
		RowsDropped:   len(drops),
		DropsByReason: dropsByReason(drops),
	}
	r.metrics.AddRows("read", stats.RowsRead)
	r.metrics.AddRows("dropped", stats.RowsDropped)

	latest := trips.DedupeLatest(events)
	enriched := trips.Enrich(latest, dims)
	stats.RowsOutput = len(enriched)
	r.metrics.AddRows("fact", stats.RowsOutput)

	daily, dailyCountry := r.aggregate(ctx, enriched)

	factsData, dailyData, countryData, err := encodeOutputs(enriched, daily, dailyCountry)
	if err != nil {
		return nil, r.fail(ctx, runID, watermark, start, selected, stats, err)
	}

	factsDir := path.Join("facts", "date="+watermark)
	if err := r.writeOutputs(ctx, factsDir, factsData, dailyData, countryData); err != nil {
		return nil, r.fail(ctx, runID, watermark, start, selected, stats, err)
	}

	if r.exporter != nil {
		exportCtx := r.logg.WithStage(ctx, "export")
		if err := r.exporter.Export(exportCtx, watermark, daily, dailyCountry); err != nil {
			return nil, r.fail(ctx, runID, watermark, start, selected, stats, err)
		}
	}

	stats.Duration = r.now().Sub(start)
	result := &Result{
		Status:    StatusOK,
		FactsPath: path.Join(r.outputRoot, factsDir),
		AggsPath:  r.outputRoot,
		Stats:     stats,
	}
	if result.AggsPath == "" {
		result.AggsPath = "."
	}

	rec := r.record(ctx, runID, watermark, start, result, "")
	if r.notifier != nil {
		notifyCtx := r.logg.WithStage(ctx, "notify")
		if err := r.notifier.Publish(notifyCtx, rec); err != nil {
			return nil, r.fail(ctx, runID, watermark, start, selected, stats, err)
		}
	}

	r.metrics.ObserveRun(StatusOK, stats.Duration)
	r.transition(ctx, stateDone)
	doneCtx := r.logg.WithFields(ctx, map[string]any{
		"files":        len(selected),
		"rows_read":    stats.RowsRead,
		"rows_dropped": stats.RowsDropped,
		"rows_output":  stats.RowsOutput,
		"duration_ms":  stats.Duration.Milliseconds(),
	})
	r.logg.Info(doneCtx, "pipeline run complete")
	return result, nil
}

func (r *Runner) loadDimension(ctx context.Context) ([]riders.Rider, error) {
	stageCtx := r.logg.WithStage(ctx, "dimension")
	data, err := r.dimension.Read(stageCtx, r.dimensionName)
	if err != nil {
		return nil, err
	}
	dims, err := riders.Parse(data)
	if err != nil {
		return nil, err
	}
	r.logg.Info(r.logg.WithField(stageCtx, "riders", len(dims)), "dimension loaded")
	return dims, nil
}

func (r *Runner) selectSources(ctx context.Context, watermark string) ([]string, error) {
	stageCtx := r.logg.WithStage(ctx, "select")
	names, err := r.input.List(stageCtx, ".")
	if err != nil {
		return nil, err
	}
	selected := SelectSources(names, watermark)
	r.metrics.AddFilesSelected(len(selected))
	r.logg.Info(r.logg.WithField(stageCtx, "files", len(selected)), "source files selected")
	return selected, nil
}

// normalize reads and parses the selected files concurrently; results land in
// indexed slots so the concatenation order stays the sorted file order.
func (r *Runner) normalize(ctx context.Context, selected []string) ([]trips.Event, []trips.Drop, error) {
	stageCtx := r.logg.WithStage(ctx, "normalize")

	type fileResult struct {
		events []trips.Event
		drops  []trips.Drop
		err    error
	}
	results := make([]fileResult, len(selected))

	var wg sync.WaitGroup
	for i, name := range selected {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			data, err := r.input.Read(stageCtx, name)
			if err != nil {
				results[i] = fileResult{err: err}
				return
			}
			events, drops, err := trips.ParseFile(name, data)
			results[i] = fileResult{events: events, drops: drops, err: err}
		}(i, name)
	}
	wg.Wait()

	var (
		events []trips.Event
		drops  []trips.Drop
		errs   error
	)
	for _, res := range results {
		if res.err != nil {
			errs = multierr.Append(errs, res.err)
			continue
		}
		events = append(events, res.events...)
		drops = append(drops, res.drops...)
	}
	if errs != nil {
		return nil, nil, errs
	}

	if len(drops) > 0 {
		dropCtx := r.logg.WithFields(stageCtx, map[string]any{
			"dropped": len(drops),
			"reasons": dropsByReason(drops),
		})
		r.logg.Warn(dropCtx, "rows dropped during normalization")
	}
	return events, drops, nil
}

// aggregate runs the two grouping passes concurrently; they share nothing but
// the immutable input slice.
func (r *Runner) aggregate(ctx context.Context, enriched []trips.Enriched) ([]aggregate.Daily, []aggregate.DailyCountry) {
	var (
		daily        []aggregate.Daily
		dailyCountry []aggregate.DailyCountry
		wg           sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		daily = aggregate.BuildDaily(enriched)
	}()
	go func() {
		defer wg.Done()
		dailyCountry = aggregate.BuildDailyCountry(enriched)
	}()
	wg.Wait()

	stageCtx := r.logg.WithFields(r.logg.WithStage(ctx, "aggregate"), map[string]any{
		"daily_rows":   len(daily),
		"country_rows": len(dailyCountry),
	})
	r.logg.Info(stageCtx, "aggregates computed")
	return daily, dailyCountry
}

func encodeOutputs(enriched []trips.Enriched, daily []aggregate.Daily, dailyCountry []aggregate.DailyCountry) (facts, dailyData, countryData []byte, err error) {
	if facts, err = encodeFacts(enriched); err != nil {
		return nil, nil, nil, err
	}
	if dailyData, err = encodeDaily(daily); err != nil {
		return nil, nil, nil, err
	}
	if countryData, err = encodeDailyCountry(dailyCountry); err != nil {
		return nil, nil, nil, err
	}
	return facts, dailyData, countryData, nil
}

func (r *Runner) writeOutputs(ctx context.Context, factsDir string, facts, daily, country []byte) error {
	stageCtx := r.logg.WithStage(ctx, "write")
	if err := r.output.Write(stageCtx, path.Join(factsDir, factsFileName), facts); err != nil {
		return err
	}
	if err := r.output.Write(stageCtx, dailyFileName, daily); err != nil {
		return err
	}
	if err := r.output.Write(stageCtx, dailyCountryFileName, country); err != nil {
		return err
	}
	r.logg.Info(stageCtx, "outputs written")
	return nil
}

func (r *Runner) finishEmpty(ctx context.Context, runID uuid.UUID, watermark string, start time.Time) *Result {
	r.transition(ctx, stateEmpty)
	r.logg.Info(ctx, "no qualifying trip files; nothing written")

	result := &Result{
		Status: StatusNoData,
		Stats:  Stats{RunID: runID, Duration: r.now().Sub(start)},
	}
	r.record(ctx, runID, watermark, start, result, "")
	r.metrics.ObserveRun(StatusNoData, result.Stats.Duration)
	return result
}

func (r *Runner) fail(ctx context.Context, runID uuid.UUID, watermark string, start time.Time, files []string, stats Stats, err error) error {
	r.logg.Error(ctx, "pipeline run failed", err)
	stats.RunID = runID
	stats.Files = files
	stats.Duration = r.now().Sub(start)

	result := &Result{Status: StatusFailed, Stats: stats}
	r.record(ctx, runID, watermark, start, result, err.Error())
	r.metrics.ObserveRun(StatusFailed, stats.Duration)
	return err
}

// record hands the terminal run state to the recorder. Recorder failures are
// logged, not propagated; the run outcome is already decided at this point.
func (r *Runner) record(ctx context.Context, runID uuid.UUID, watermark string, start time.Time, result *Result, runErr string) RunRecord {
	rec := RunRecord{
		ID:          runID,
		Watermark:   watermark,
		Status:      result.Status,
		Files:       result.Stats.Files,
		RowsRead:    result.Stats.RowsRead,
		RowsDropped: result.Stats.RowsDropped,
		RowsOutput:  result.Stats.RowsOutput,
		DurationMS:  result.Stats.Duration.Milliseconds(),
		FactsPath:   result.FactsPath,
		AggsPath:    result.AggsPath,
		Error:       runErr,
		StartedAt:   start.UTC(),
		FinishedAt:  r.now().UTC(),
	}
	if r.recorder == nil {
		return rec
	}
	if err := r.recorder.Record(ctx, rec); err != nil {
		r.logg.Error(ctx, "failed to record run history", err)
	}
	return rec
}

func (r *Runner) transition(ctx context.Context, state string) {
	r.logg.Info(r.logg.WithField(ctx, "state", state), "pipeline state change")
}

func dropsByReason(drops []trips.Drop) map[trips.DropReason]int {
	if len(drops) == 0 {
		return nil
	}
	byReason := make(map[trips.DropReason]int, 3)
	for _, drop := range drops {
		byReason[drop.Reason]++
	}
	return byReason
}
