// Package pipeline orchestrates batch compilation: one driver pool, one
// session per snippet, progress events along the way.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"riptide/internal/diag"
	"riptide/internal/driver"
	"riptide/internal/engine"
	"riptide/internal/sdk"
)

// Request configures one batch run.
type Request struct {
	// Inputs are the snippets to compile, in order.
	Inputs []Input

	// SDK overrides the library table. When nil, SDKDir is loaded, and an
	// empty SDKDir falls back to the embedded bundle.
	SDK    *sdk.Table
	SDKDir string

	// Engine and PrimaryExt configure the drivers; both empty picks the
	// default cel engine.
	Engine     engine.Engine
	PrimaryExt string

	// Options go to the engine verbatim.
	Options []string

	// Retention filters reported problems. nil keeps warnings and errors.
	Retention diag.RetentionPolicy

	// Jobs bounds the driver pool. <= 0 means GOMAXPROCS.
	Jobs int

	// Queue makes drivers wait out contention instead of failing busy.
	Queue bool

	// Cache, when set, is shared by every driver in the pool.
	Cache *driver.ResultCache

	// HTTPClient serves generic URI fetches.
	HTTPClient *http.Client

	// Progress receives events; it must tolerate concurrent calls.
	Progress ProgressSink
}

// Outcome pairs one input with what its compile produced. Err is a
// host-side failure; compile errors live inside Result.
type Outcome struct {
	Path   string
	Result *driver.CompileResult
	Err    error
}

// Failed reports whether this input produced no usable result or kept errors.
func (o Outcome) Failed() bool {
	return o.Err != nil || o.Result == nil || !o.Result.Succeeded()
}

// Result is the whole batch, outcomes in input order.
type Result struct {
	Outcomes []Outcome
	Timings  Timings
}

// FailedCount counts outcomes that did not succeed.
func (r Result) FailedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Run compiles every input through a pool of drivers. Per-input host
// failures are recorded in the outcome and do not stop the batch; only a
// cancelled context or a setup failure aborts the run.
func Run(ctx context.Context, req *Request) (Result, error) {
	var result Result
	if req == nil {
		return result, fmt.Errorf("missing pipeline request")
	}
	if len(req.Inputs) == 0 {
		return result, fmt.Errorf("nothing to compile")
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	table, err := prepareSDK(req, &result)
	if err != nil {
		return result, err
	}

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	jobs = min(jobs, len(req.Inputs))

	paths := make([]string, len(req.Inputs))
	for i, in := range req.Inputs {
		paths[i] = in.Path
	}
	emitQueued(req.Progress, paths)

	// Результаты (индексы уникальны для каждой горутины, мьютекс не нужен)
	result.Outcomes = make([]Outcome, len(req.Inputs))
	compileStart := time.Now()

	indexes := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(indexes)
		for i := range req.Inputs {
			select {
			case indexes <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for range jobs {
		g.Go(func() error {
			// Драйвер дорогой, поэтому один на воркер, не на задачу.
			d, err := driver.New(driver.Config{
				SDK:           table,
				Engine:        req.Engine,
				Options:       req.Options,
				PrimaryExt:    req.PrimaryExt,
				Retention:     req.Retention,
				QueueCompiles: req.Queue,
				HTTPClient:    req.HTTPClient,
				Cache:         req.Cache,
			})
			if err != nil {
				return err
			}
			for i := range indexes {
				in := req.Inputs[i]
				emit(req.Progress, Event{File: in.Path, Stage: StageCompile, Status: StatusWorking})

				start := time.Now()
				res, err := d.NewSession().Compile(gctx, in.Text)
				elapsed := time.Since(start)

				result.Outcomes[i] = Outcome{Path: in.Path, Result: res, Err: err}
				switch {
				case err != nil:
					emit(req.Progress, Event{File: in.Path, Stage: StageCompile, Status: StatusError, Err: err, Elapsed: elapsed})
					if gctx.Err() != nil {
						return gctx.Err()
					}
				default:
					emit(req.Progress, Event{
						File:    in.Path,
						Stage:   StageCompile,
						Status:  StatusDone,
						Failed:  !res.Succeeded(),
						Elapsed: elapsed,
					})
				}
			}
			return nil
		})
	}

	err = g.Wait()
	result.Timings.Set(StageCompile, time.Since(compileStart))
	return result, err
}

func prepareSDK(req *Request, result *Result) (*sdk.Table, error) {
	start := time.Now()
	emit(req.Progress, Event{Stage: StageSDK, Status: StatusWorking})

	table := req.SDK
	if table == nil {
		var err error
		if req.SDKDir != "" {
			table, err = sdk.LoadDir(req.SDKDir)
		} else {
			table, err = sdk.Default()
		}
		if err != nil {
			emit(req.Progress, Event{Stage: StageSDK, Status: StatusError, Err: err})
			return nil, fmt.Errorf("failed to load sdk: %w", err)
		}
	}

	elapsed := time.Since(start)
	result.Timings.Set(StageSDK, elapsed)
	emit(req.Progress, Event{Stage: StageSDK, Status: StatusDone, Elapsed: elapsed})
	return table, nil
}
