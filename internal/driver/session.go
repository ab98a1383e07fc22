package driver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"riptide/internal/artifact"
	"riptide/internal/diag"
	"riptide/internal/engine"
	"riptide/internal/resolve"
)

// Session binds one source text to one engine run. A session is spent after
// its first Compile call, successful or not.
type Session struct {
	driver   *Driver
	doc      *resolve.Document
	resolver *resolve.Resolver
	used     atomic.Bool
}

// Compile runs the engine over sourceText and returns what it produced.
//
// Compile errors are not errors here: a result with problems and no output
// is a successful call. The error return covers host-side failures only:
// a spent session, a busy driver, a cancelled context, or the engine
// failing to run at all.
func (s *Session) Compile(ctx context.Context, sourceText string) (*CompileResult, error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, ErrSessionUsed
	}
	d := s.driver

	if d.cfg.QueueCompiles {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	} else if !d.sem.TryAcquire(1) {
		return nil, ErrDriverBusy
	}

	key := d.cacheKey(sourceText)
	if d.cfg.Cache != nil {
		if res, ok, err := d.cfg.Cache.Get(key); err == nil && ok {
			d.sem.Release(1)
			return res, nil
		}
	}

	s.doc.Bind(sourceText)
	sink := diag.NewSink(d.cfg.Retention)
	collector := artifact.NewCollector(d.cfg.PrimaryExt)
	inv := engine.Invocation{
		EntryURI:   EntryURI,
		SDKRootURI: SDKRootURI,
		Resolve:    s.resolver.Resolve,
		Report:     sink.Record,
		Open:       collector.Open,
		Options:    d.cfg.Options,
	}

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer d.sem.Release(1)
		done <- d.engine.Run(ctx, inv)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("compile engine: %w", err)
		}
	case <-ctx.Done():
		// Движок может ещё дорабатывать; семафор держится до его выхода,
		// так что второй прогон не стартует поверх первого.
		return nil, ctx.Err()
	}

	res := &CompileResult{
		Problems:        sink.Problems(),
		CompileDuration: time.Since(start),
	}
	if out, ok := collector.Primary(); ok {
		res.Output = out
		res.HasOutput = true
	}
	if d.cfg.Cache != nil {
		// Кеш — ускорение, не корректность: ошибку записи глотаем.
		_ = d.cfg.Cache.Put(key, res)
	}
	return res, nil
}
