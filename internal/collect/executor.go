// Package collect is the regional fan-out engine shared by every resource
// collector.
//
// A collector describes its work as a Pipeline of passes. Each pass either
// fans out one goroutine per region (Run, Gather) or walks already collected
// resources and resolves the client for each one's region (Sequential).
// Every unit of work is isolated: a failing region is logged, recorded as a
// gap, and skipped, while its siblings carry on.
package collect

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

// Pass names one enumeration pass of one resource type. Both values end up
// on every log record and span the pass produces.
type Pass struct {
	ResourceType string
	Name         string
}

// Executor runs passes and keeps the record of what each run could not
// collect. Use one Executor per collector run.
type Executor struct {
	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
	unitTimeout time.Duration

	mu   sync.Mutex
	gaps []models.CollectionGap
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger used for fault isolation records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithConcurrency caps the number of units in flight per pass. Zero or
// negative means one unit per region, all at once.
func WithConcurrency(n int) Option {
	return func(e *Executor) { e.concurrency = n }
}

// WithUnitTimeout bounds every unit with a deadline. Zero disables it.
func WithUnitTimeout(d time.Duration) Option {
	return func(e *Executor) { e.unitTimeout = d }
}

// NewExecutor returns an Executor with the default slog logger and the
// global OpenTelemetry tracer.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger: slog.Default(),
		tracer: otel.Tracer("cloud-inventory/collect"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Gaps returns the failures recorded so far, ordered by region, resource
// type, pass and message so identical runs report identical lists.
func (e *Executor) Gaps() []models.CollectionGap {
	e.mu.Lock()
	out := slices.Clone(e.gaps)
	e.mu.Unlock()

	slices.SortStableFunc(out, func(a, b models.CollectionGap) int {
		return cmp.Or(
			cmp.Compare(a.Region, b.Region),
			cmp.Compare(a.ResourceType, b.ResourceType),
			cmp.Compare(a.Pass, b.Pass),
			cmp.Compare(a.Message, b.Message),
		)
	})
	return out
}

// Run calls work once per region of set, each in its own goroutine, and
// returns when every call has finished. A failing call is logged and
// recorded; it never cancels or fails its siblings.
//
// work must not append to state shared with other regions. Use Gather to
// collect per-region results.
func Run[A any](ctx context.Context, e *Executor, pass Pass, set *ClientSet[A], work func(ctx context.Context, region string, api A) error) {
	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for _, region := range set.Regions() {
		api, _ := set.Client(region)
		g.Go(func() error {
			e.isolate(ctx, pass, region, func(ctx context.Context) error {
				return work(ctx, region, api)
			})
			return nil
		})
	}
	_ = g.Wait()
}

// Gather fans out like Run, but each region returns its records into a
// private buffer. Buffers are merged after the barrier in region order, so
// repeated runs against the same state yield the same slice. A region whose
// work fails contributes nothing.
func Gather[A, T any](ctx context.Context, e *Executor, pass Pass, set *ClientSet[A], work func(ctx context.Context, region string, api A) ([]T, error)) []T {
	regions := set.Regions()
	slot := make(map[string]int, len(regions))
	for i, r := range regions {
		slot[r] = i
	}
	buffers := make([][]T, len(regions))

	Run(ctx, e, pass, set, func(ctx context.Context, region string, api A) error {
		out, err := work(ctx, region, api)
		if err != nil {
			return err
		}
		buffers[slot[region]] = out
		return nil
	})

	var merged []T
	for _, b := range buffers {
		merged = append(merged, b...)
	}
	return merged
}

// Sequential walks n already collected resources in order, resolves the
// client for each one's region, and calls work. Each call is isolated on
// its own, so one failing resource does not stop the walk.
func Sequential[A any](ctx context.Context, e *Executor, pass Pass, set *ClientSet[A], n int, regionOf func(i int) string, work func(ctx context.Context, api A, i int) error) {
	for i := 0; i < n; i++ {
		region := regionOf(i)
		e.isolate(ctx, pass, region, func(ctx context.Context) error {
			api, ok := set.Client(region)
			if !ok {
				return fmt.Errorf("%w %q", ErrNoClient, region)
			}
			return work(ctx, api, i)
		})
	}
}

// Report records a problem found inside a unit that otherwise succeeds: a
// malformed record that was skipped, or a parent that vanished before its
// children could be listed. The severity follows the error's kind.
func (e *Executor) Report(ctx context.Context, pass Pass, region string, err error) {
	e.report(ctx, pass, region, err)
}

func (e *Executor) isolate(ctx context.Context, pass Pass, region string, fn func(context.Context) error) bool {
	ctx, span := e.tracer.Start(ctx, "collect/"+pass.ResourceType+"/"+pass.Name, trace.WithAttributes(
		attribute.String("region", region),
		attribute.String("resource_type", pass.ResourceType),
		attribute.String("pass", pass.Name),
	))
	defer span.End()

	if e.unitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.unitTimeout)
		defer cancel()
	}

	err := protect(ctx, fn)
	if err == nil {
		return true
	}
	span.RecordError(err)
	if !IsNotFound(err) {
		span.SetStatus(codes.Error, err.Error())
	}
	e.report(ctx, pass, region, err)
	return false
}

func protect(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn(ctx)
}

func (e *Executor) report(ctx context.Context, pass Pass, region string, err error) {
	severity := models.GapError
	level := slog.LevelError
	msg := "collection unit failed"
	switch {
	case IsNotFound(err):
		severity, level, msg = models.GapWarning, slog.LevelWarn, "dependent resource not found"
	case isMissingField(err):
		msg = "skipping malformed record"
	case errors.Is(err, ErrUndecodable):
		severity, level, msg = models.GapWarning, slog.LevelWarn, "ignoring undecodable field"
	}

	e.logger.LogAttrs(ctx, level, msg,
		slog.String("region", region),
		slog.String("resource_type", pass.ResourceType),
		slog.String("pass", pass.Name),
		slog.String("error", err.Error()),
	)

	e.mu.Lock()
	e.gaps = append(e.gaps, models.CollectionGap{
		Region:       region,
		ResourceType: pass.ResourceType,
		Pass:         pass.Name,
		Severity:     severity,
		Message:      err.Error(),
	})
	e.mu.Unlock()
}
