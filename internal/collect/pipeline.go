package collect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Stage is a point in a collector run.
//
//	Init → PrimaryEnumerated → {ChildrenEnumerated, AttributesEnumerated,
//	CrossResourceEnumerated} → Complete
//
// The three middle stages are reached independently of each other, each
// only after PrimaryEnumerated. Complete needs all three. There is no way
// back: a pass that failed for some regions still counts as finished.
type Stage int

const (
	StageInit Stage = iota
	StagePrimaryEnumerated
	StageChildrenEnumerated
	StageAttributesEnumerated
	StageCrossResourceEnumerated
	StageComplete
)

var stageNames = map[Stage]string{
	StageInit:                    "init",
	StagePrimaryEnumerated:       "primary_enumerated",
	StageChildrenEnumerated:      "children_enumerated",
	StageAttributesEnumerated:    "attributes_enumerated",
	StageCrossResourceEnumerated: "cross_resource_enumerated",
	StageComplete:                "complete",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// requires lists the stages that must have been reached before s.
var requires = map[Stage][]Stage{
	StagePrimaryEnumerated:       {StageInit},
	StageChildrenEnumerated:      {StagePrimaryEnumerated},
	StageAttributesEnumerated:    {StagePrimaryEnumerated},
	StageCrossResourceEnumerated: {StagePrimaryEnumerated},
	StageComplete: {
		StageChildrenEnumerated,
		StageAttributesEnumerated,
		StageCrossResourceEnumerated,
	},
}

// ErrAlreadyExecuted is returned when a Pipeline is executed a second time.
var ErrAlreadyExecuted = errors.New("pipeline already executed")

// Step is one pass of a pipeline. Steps never return errors: failures are
// isolated inside the pass by the Executor.
type Step func(ctx context.Context)

// Pipeline orders the passes of one collector run.
//
// Primary steps enumerate disjoint top-level resource types and run
// concurrently. Once all of them have returned, three groups start
// together: Children steps run one after another (grandchildren need
// children), Attributes steps run one after another, and Cross steps run
// concurrently with each other. An empty group is finished immediately.
type Pipeline struct {
	Primary    []Step
	Children   []Step
	Attributes []Step
	Cross      []Step

	mu      sync.Mutex
	reached map[Stage]bool
	history []Stage
}

// Execute runs the pipeline to Complete. It can be called once.
func (p *Pipeline) Execute(ctx context.Context) error {
	p.mu.Lock()
	if p.reached != nil {
		p.mu.Unlock()
		return ErrAlreadyExecuted
	}
	p.reached = map[Stage]bool{StageInit: true}
	p.history = []Stage{StageInit}
	p.mu.Unlock()

	runConcurrently(ctx, p.Primary)
	if err := p.advance(StagePrimaryEnumerated); err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error {
		runInOrder(ctx, p.Children)
		return p.advance(StageChildrenEnumerated)
	})
	g.Go(func() error {
		runInOrder(ctx, p.Attributes)
		return p.advance(StageAttributesEnumerated)
	})
	g.Go(func() error {
		runConcurrently(ctx, p.Cross)
		return p.advance(StageCrossResourceEnumerated)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return p.advance(StageComplete)
}

// Reached reports whether the pipeline has passed through s.
func (p *Pipeline) Reached(s Stage) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reached[s]
}

// History returns the stages in the order they were reached.
func (p *Pipeline) History() []Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Stage, len(p.history))
	copy(out, p.history)
	return out
}

func (p *Pipeline) advance(to Stage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, need := range requires[to] {
		if !p.reached[need] {
			return fmt.Errorf("cannot enter %s before %s", to, need)
		}
	}
	p.reached[to] = true
	p.history = append(p.history, to)
	return nil
}

func runInOrder(ctx context.Context, steps []Step) {
	for _, s := range steps {
		s(ctx)
	}
}

func runConcurrently(ctx context.Context, steps []Step) {
	var wg sync.WaitGroup
	for _, s := range steps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s(ctx)
		}()
	}
	wg.Wait()
}
