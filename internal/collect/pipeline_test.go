package collect

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records step events from concurrent goroutines.
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	j.events = append(j.events, e)
	j.mu.Unlock()
}

func (j *journal) index(e string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, v := range j.events {
		if v == e {
			return i
		}
	}
	return -1
}

func (j *journal) step(name string, d time.Duration) Step {
	return func(context.Context) {
		j.add(name + ":start")
		time.Sleep(d)
		j.add(name + ":end")
	}
}

func TestPipeline_BarrierAfterPrimary(t *testing.T) {
	j := &journal{}
	p := &Pipeline{
		Primary:    []Step{j.step("vpcs", 30*time.Millisecond), j.step("peerings", 5*time.Millisecond)},
		Children:   []Step{j.step("listeners", 0)},
		Attributes: []Step{j.step("attributes", 0)},
		Cross:      []Step{j.step("routes", 0)},
	}

	require.NoError(t, p.Execute(context.Background()))

	lastPrimary := j.index("vpcs:end")
	for _, dep := range []string{"listeners:start", "attributes:start", "routes:start"} {
		assert.Greater(t, j.index(dep), lastPrimary, "%s began before primary enumeration finished", dep)
	}
	assert.Greater(t, j.index("listeners:start"), j.index("peerings:end"))
}

func TestPipeline_ChildrenRunInOrder(t *testing.T) {
	j := &journal{}
	p := &Pipeline{
		Children: []Step{j.step("listeners", 20*time.Millisecond), j.step("rules", 0)},
	}

	require.NoError(t, p.Execute(context.Background()))
	assert.Greater(t, j.index("rules:start"), j.index("listeners:end"))
}

func TestPipeline_MiddleGroupsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	attrsRan := make(chan struct{})

	p := &Pipeline{
		Children: []Step{func(context.Context) {
			// Blocks until the attribute group has run, which only happens
			// if both groups are in flight at once.
			select {
			case <-release:
			case <-time.After(5 * time.Second):
			}
		}},
		Attributes: []Step{func(context.Context) {
			close(attrsRan)
			close(release)
		}},
	}

	done := make(chan error, 1)
	go func() { done <- p.Execute(context.Background()) }()

	select {
	case <-attrsRan:
	case <-time.After(2 * time.Second):
		t.Fatal("attribute group did not start while children were running")
	}
	require.NoError(t, <-done)
}

func TestPipeline_CrossStepsRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	both := make(chan struct{})
	go func() { wg.Wait(); close(both) }()

	waitBoth := func(context.Context) {
		wg.Done()
		select {
		case <-both:
		case <-time.After(5 * time.Second):
			t.Error("cross steps ran one after another")
		}
	}
	p := &Pipeline{Cross: []Step{waitBoth, waitBoth}}

	require.NoError(t, p.Execute(context.Background()))
}

func TestPipeline_StagesReachComplete(t *testing.T) {
	p := &Pipeline{}
	assert.False(t, p.Reached(StageInit))

	require.NoError(t, p.Execute(context.Background()))

	for _, s := range []Stage{
		StageInit, StagePrimaryEnumerated, StageChildrenEnumerated,
		StageAttributesEnumerated, StageCrossResourceEnumerated, StageComplete,
	} {
		assert.True(t, p.Reached(s), s.String())
	}

	h := p.History()
	require.Len(t, h, 6)
	assert.Equal(t, StageInit, h[0])
	assert.Equal(t, StagePrimaryEnumerated, h[1])
	assert.ElementsMatch(t,
		[]Stage{StageChildrenEnumerated, StageAttributesEnumerated, StageCrossResourceEnumerated},
		h[2:5])
	assert.Equal(t, StageComplete, h[5])
}

func TestPipeline_ExecuteOnce(t *testing.T) {
	calls := 0
	p := &Pipeline{Primary: []Step{func(context.Context) { calls++ }}}

	require.NoError(t, p.Execute(context.Background()))
	assert.ErrorIs(t, p.Execute(context.Background()), ErrAlreadyExecuted)
	assert.Equal(t, 1, calls)
}

func TestPipeline_AdvanceRejectsSkippedStage(t *testing.T) {
	p := &Pipeline{}
	p.reached = map[Stage]bool{StageInit: true}

	assert.Error(t, p.advance(StageChildrenEnumerated))
	assert.Error(t, p.advance(StageComplete))

	require.NoError(t, p.advance(StagePrimaryEnumerated))
	require.NoError(t, p.advance(StageChildrenEnumerated))
	assert.Error(t, p.advance(StageComplete), "complete needs all three middle stages")
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "primary_enumerated", StagePrimaryEnumerated.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
