// Package elbv2 collects Application, Network and Gateway load balancers
// together with their listeners, listener rules and attributes.
package elbv2

import (
	"context"
	"sync"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/scope"
)

// Resource types reported on log records and gaps.
const (
	ResourceLoadBalancer = "elbv2_load_balancer"
	ResourceListener     = "elbv2_listener"
	ResourceRule         = "elbv2_listener_rule"
)

// API error codes meaning the parent disappeared between passes.
const (
	codeLoadBalancerNotFound = "LoadBalancerNotFound"
	codeListenerNotFound     = "ListenerNotFound"
)

var (
	passLoadBalancers = collect.Pass{ResourceType: ResourceLoadBalancer, Name: "describe_load_balancers"}
	passListeners     = collect.Pass{ResourceType: ResourceListener, Name: "describe_listeners"}
	passRules         = collect.Pass{ResourceType: ResourceRule, Name: "describe_rules"}
	passAttributes    = collect.Pass{ResourceType: ResourceLoadBalancer, Name: "describe_load_balancer_attributes"}
)

// Collector builds an ELBv2Inventory from one client per region.
type Collector struct {
	clients   *collect.ClientSet[API]
	filter    scope.Filter
	resources []string
	execOpts  []collect.Option
}

// Option configures a Collector.
type Option func(*Collector)

// WithScope restricts collection to load balancers whose ARN the filter
// selects from resources. An empty resources list keeps everything.
func WithScope(f scope.Filter, resources []string) Option {
	return func(c *Collector) {
		c.filter = f
		c.resources = resources
	}
}

// WithExecutorOptions passes options to the executor of every run.
func WithExecutorOptions(opts ...collect.Option) Option {
	return func(c *Collector) { c.execOpts = append(c.execOpts, opts...) }
}

// NewCollector returns a Collector over clients.
func NewCollector(clients *collect.ClientSet[API], opts ...Option) *Collector {
	c := &Collector{clients: clients}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect runs every pass and returns the finished model. It never fails:
// regions or resources that could not be collected are listed in Gaps.
func (c *Collector) Collect(ctx context.Context) *models.ELBv2Inventory {
	r := &run{c: c, exec: collect.NewExecutor(c.execOpts...)}
	p := &collect.Pipeline{
		Primary:    []collect.Step{r.describeLoadBalancers},
		Children:   []collect.Step{r.describeListeners, r.describeRules},
		Attributes: []collect.Step{r.describeAttributes},
	}
	// Execute only fails when a pipeline is reused; this one is fresh.
	_ = p.Execute(ctx)

	lbs := r.lbs
	if lbs == nil {
		lbs = []models.LoadBalancer{}
	}
	return &models.ELBv2Inventory{LoadBalancers: lbs, Gaps: r.exec.Gaps()}
}

// run holds the state of one Collect call. lbs is appended to only by the
// primary pass; later passes attach data to existing entries under mu.
type run struct {
	c    *Collector
	exec *collect.Executor

	mu  sync.Mutex
	lbs []models.LoadBalancer
}

// lbRef is a read-only view of an accepted load balancer handed to a
// dependent pass.
type lbRef struct {
	index int
	arn   string
}

// inRegion returns the load balancers discovered in region, in collection
// order.
func (r *run) inRegion(region string) []lbRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []lbRef
	for i := range r.lbs {
		if r.lbs[i].Region == region {
			refs = append(refs, lbRef{index: i, arn: r.lbs[i].ARN})
		}
	}
	return refs
}
