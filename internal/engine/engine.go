package engine

import (
	"context"
	"errors"
	"time"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
)

// Options configures a single inventory run.
// It is the sole input to Engine.Collect.
type Options struct {
	// Profile is the named AWS profile to use. Empty means the default chain.
	Profile string

	// Regions is an explicit list of AWS regions to inventory.
	// When empty the engine discovers and iterates all enabled regions.
	Regions []string

	// Services selects collectors ("elbv2", "vpc"). Empty runs all of them.
	Services []string

	// Resources is the identifier allow-list passed to every collector.
	// Empty keeps every discovered resource.
	Resources []string

	// Concurrency caps regional units in flight per pass. Zero means one
	// unit per region.
	Concurrency int

	// UnitTimeout bounds every regional unit. Zero disables it.
	UnitTimeout time.Duration
}

// Engine is the central orchestration interface. It resolves the session
// and regions, builds regional clients, runs the selected collectors and
// returns the assembled Inventory.
//
// A run fails only when no collection can start at all (credentials,
// region discovery, bad options). Regional failures end up as gaps on the
// returned model.
type Engine interface {
	Collect(ctx context.Context, opts Options) (*models.Inventory, error)
}

// Consumer receives a finished Inventory. It must treat the model as
// read-only.
type Consumer interface {
	Consume(ctx context.Context, inv *models.Inventory) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, inv *models.Inventory) error

func (f ConsumerFunc) Consume(ctx context.Context, inv *models.Inventory) error {
	return f(ctx, inv)
}

// Run collects with e and hands the result to c. A partial inventory that
// comes back with an error, e.g. after cancellation, is still consumed; the
// collect and consume errors are joined.
func Run(ctx context.Context, e Engine, opts Options, c Consumer) (*models.Inventory, error) {
	inv, err := e.Collect(ctx, opts)
	if inv == nil {
		return nil, err
	}
	if cerr := c.Consume(ctx, inv); cerr != nil {
		return inv, errors.Join(err, cerr)
	}
	return inv, err
}
