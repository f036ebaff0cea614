package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"golang.org/x/sync/errgroup"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/collect"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/config"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/providers/aws/elbv2"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/providers/aws/vpc"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/scope"
)

// ErrNoRegions is returned when none of the requested regions is enabled.
var ErrNoRegions = errors.New("no enabled regions to inventory")

// DefaultEngine is the production implementation of Engine.
// It never calls the AWS SDK directly; sessions come from the loader and
// service clients from the per-service factories.
type DefaultEngine struct {
	loader common.SessionLoader
	filter scope.Filter
	logger *slog.Logger
	now    func() time.Time

	newELBv2 func(aws.Config) elbv2.API
	newVPC   func(aws.Config) vpc.API
}

// EngineOption configures a DefaultEngine.
type EngineOption func(*DefaultEngine)

// WithLogger sets the logger for the engine and every collector executor.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *DefaultEngine) { e.logger = l }
}

// WithFilter replaces the ARN matcher used for the resource allow-list.
func WithFilter(f scope.Filter) EngineOption {
	return func(e *DefaultEngine) { e.filter = f }
}

// WithClientFactories overrides how regional service clients are built.
// Tests use it to inject fakes.
func WithClientFactories(newELBv2 func(aws.Config) elbv2.API, newVPC func(aws.Config) vpc.API) EngineOption {
	return func(e *DefaultEngine) {
		e.newELBv2 = newELBv2
		e.newVPC = newVPC
	}
}

// WithClock overrides the CollectedAt timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *DefaultEngine) { e.now = now }
}

// NewDefaultEngine constructs a DefaultEngine wired to loader.
func NewDefaultEngine(loader common.SessionLoader, opts ...EngineOption) *DefaultEngine {
	e := &DefaultEngine{
		loader:   loader,
		filter:   scope.ARNMatcher{},
		logger:   slog.Default(),
		now:      time.Now,
		newELBv2: elbv2.NewAPI,
		newVPC:   vpc.NewAPI,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Collect implements Engine. Selected collectors run concurrently; each one
// fans out across the resolved regions on its own.
func (e *DefaultEngine) Collect(ctx context.Context, opts Options) (*models.Inventory, error) {
	services, err := resolveServices(opts.Services)
	if err != nil {
		return nil, err
	}

	session, err := e.loader.Load(ctx, opts.Profile)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", opts.Profile, err)
	}

	regions, err := e.resolveRegions(ctx, session, opts.Regions)
	if err != nil {
		return nil, fmt.Errorf("resolve regions for profile %q: %w", session.Profile, err)
	}

	e.logger.Info("collecting inventory",
		slog.String("profile", session.Profile),
		slog.String("account_id", session.AccountID),
		slog.Int("regions", len(regions)),
		slog.String("services", strings.Join(services, ",")),
	)

	inv := &models.Inventory{
		AccountID:   session.AccountID,
		Profile:     session.Profile,
		Regions:     regions,
		CollectedAt: e.now().UTC(),
	}

	execOpts := []collect.Option{
		collect.WithLogger(e.logger),
		collect.WithConcurrency(opts.Concurrency),
		collect.WithUnitTimeout(opts.UnitTimeout),
	}

	// Collectors never fail; the group only provides the join.
	var g errgroup.Group
	for _, svc := range services {
		switch svc {
		case config.ServiceELBv2:
			clients := collect.BuildClientSet(regions, func(region string) elbv2.API {
				return e.newELBv2(e.loader.ConfigForRegion(session, region))
			})
			c := elbv2.NewCollector(clients,
				elbv2.WithScope(e.filter, opts.Resources),
				elbv2.WithExecutorOptions(execOpts...),
			)
			g.Go(func() error {
				inv.ELBv2 = c.Collect(ctx)
				return nil
			})
		case config.ServiceVPC:
			clients := collect.BuildClientSet(regions, func(region string) vpc.API {
				return e.newVPC(e.loader.ConfigForRegion(session, region))
			})
			c := vpc.NewCollector(clients,
				vpc.WithScope(e.filter, opts.Resources),
				vpc.WithExecutorOptions(execOpts...),
			)
			g.Go(func() error {
				inv.VPC = c.Collect(ctx)
				return nil
			})
		}
	}
	_ = g.Wait()

	if gaps := inv.Gaps(); len(gaps) > 0 {
		e.logger.Warn("inventory is partial", slog.Int("gaps", len(gaps)))
	}
	return inv, ctx.Err()
}

// resolveRegions narrows the enabled regions to the requested ones.
// Requested regions that are not enabled are logged and skipped.
func (e *DefaultEngine) resolveRegions(ctx context.Context, s *common.Session, requested []string) ([]string, error) {
	active, err := e.loader.ActiveRegions(ctx, s)
	if err != nil {
		return nil, err
	}
	selected, unknown := common.SelectRegions(requested, active)
	for _, r := range unknown {
		e.logger.Warn("skipping region that is not enabled", slog.String("region", r))
	}
	if len(selected) == 0 {
		return nil, ErrNoRegions
	}
	return selected, nil
}

func resolveServices(requested []string) ([]string, error) {
	if len(requested) == 0 {
		return slices.Clone(config.Services), nil
	}
	var out []string
	for _, s := range requested {
		if !slices.Contains(config.Services, s) {
			return nil, fmt.Errorf("unknown service %q (known: %s)", s, strings.Join(config.Services, ", "))
		}
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out, nil
}
