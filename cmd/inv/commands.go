package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/config"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/engine"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/logging"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/models"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/output"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/telemetry"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/version"
)

// app carries the state shared by every command. Tests replace newLoader
// and engineOpts to run commands without AWS.
type app struct {
	cfgPath   string
	logLevel  string
	logFormat string

	newLoader  func(cfg *config.Config, logger *slog.Logger) common.SessionLoader
	engineOpts []engine.EngineOption
}

func defaultLoader(cfg *config.Config, logger *slog.Logger) common.SessionLoader {
	opts := []common.LoaderOption{common.WithAPICallLogging(logger)}
	if cfg.AWS.EndpointURL != "" {
		opts = append(opts, common.WithEndpointURL(cfg.AWS.EndpointURL))
	}
	return common.NewDefaultSessionLoader(opts...)
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&app{newLoader: defaultLoader})
}

func newRootCmdWith(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "inv",
		Short:         "cloud-inventory: collect a typed inventory of AWS resources across regions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (default: ~/.config/cloud-inventory/config.yaml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides log.level)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json (overrides log.format)")

	root.AddCommand(newAWSCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newDoctorCmd(a))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads the config file and environment, then applies the
// persistent logging flags.
func (a *app) loadConfig() (*config.Config, config.Loader, error) {
	loader, err := config.NewFileLoader(a.cfgPath)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, loader, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	return cfg, loader, cfg.Validate()
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Writer: w,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

func newAWSCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aws",
		Short: "AWS provider commands",
	}
	cmd.AddCommand(newCollectCmd(a))
	return cmd
}

func newCollectCmd(a *app) *cobra.Command {
	var (
		profile     string
		regions     []string
		services    []string
		resources   []string
		match       string
		format      string
		outputPath  string
		summary     bool
		concurrency int
		unitTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect load balancers and VPC resources from every region",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := a.loadConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("profile") {
				cfg.AWS.Profile = profile
			}
			if flags.Changed("region") {
				cfg.AWS.Regions = regions
			}
			if flags.Changed("service") {
				cfg.Scan.Services = services
			}
			if flags.Changed("resource") {
				cfg.Scan.Resources = resources
			}
			if flags.Changed("match") {
				cfg.Scan.Match = match
			}
			if flags.Changed("concurrency") {
				cfg.Scan.Concurrency = concurrency
			}
			if flags.Changed("unit-timeout") {
				cfg.Scan.UnitTimeout = unitTimeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmtOut, err := output.ParseFormat(format)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			shutdown, err := telemetry.Init(ctx, version.Version, cfg.Telemetry.Endpoint)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
				}
			}()

			filter, err := cfg.ResourceFilter()
			if err != nil {
				return err
			}
			engOpts := append([]engine.EngineOption{engine.WithLogger(logger), engine.WithFilter(filter)}, a.engineOpts...)
			eng := engine.NewDefaultEngine(a.newLoader(cfg, logger), engOpts...)

			opts := engine.Options{
				Profile:     cfg.AWS.Profile,
				Regions:     cfg.AWS.Regions,
				Services:    cfg.Scan.Services,
				Resources:   cfg.Scan.Resources,
				Concurrency: cfg.Scan.Concurrency,
				UnitTimeout: cfg.Scan.UnitTimeout,
			}
			w := cmd.OutOrStdout()
			_, err = engine.Run(ctx, eng, opts, engine.ConsumerFunc(func(_ context.Context, inv *models.Inventory) error {
				if outputPath != "" {
					if err := writeInventoryToFile(outputPath, inv); err != nil {
						return err
					}
				}
				if summary {
					printSummary(w, inv)
					return nil
				}
				return output.Render(w, inv, fmtOut, output.TableOptions{})
			}))
			if err != nil {
				return fmt.Errorf("collect failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile name (default: uses environment / default profile)")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "AWS region(s) to inventory (default: all enabled regions)")
	cmd.Flags().StringSliceVar(&services, "service", nil, "Collector(s) to run: elbv2, vpc (default: all)")
	cmd.Flags().StringSliceVar(&resources, "resource", nil, "Only keep resources matching these ARNs or ids (CEL expressions with --match cel)")
	cmd.Flags().StringVar(&match, "match", config.MatchARN, "How --resource entries are read: arn or cel")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: json or table")
	cmd.Flags().StringVar(&outputPath, "output", "", "Write the full JSON inventory to this file path (in addition to stdout output)")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print resource counts and gaps instead of the full inventory")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Max regional units in flight per pass (0: one per region)")
	cmd.Flags().DurationVar(&unitTimeout, "unit-timeout", 0, "Deadline for each regional unit, e.g. 90s (0: none)")

	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewFileLoader(a.cfgPath)
			if err != nil {
				return err
			}
			path := loader.ConfigPath()
			if err := config.Write(path, config.Default(), force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

// writeInventoryToFile serialises inv as indented JSON and writes it to path,
// creating or overwriting the file. It does not affect stdout output.
func writeInventoryToFile(path string, inv *models.Inventory) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write inventory file %q: %w", path, err)
	}
	return nil
}

// printSummary renders a compact view to w: account header, per-type
// resource counts and gap counts by severity.
func printSummary(w io.Writer, inv *models.Inventory) {
	fmt.Fprintf(w, "Account:  %s\n", inv.AccountID)
	fmt.Fprintf(w, "Profile:  %s\n", inv.Profile)
	fmt.Fprintf(w, "Regions:  %d\n", len(inv.Regions))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Resources")
	if e := inv.ELBv2; e != nil {
		listeners, rules := 0, 0
		for _, lb := range e.LoadBalancers {
			listeners += len(lb.Listeners)
			for _, l := range lb.Listeners {
				rules += len(l.Rules)
			}
		}
		fmt.Fprintf(w, "  %-24s  %d\n", "load balancers", len(e.LoadBalancers))
		fmt.Fprintf(w, "  %-24s  %d\n", "listeners", listeners)
		fmt.Fprintf(w, "  %-24s  %d\n", "listener rules", rules)
	}
	if v := inv.VPC; v != nil {
		fmt.Fprintf(w, "  %-24s  %d\n", "vpcs", len(v.VPCs))
		fmt.Fprintf(w, "  %-24s  %d\n", "peering connections", len(v.PeeringConnections))
		fmt.Fprintf(w, "  %-24s  %d\n", "endpoints", len(v.Endpoints))
		fmt.Fprintf(w, "  %-24s  %d\n", "endpoint services", len(v.EndpointServices))
	}

	var errs, warns int
	for _, g := range inv.Gaps() {
		if g.Severity == models.GapWarning {
			warns++
		} else {
			errs++
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Gaps:     %d errors, %d warnings\n", errs, warns)
}
