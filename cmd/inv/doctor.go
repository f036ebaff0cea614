package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/config"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/logging"
	"github.com/pankaj-dahiya-devops/cloud-inventory/internal/providers/aws/common"
)

// DoctorResult is what inv doctor found out about the environment a
// collection would run in. It renders as a table or, with --format=json,
// as JSON.
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Endpoint    string `json:"endpoint,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		Regions     int    `json:"regions,omitempty"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	Config struct {
		Path    string   `json:"path"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"config"`

	// Scan is the plan a collect run would execute with the loaded config.
	Scan struct {
		Services []string `json:"services"`
		Selected []string `json:"selected_regions,omitempty"`
		Unknown  []string `json:"unknown_regions,omitempty"`
	} `json:"scan"`

	OverallHealthy bool `json:"overall_healthy"`
}

var errUnhealthy = errors.New("environment is not healthy")

func newDoctorCmd(a *app) *cobra.Command {
	var (
		format  string
		profile string
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check credentials, region access and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgLoader, err := config.NewFileLoader(a.cfgPath)
			if err != nil {
				return err
			}
			// A broken config file is reported, not fatal: the AWS checks
			// still run against defaults.
			cfg, cfgErr := cfgLoader.Load()
			if cfgErr != nil {
				cfg = config.Default()
			}
			if cmd.Flags().Changed("profile") {
				cfg.AWS.Profile = profile
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			loader := a.newLoader(cfg, logging.Discard())
			result, err := runDoctor(ctx, loader, cfgLoader, cfg, cmd.OutOrStdout(), format)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", `Output format: "table" or "json"`)
	cmd.Flags().StringVar(&profile, "profile", "", "AWS profile to check (default: config, then credential chain)")
	return cmd
}

// runDoctor diagnoses the environment, writes the result to w and returns
// it. The error covers rendering only; the verdict is
// result.OverallHealthy.
func runDoctor(ctx context.Context, loader common.SessionLoader, cfgLoader config.Loader, cfg *config.Config, w io.Writer, format string) (DoctorResult, error) {
	result := diagnose(ctx, loader, cfgLoader, cfg)

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
		return result, nil
	}
	renderDoctorTable(w, result)
	return result, nil
}

func diagnose(ctx context.Context, loader common.SessionLoader, cfgLoader config.Loader, cfg *config.Config) DoctorResult {
	var result DoctorResult
	result.AWS.Profile = cfg.AWS.Profile
	result.AWS.Endpoint = cfg.AWS.EndpointURL
	result.Scan.Services = cfg.EnabledServices()

	var active []string
	if session, err := loader.Load(ctx, cfg.AWS.Profile); err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = session.AccountID
		if active, err = loader.ActiveRegions(ctx, session); err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.RegionsOK = true
			result.AWS.Regions = len(active)
			result.Scan.Selected, result.Scan.Unknown = common.SelectRegions(cfg.AWS.Regions, active)
		}
	}

	result.Config.Path = cfgLoader.ConfigPath()
	switch _, err := os.Stat(result.Config.Path); {
	case err == nil:
		result.Config.Present = true
		if _, err := cfgLoader.Load(); err != nil {
			result.Config.Errors = strings.Split(err.Error(), "\n")
		} else {
			result.Config.Valid = true
		}
	case !os.IsNotExist(err):
		result.Config.Present = true
		result.Config.Errors = []string{err.Error()}
	}

	// Unknown regions alone are tolerated by collect; an empty selection
	// is not.
	result.OverallHealthy = result.AWS.Credentials &&
		result.AWS.RegionsOK &&
		len(result.Scan.Selected) > 0 &&
		(!result.Config.Present || result.Config.Valid)
	return result
}

func renderDoctorTable(w io.Writer, result DoctorResult) {
	fmt.Fprintln(w, "Environment Diagnostics")

	heading := "\nAWS"
	if result.AWS.Profile != "" {
		heading += " (profile: " + result.AWS.Profile + ")"
	}
	fmt.Fprintln(w, heading+":")
	if result.AWS.Endpoint != "" {
		doctorPrint(w, "Endpoint", "override", result.AWS.Endpoint)
	}
	switch {
	case !result.AWS.Credentials:
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "Regions API", "FAIL", "skipped")
	case !result.AWS.RegionsOK:
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
	default:
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		doctorPrint(w, "Regions API", "OK", fmt.Sprintf("%d enabled", result.AWS.Regions))
	}

	fmt.Fprintln(w, "\nConfig:")
	if !result.Config.Present {
		doctorPrint(w, "File present", "Not found (optional)", result.Config.Path)
	} else {
		doctorPrint(w, "File present", "YES", result.Config.Path)
		if result.Config.Valid {
			doctorPrint(w, "Config valid", "OK", "")
		}
		for _, e := range result.Config.Errors {
			doctorPrint(w, "Config valid", "FAIL", e)
		}
	}

	fmt.Fprintln(w, "\nScan:")
	doctorPrint(w, "Collectors", strings.Join(result.Scan.Services, ", "), "")
	if !result.AWS.RegionsOK {
		doctorPrint(w, "Regions", "unknown", "regions API unavailable")
		return
	}
	if len(result.Scan.Selected) == 0 {
		doctorPrint(w, "Regions", "FAIL", "none of the requested regions are enabled")
	} else {
		doctorPrint(w, "Regions", fmt.Sprintf("%d selected", len(result.Scan.Selected)), strings.Join(result.Scan.Selected, ", "))
	}
	if len(result.Scan.Unknown) > 0 {
		doctorPrint(w, "Skipped", "not enabled", strings.Join(result.Scan.Unknown, ", "))
	}
}

func doctorPrint(w io.Writer, label, status, detail string) {
	if detail == "" {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
		return
	}
	fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
}
