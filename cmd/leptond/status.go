package main

import (
	"fmt"
	"math"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eqft-lab/leptond/pkg/config"
	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
)

type statusData struct {
	results map[lepton.Lepton]*engine.Result
	config  *config.RawFileConfig
	variant engine.Variant
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	results, err := apiClient.EvaluateAll()
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate leptons: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	variant, err := apiClient.GetVariant()
	if err != nil {
		return nil, fmt.Errorf("failed to get variant: %w", err)
	}

	return &statusData{
		results: results,
		config:  conf,
		variant: variant,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current predictions of leptond",
		Long:    `Get the current per-lepton predictions, their agreement with experiment, and the daemon configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Predictions (%s):", data.variant))
			for _, l := range lepton.All {
				res := data.results[l]
				if res == nil {
					continue
				}

				cmd.Printf("  %s:\n", bold("%s", l))
				cmd.Printf("    a^BSM: %s\n", bold("%.6e", res.ALeptonEQFT))
				if res.Delta != nil {
					cmd.Printf("    Δa (exp - SM): %.6e\n", *res.Delta)
				}
				if res.Significance != nil {
					cmd.Printf("    Agreement: %s\n", sigText(*res.Significance))
				} else {
					cmd.Printf("    Agreement: no experimental reference\n")
				}
			}

			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Berry phases (e, μ, τ): %s\n",
				bold("%.4f, %.4f, %.4f",
					conf.BerryPhase(lepton.Electron),
					conf.BerryPhase(lepton.Muon),
					conf.BerryPhase(lepton.Tau)))
			cmd.Printf("  δa_NF (e, μ, τ): %s\n",
				bold("%.6e, %.6e, %.6e",
					conf.DeltaANF(lepton.Electron),
					conf.DeltaANF(lepton.Muon),
					conf.DeltaANF(lepton.Tau)))
			if expr := conf.RecalibrateSchedule(); expr != "" {
				cmd.Printf("  Periodic recalibration: %s\n", bold("%s", expr))
			} else {
				cmd.Printf("  Periodic recalibration: disabled\n")
			}
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
			return nil
		},
	}
}

// sigText renders a significance: green within 1σ, yellow within 2σ, red
// beyond.
func sigText(sigma float64) string {
	s := fmt.Sprintf("%.2fσ", sigma)
	switch {
	case math.Abs(sigma) <= 1:
		return color.New(color.Bold, color.FgGreen).Sprint(s)
	case math.Abs(sigma) <= 2:
		return color.New(color.Bold, color.FgYellow).Sprint(s)
	default:
		return color.New(color.Bold, color.FgRed).Sprint(s)
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
