package main

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eqft-lab/leptond/pkg/engine"
	"github.com/eqft-lab/leptond/pkg/lepton"
	"github.com/eqft-lab/leptond/pkg/report"
	"github.com/eqft-lab/leptond/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

// getVersion returns the client version and the daemon version.
func getVersion() (string, string, error) {
	daemonVersion, err := apiClient.GetVersion()
	if err != nil {
		return version.Version, "", err
	}
	return version.Version, daemonVersion, nil
}

func parseLeptonArg(args []string) (lepton.Lepton, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one lepton argument (electron, muon, or tau)")
	}
	return lepton.Parse(args[0])
}

func parseFloatArg(s, name string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s %q: %v", name, s, err)
	}
	return v, nil
}

func NewPredictCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "predict [lepton]",
		Short:   "Predict the anomalous moment correction of one lepton",
		GroupID: gBasic,
		Long: `Predict the anomalous magnetic moment correction a^BSM of one lepton.

Prints the full evaluation: overlap, topological invariant, prediction, and the comparison against the experimental reference where one exists.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseLeptonArg(args)
			if err != nil {
				return err
			}

			res, err := apiClient.Evaluate(l)
			if err != nil {
				return fmt.Errorf("failed to evaluate %s: %v", l, err)
			}

			cmd.Print(report.Prediction(res))
			return nil
		},
	}
}

func NewSetPhasesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "set-phases [phiElectron] [phiMuon] [phiTau]",
		Short:   "Set the three Berry phases",
		GroupID: gAdvanced,
		Long: `Set the Berry phases of all three leptons at once.

Phases are validated for [0, 4π); larger values are accepted but flip the overlap sign and are almost never what you want.`,
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 3 {
				return fmt.Errorf("expected exactly three phase arguments")
			}

			phiE, err := parseFloatArg(args[0], "electron phase")
			if err != nil {
				return err
			}
			phiMu, err := parseFloatArg(args[1], "muon phase")
			if err != nil {
				return err
			}
			phiTau, err := parseFloatArg(args[2], "tau phase")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetPhases(phiE, phiMu, phiTau)
			if err != nil {
				return fmt.Errorf("failed to set phases: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set berry phases to (%g, %g, %g)", phiE, phiMu, phiTau)

			return nil
		},
	}
}

func NewVariantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "variant",
		Short:   "Get or set the formula variant",
		GroupID: gAdvanced,
		Long: `Get or set the formula variant the daemon computes with.

"v2-corrected" (the default) uses the symmetric overlap and couples the tau to the muon. "v1" is the legacy formula set, kept for comparison runs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := apiClient.GetVariant()
			if err != nil {
				return fmt.Errorf("failed to get variant: %v", err)
			}
			cmd.Println(v)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [variant]",
		Short: "Set the formula variant",
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one variant argument")
			}
			v, err := engine.ParseVariant(args[0])
			if err != nil {
				return err
			}

			ret, err := apiClient.SetVariant(v)
			if err != nil {
				return fmt.Errorf("failed to set variant: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	})

	return cmd
}
