package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/eqft-lab/leptond/pkg/client"
	"github.com/eqft-lab/leptond/pkg/report"
)

func NewCalibrateCommand() *cobra.Command {
	var (
		rangeLo float64
		rangeHi float64
		steps   int
		apply   bool
	)

	cmd := &cobra.Command{
		Use:     "calibrate [lepton]",
		Short:   "Search for the best calibration constant of one lepton",
		GroupID: gBasic,
		Long: `Sweep the calibration constant δa_NF of one lepton over a grid and rank the candidates against the calibration target.

Without flags the built-in target range is used. The winner is only applied to the daemon when --apply is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseLeptonArg(args)
			if err != nil {
				return err
			}

			req := client.CalibrationRequest{Apply: apply}
			loSet := cmd.Flags().Changed("range-lo")
			hiSet := cmd.Flags().Changed("range-hi")
			stepsSet := cmd.Flags().Changed("steps")
			if loSet || hiSet || stepsSet {
				if !loSet || !hiSet || !stepsSet {
					return fmt.Errorf("--range-lo, --range-hi and --steps must be given together")
				}
				req.RangeLo = rangeLo
				req.RangeHi = rangeHi
				req.Steps = steps
			}

			out, err := apiClient.Calibrate(l, req)
			if err != nil {
				return fmt.Errorf("failed to calibrate %s: %v", l, err)
			}

			cmd.Print(report.Calibration(out.Lepton, out.Target, out.Candidates))

			if out.Applied {
				logrus.Infof("applied δa_NF = %g to %s", out.Best, l)
			} else {
				logrus.Infof("winner not applied; re-run with --apply or use 'leptond calibrate apply'")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&rangeLo, "range-lo", 0, "lower bound of the search range")
	f.Float64Var(&rangeHi, "range-hi", 0, "upper bound of the search range")
	f.IntVar(&steps, "steps", 0, "number of grid points (0 = use the built-in target range)")
	f.BoolVar(&apply, "apply", false, "apply the winning constant to the daemon")

	cmd.AddCommand(&cobra.Command{
		Use:   "apply [lepton] [deltaANF]",
		Short: "Apply a calibration constant",
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected a lepton and a constant")
			}
			l, err := parseLeptonArg(args[:1])
			if err != nil {
				return err
			}
			v, err := parseFloatArg(args[1], "calibration constant")
			if err != nil {
				return err
			}

			ret, err := apiClient.ApplyCalibration(l, v)
			if err != nil {
				return fmt.Errorf("failed to apply calibration: %v", err)
			}

			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}
			return nil
		},
	})

	return cmd
}

func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "verify",
		Short:   "Verify the applied constants against the calibration targets",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vs, err := apiClient.Verify()
			if err != nil {
				return fmt.Errorf("failed to verify calibration: %v", err)
			}

			cmd.Print(report.Verification(vs))

			for _, v := range vs {
				if !v.OK {
					return fmt.Errorf("%s is out of tolerance; run 'leptond calibrate %s --apply'", v.Lepton, v.Lepton)
				}
			}
			return nil
		},
	}
}

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Get or set the periodic recalibration schedule",
		GroupID: gAdvanced,
		Long: `Get or set the cron schedule for periodic recalibration.

The daemon re-verifies all leptons on schedule and re-searches any that drifted out of tolerance. An empty schedule disables periodic recalibration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			expr, err := apiClient.GetSchedule()
			if err != nil {
				return fmt.Errorf("failed to get schedule: %v", err)
			}
			if expr == "" {
				cmd.Println("periodic recalibration is disabled")
			} else {
				cmd.Println(expr)
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [cron expression]",
			Short: "Set the recalibration schedule",
			RunE: func(_ *cobra.Command, args []string) error {
				if len(args) != 1 {
					return fmt.Errorf("expected exactly one cron expression, e.g. '@daily'")
				}

				ret, err := apiClient.SetSchedule(args[0])
				if err != nil {
					return fmt.Errorf("failed to set schedule: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Disable periodic recalibration",
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SetSchedule("")
				if err != nil {
					return fmt.Errorf("failed to clear schedule: %v", err)
				}

				if ret != "" {
					logrus.Infof("daemon responded: %s", ret)
				}
				return nil
			},
		},
	)

	return cmd
}
