package commands

import (
	"NetDeviation/pkg/pcap"
	"fmt"

	"github.com/urfave/cli"
)

func init() {
	run := cli.Command{
		Name:  "run",
		Usage: "run the full pipeline: baseline, attack, compare and report",
		Flags: []cli.Flag{configFlag, pcapFlag, ifaceFlag, targetFlag, metricsAddrFlag},
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			ctx, cancel := signalContext()
			defer cancel()

			mgr, cleanup, err := e.newManager(ctx, c)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			defer cleanup()

			result, err := mgr.Run(ctx)
			if result == nil {
				return cli.NewExitError(err.Error(), 1)
			}
			if err != nil {
				e.logger.WithError(err).Warn("Pipeline completed with errors")
			}
			fmt.Fprintf(c.App.Writer, "Total packet increase: %+.1f%% (baseline %.2f pps, attack %.2f pps)\n",
				result.TotalPacketIncreasePct, result.BaselineAvgPPS, result.AttackAvgPPS)
			return nil
		},
	}

	interfaces := cli.Command{
		Name:  "interfaces",
		Usage: "list capture interfaces and the default one",
		Action: func(c *cli.Context) error {
			devs, err := pcap.Devices()
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			for _, d := range devs {
				fmt.Fprintln(c.App.Writer, d)
			}
			return nil
		},
	}

	bootstrapCommands(run, interfaces)
}
