package commands

import (
	"NetDeviation/internal/model"
	"errors"
	"fmt"

	"github.com/urfave/cli"
)

func init() {
	baseline := cli.Command{
		Name:  "baseline",
		Usage: "capture normal traffic and store the baseline summary",
		Flags: []cli.Flag{configFlag, pcapFlag, ifaceFlag, metricsAddrFlag},
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

			summary, err := mgr.Baseline(ctx)
			if summary == nil {
				return cli.NewExitError(err.Error(), 1)
			}
			if err != nil {
				e.logger.WithError(err).Warn("Baseline stored with errors")
			}
			fmt.Fprintf(c.App.Writer, "Baseline %s: %d packets (tcp %d, udp %d, icmp %d)\n",
				summary.RunID, summary.TotalCount, summary.TCPCount, summary.UDPCount, summary.ICMPCount)
			return nil
		},
	}

	attack := cli.Command{
		Name:  "attack",
		Usage: "run the attack sequence while capturing, and store both artifacts",
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

			res, err := mgr.Attack(ctx)
			if res.Summary != nil {
				fmt.Fprintf(c.App.Writer, "Attack capture %s: %d packets (tcp %d, udp %d, icmp %d)\n",
					res.Summary.RunID, res.Summary.TotalCount, res.Summary.TCPCount, res.Summary.UDPCount, res.Summary.ICMPCount)
			}
			if res.Log != nil {
				fmt.Fprintf(c.App.Writer, "Attack modules: %d run, %d failed\n", len(res.Log.Records), len(res.Log.Failed()))
			}
			if errors.Is(err, model.ErrSourceUnavailable) {
				return cli.NewExitError(err.Error(), 1)
			}
			if err != nil {
				e.logger.WithError(err).Warn("Attack phase finished with errors")
			}
			return nil
		},
	}

	bootstrapCommands(baseline, attack)
}
