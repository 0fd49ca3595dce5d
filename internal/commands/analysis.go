package commands

import (
	"NetDeviation/internal/report"
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func init() {
	compare := cli.Command{
		Name:  "compare",
		Usage: "compute the deviation between the latest baseline and attack summaries",
		Flags: []cli.Flag{configFlag},
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

			result, err := mgr.Compare(ctx)
			if result == nil {
				return cli.NewExitError(err.Error(), 1)
			}
			fmt.Fprintf(c.App.Writer, "Total packet increase : %+.1f%%\n", result.TotalPacketIncreasePct)
			fmt.Fprintf(c.App.Writer, "TCP increase          : %+.1f%%\n", result.TCPIncreasePct)
			fmt.Fprintf(c.App.Writer, "UDP increase          : %+.1f%%\n", result.UDPIncreasePct)
			fmt.Fprintf(c.App.Writer, "ICMP increase         : %+.1f%%\n", result.ICMPIncreasePct)
			fmt.Fprintf(c.App.Writer, "Baseline avg pps      : %.2f\n", result.BaselineAvgPPS)
			fmt.Fprintf(c.App.Writer, "Attack avg pps        : %.2f\n", result.AttackAvgPPS)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			return nil
		},
	}

	reportCmd := cli.Command{
		Name:  "report",
		Usage: "print the comparison report of the latest artifacts",
		Flags: []cli.Flag{
			configFlag,
			cli.StringFlag{
				Name:  "html",
				Usage: "also write the HTML report to `FILE`",
			},
			cli.StringFlag{
				Name:  "markdown",
				Usage: "also write the Markdown report to `FILE`",
			},
			cli.BoolFlag{
				Name:  "email",
				Usage: "send the HTML report to the configured SMTP recipients",
			},
		},
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

			r, err := mgr.Report(ctx)
			if err != nil {
				return cli.NewExitError(err.Error(), 1)
			}
			if err := report.WriteText(c.App.Writer, r); err != nil {
				return cli.NewExitError(err.Error(), 1)
			}

			if path := c.String("html"); path != "" {
				body, err := report.RenderHTML(r)
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				if err := os.WriteFile(path, []byte(body), 0644); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
			}
			if path := c.String("markdown"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
				defer f.Close()
				if err := report.WriteMarkdown(f, r); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
			}
			if c.Bool("email") {
				if err := mgr.Notify(r); err != nil {
					return cli.NewExitError(err.Error(), 1)
				}
			}
			return nil
		},
	}

	bootstrapCommands(compare, reportCmd)
}
