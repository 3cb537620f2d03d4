package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/logger"
)

var (
	probeAll   bool
	probeAdHoc adHocFlags
)

// probeCmd checks that data sources accept connections
var probeCmd = &cobra.Command{
	Use:   "probe [name]",
	Short: "Check that a data source accepts connections",
	Long: `Open one connection to a data source, ping it and close it.
Name a configured data source, pass --all to probe every one, or describe
an ad-hoc data source with --type and the connection flags.`,
	RunE:          runProbe,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().BoolVarP(&probeAll, "all", "a", false, "Probe every configured data source")
	probeAdHoc.register(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	log := logger.New("probe")

	c, err := newContainer("probe")
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if probeAll {
		if len(args) > 0 || probeAdHoc.set() {
			return logger.Errorf("probe", "--all cannot be combined with a name or ad-hoc flags")
		}
		outcomes := c.QueryService.ProbeAll(ctx)
		failed := 0
		for _, o := range outcomes {
			if o.OK {
				log.Successf("%s (%s) reachable in %s", o.Name, o.Engine, formatMS(o.DurationMS))
			} else {
				failed++
				log.Errorf("%s (%s) %s: %s", o.Name, o.Engine, o.Kind, o.Error)
			}
		}
		if failed > 0 {
			return logger.Errorf("probe", "%d of %d data sources unreachable", failed, len(outcomes))
		}
		log.Infof("All %d data sources reachable", len(outcomes))
		return nil
	}

	d, err := probeAdHoc.target(c, args)
	if err != nil {
		return logger.WithTag("probe", err)
	}

	start := time.Now()
	if err := c.QueryService.ProbeDescriptor(ctx, d); err != nil {
		return logger.WithTag("probe", err)
	}
	log.Successf("%s reachable in %s", d.Target(), time.Since(start).Round(time.Millisecond))
	return nil
}
