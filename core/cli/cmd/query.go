package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/logger"
)

var (
	queryText  string
	queryAdHoc adHocFlags
)

// queryCmd runs one query and prints the normalized rows
var queryCmd = &cobra.Command{
	Use:   "query [name] -q <query>",
	Short: "Run one query and print its rows as JSON",
	Long: `Run one SQL statement, or one MongoDB shell command of the form
db.<collection>.<method>(...), against a configured data source or an
ad-hoc one described with --type and the connection flags.`,
	RunE:          runQuery,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "Query text; read from stdin when \"-\"")
	_ = queryCmd.MarkFlagRequired("query")
	queryAdHoc.register(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	log := logger.New("query")

	text, err := readQueryText(cmd, queryText)
	if err != nil {
		return logger.WithTag("query", err)
	}

	c, err := newContainer("query")
	if err != nil {
		return err
	}
	defer c.Close()

	d, err := queryAdHoc.target(c, args)
	if err != nil {
		return logger.WithTag("query", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := c.QueryService.ExecuteDescriptor(ctx, d, text)
	if err != nil {
		return logger.WithTag("query", err)
	}
	log.Debugf("%d rows in %s", result.Len(), formatMS(result.DurationMS))
	return printJSON(cmd.OutOrStdout(), result)
}

func readQueryText(cmd *cobra.Command, text string) (string, error) {
	if text != "-" {
		return text, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read query from stdin: %w", err)
	}
	return string(b), nil
}
