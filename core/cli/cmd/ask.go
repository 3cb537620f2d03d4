package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperterse/querygate/core/application/services"
	"github.com/hyperterse/querygate/core/logger"
)

var (
	askSchema   string
	askShowQuery bool
	askAdHoc    adHocFlags
)

// askCmd translates a question into a query and runs it
var askCmd = &cobra.Command{
	Use:   "ask [name] <question>",
	Short: "Answer a natural-language question with a generated query",
	Long: `Send the question to the configured translator endpoint, then run the
generated query against the data source and print the rows as JSON.`,
	RunE:          runAsk,
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askSchema, "schema", "", "Schema description handed to the translator")
	askCmd.Flags().BoolVar(&askShowQuery, "show-query", false, "Print the generated query alongside the rows")
	askAdHoc.register(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	log := logger.New("ask")

	question := args[len(args)-1]
	nameArgs := args[:len(args)-1]

	c, err := newContainer("ask")
	if err != nil {
		return err
	}
	defer c.Close()

	if c.AskService == nil {
		return logger.Errorf("ask", "translator.endpoint is not configured")
	}

	d, err := askAdHoc.target(c, nameArgs)
	if err != nil {
		return logger.WithTag("ask", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := c.AskService.Ask(ctx, services.AskRequest{
		Question:   strings.TrimSpace(question),
		Schema:     askSchema,
		Descriptor: &d,
	})
	if err != nil {
		return logger.WithTag("ask", err)
	}
	log.Infof("Generated query: %s", out.Query)

	if askShowQuery {
		return printJSON(cmd.OutOrStdout(), map[string]any{"query": out.Query, "rows": out.Result.Rows})
	}
	return printJSON(cmd.OutOrStdout(), out.Result)
}
