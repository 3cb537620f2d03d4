package cli

import (
	"github.com/hyperterse/querygate/core/cli/cmd"
	"github.com/hyperterse/querygate/core/logger"
)

// Execute runs the CLI
func Execute() error {
	if err := cmd.Execute(); err != nil {
		logger.New(logger.TagOr(err, "cli")).Error(err.Error())
		return err
	}
	return nil
}
