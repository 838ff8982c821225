package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs planctl with the process arguments.
func Execute(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return newRootCmd(newApp(cfg, os.Stderr)).ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Plan validity and usage engine for retail sellers",
		Long:          "planctl serves the plan engine over HTTP and runs one-off plan operations against the configured storage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.configureLogger()
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.Plan.CatalogPath, "catalog", a.cfg.Plan.CatalogPath, "plan catalog YAML file")
	flags.StringVar(&a.cfg.Plan.StorageDriver, "storage", a.cfg.Plan.StorageDriver, "storage driver: memory, postgres or mongo")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newPlansCmd(a),
		newSellerCmd(a),
		newActivateCmd(a, "activate", "Activate a plan, creating free and mini subscriptions on demand"),
		newActivateCmd(a, "switch", "Switch to an already assigned plan"),
		newSellerOpCmd(a, "switch-valid", "Switch to the assigned plan with the most validity left", switchToValid),
		newSellerOpCmd(a, "reactivate", "Resume the paused current plan", reactivate),
		newSellerOpCmd(a, "assign-default", "Assign and activate the free plan", assignDefault),
		newConfirmPaymentCmd(a),
		newRemainingCmd(a),
		newUsageCmd(a),
		newAdjustCmd(a),
		newCanAddCmd(a),
	)
	return root
}

func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
