package cli

import (
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/retailplan/modules/billing"
	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
	plansvc "github.com/dmitrymomot/retailplan/svc/subscription"
)

func newPlansCmd(a *app) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "plans",
		Short: "List the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := plansvc.LoadCatalogFile(a.cfg.Plan.CatalogPath)
			if err != nil {
				return err
			}
			templates := catalog.Templates()
			if activeOnly {
				templates = lo.Filter(templates, func(t *engine.Template, _ int) bool { return t.Active })
			}
			return printJSON(out(cmd), lo.Map(templates, func(t *engine.Template, _ int) billing.PlanView {
				return billing.NewPlanView(t)
			}))
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only list plans available for assignment")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply storage migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				return rt.Migrate(cmd.Context(), a.cfg.Plan)
			})
		},
	}
}
