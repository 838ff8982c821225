package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	engine "github.com/dmitrymomot/retailplan/pkg/subscription"
	plansvc "github.com/dmitrymomot/retailplan/svc/subscription"
)

type sellerOp func(ctx context.Context, svc engine.Service, sellerID uuid.UUID) (*engine.ActivationResult, error)

func switchToValid(ctx context.Context, svc engine.Service, id uuid.UUID) (*engine.ActivationResult, error) {
	return svc.SwitchToValid(ctx, id)
}

func reactivate(ctx context.Context, svc engine.Service, id uuid.UUID) (*engine.ActivationResult, error) {
	return svc.ReactivateCurrent(ctx, id)
}

func assignDefault(ctx context.Context, svc engine.Service, id uuid.UUID) (*engine.ActivationResult, error) {
	return svc.AssignDefaultPlan(ctx, id)
}

func parseID(name, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return id, nil
}

func newSellerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seller",
		Short: "Manage seller records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <seller-id>",
		Short: "Register a seller; existing sellers are left untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				if err := rt.Sellers.EnsureSeller(cmd.Context(), sellerID); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out(cmd), sellerID)
				return err
			})
		},
	})
	return cmd
}

func newActivateCmd(a *app, use, short string) *cobra.Command {
	var templateID, subscriptionID string

	cmd := &cobra.Command{
		Use:   use + " <seller-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := engine.ActivateRequest{TemplateID: templateID}
			var err error
			if req.SellerID, err = parseID("seller id", args[0]); err != nil {
				return err
			}
			if subscriptionID != "" {
				if req.SubscriptionID, err = parseID("subscription id", subscriptionID); err != nil {
					return err
				}
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				activate := rt.Service.Activate
				if use == "switch" {
					activate = rt.Service.Switch
				}
				res, err := activate(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printJSON(out(cmd), res)
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "plan template id")
	cmd.Flags().StringVar(&subscriptionID, "subscription", "", "subscription id, takes precedence over --template")
	cmd.MarkFlagsOneRequired("template", "subscription")
	return cmd
}

func newSellerOpCmd(a *app, use, short string, op sellerOp) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <seller-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				res, err := op(cmd.Context(), rt.Service, sellerID)
				if err != nil {
					return err
				}
				return printJSON(out(cmd), res)
			})
		},
	}
}

func newConfirmPaymentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-payment <seller-id> <subscription-id>",
		Short: "Mark a subscription paid and start it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			subID, err := parseID("subscription id", args[1])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				res, err := rt.Service.ConfirmPayment(cmd.Context(), sellerID, subID)
				if err != nil {
					return err
				}
				return printJSON(out(cmd), res)
			})
		},
	}
}

func newRemainingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remaining <seller-id>",
		Short: "Show validity left on every subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				infos, err := rt.Service.GetRemaining(cmd.Context(), sellerID)
				if err != nil {
					return err
				}
				return printJSON(out(cmd), infos)
			})
		},
	}
}

func newUsageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <seller-id>",
		Short: "Show aggregate quotas and per-subscription usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				summary, err := rt.Service.UsageSummary(cmd.Context(), sellerID)
				if err != nil {
					return err
				}
				return printJSON(out(cmd), summary)
			})
		},
	}
}

func newAdjustCmd(a *app) *cobra.Command {
	var delta int64

	cmd := &cobra.Command{
		Use:   "adjust <seller-id> <resource>",
		Short: "Consume (positive --delta) or release (negative --delta) quota",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				summary, err := rt.Service.AdjustUsage(cmd.Context(), sellerID, engine.Resource(args[1]), delta)
				if err != nil {
					return err
				}
				return printJSON(out(cmd), summary)
			})
		},
	}
	cmd.Flags().Int64Var(&delta, "delta", 0, "units to consume; negative releases")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func newCanAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can-add <seller-id> <resource> <count>",
		Short: "Check whether count more units fit; exits non-zero when they do not",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sellerID, err := parseID("seller id", args[0])
			if err != nil {
				return err
			}
			count, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", args[2], err)
			}
			return a.run(cmd.Context(), func(rt *plansvc.Runtime) error {
				if err := rt.Service.CanAdd(cmd.Context(), sellerID, engine.Resource(args[1]), count); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out(cmd), "ok")
				return err
			})
		},
	}
}
