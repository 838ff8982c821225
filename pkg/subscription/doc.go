// Package subscription implements plan validity and usage accounting for sellers
// of a retail platform.
//
// A seller holds any number of subscriptions, each an instance of a catalog
// Template. Validity is measured in active time only: a subscription's clock runs
// while it is active and stops while it is paused, so switching between plans never
// burns time on the plan that is not in use. Exactly one standard subscription is
// the seller's primary one; mini templates are top-ups that stack quota alongside
// the primary without ever replacing it.
//
// # Architecture
//
//   - Duration Calculator: PlanDuration, Consumed, Remaining and FormatRemaining are
//     pure functions over a subscription, its template and a clock reading.
//   - Lifecycle: Pause, Refresh and Activate are the only state transitions.
//     An expired subscription is terminal and its expiry date never moves.
//   - Service: the activation state machine (Activate, Switch, SwitchToValid,
//     ReactivateCurrent, AssignDefaultPlan, ConfirmPayment) and the quota
//     allocator (CanAdd, AdjustUsage, UsageSummary).
//   - Store, TemplateStore: persistence contracts. MemoryStore implements both.
//   - Outbox: post-commit sync notifications on a bounded worker pool.
//
// Every mutating operation runs under a per-seller lock, loads the seller's records,
// mutates them in memory and commits the result as one version-checked Changeset.
// On ErrVersionConflict the whole operation is re-run from a fresh load.
//
// # Usage
//
//	import "github.com/dmitrymomot/retailplan/pkg/subscription"
//
//	store := subscription.NewMemoryStore(
//		&subscription.Template{
//			ID:           "free",
//			DurationDays: 30,
//			Active:       true,
//			Limits: map[subscription.Resource]subscription.Quota{
//				subscription.ResourceProducts: subscription.Bounded(10),
//			},
//		},
//	)
//	store.PutSeller(&subscription.Seller{ID: sellerID})
//
//	svc := subscription.NewService(store, store,
//		subscription.WithLogger(log),
//		subscription.WithOutbox(subscription.NewOutbox(notifier, 4)),
//	)
//
//	if _, err := svc.AssignDefaultPlan(ctx, sellerID); err != nil {
//		return err
//	}
//	if _, err := svc.AdjustUsage(ctx, sellerID, subscription.ResourceProducts, 1); err != nil {
//		if subscription.IsCapacityError(err) {
//			// ask the seller to upgrade
//		}
//		return err
//	}
//
// # Errors
//
// Failures are sentinel errors grouped into kinds by KindOf. Business outcomes
// (NotFound, PaymentRequired, Expired, InsufficientCapacity, ...) are distinguished
// from KindInternal storage failures and KindRetryable timeouts or exhausted
// conflict retries. Capacity shortfalls carry a *CapacityError with the amount
// that could have been applied.
package subscription
