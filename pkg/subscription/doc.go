// Package subscription implements the diary's subscription lifecycle and
// usage entitlements: plan catalog, per-user subscriptions, usage quotas,
// renewal reminders, expiry sweeps and payment gateway reconciliation.
//
// # Architecture
//
//   - Catalog: immutable set of plans, loaded from YAML or memory and injected
//   - Store: persistence for subscriptions, usage counters, payments and reminders
//   - Provider: payment gateway edge (Stripe, Paddle or HMAC-signed events)
//   - Service: every operation, built from the pieces above
//
// There are no implicit hooks. The caller that creates a user calls
// ProvisionUser; every service operation that changes a subscription goes
// through one write path that applies the expiry guard and rebuilds the
// renewal reminders.
//
// # Quick Start
//
//	catalog, err := subscription.LoadCatalog(ctx, subscription.NewYAMLSource("plans.yaml"))
//	if err != nil {
//		return err
//	}
//
//	svc := subscription.NewService(store, catalog,
//		subscription.WithProvider(stripeProvider),
//		subscription.WithLogger(log),
//	)
//
//	if _, err := svc.ProvisionUser(ctx, userID); err != nil {
//		return err
//	}
//
// # Quotas
//
// Consume reserves one unit with an atomic conditional increment and runs
// the creation callback, releasing the unit if it fails:
//
//	err := svc.Consume(ctx, userID, subscription.ResourceEntries, func(ctx context.Context) error {
//		return entries.Create(ctx, entry)
//	})
//	if errors.Is(err, subscription.ErrLimitExceeded) {
//		// ask the user to upgrade
//	}
//
// CanCreate answers the same question without reserving anything and is
// meant for UI hints only.
//
// # Periodic work
//
// SweepExpired, DispatchReminders and ResetStaleUsage are driven by an
// external scheduler. All three are idempotent and safe to run concurrently
// with user requests and with themselves.
//
// # Webhooks
//
// HandleWebhook returns ErrInvalidSignature for unverifiable requests and a
// storage error when the event must be redelivered. Malformed, unknown and
// duplicate events are acknowledged. Payments are unique by external
// reference, so redelivery never creates a second record.
package subscription
