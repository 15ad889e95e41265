// Package journal manages the quota-controlled diary resources: entries and
// personal reminders.
//
// Every create goes through a Quota (subscription.Service satisfies it), so
// the usage counter and the stored record move together: when the plan's
// allowance is exhausted the create fails with subscription.ErrLimitExceeded
// and nothing is written, and when the write fails the counter is reverted.
//
// Records are owner-scoped. Reading, updating or deleting another user's
// record reports ErrEntryNotFound or ErrReminderNotFound, exactly as if it
// did not exist.
//
// Two Store implementations are provided: MemoryStore for tests and local
// runs, and PGStore on PostgreSQL through sqlx. NewHandler exposes the
// service as a JSON API for chi routers.
package journal
