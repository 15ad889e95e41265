package subscription

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local runs.
// Transactions run under a single lock against a copy of the state that is
// swapped in on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

type reminderKey struct {
	user, sub uuid.UUID
	typ       ReminderType
}

type memState struct {
	subs      map[uuid.UUID]Subscription // by user
	usage     map[uuid.UUID]Usage
	payments  map[string]Payment // by external ref
	reminders map[uuid.UUID]Reminder
}

func newMemState() *memState {
	return &memState{
		subs:      map[uuid.UUID]Subscription{},
		usage:     map[uuid.UUID]Usage{},
		payments:  map[string]Payment{},
		reminders: map[uuid.UUID]Reminder{},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		subs:      maps.Clone(s.subs),
		usage:     maps.Clone(s.usage),
		payments:  maps.Clone(s.payments),
		reminders: make(map[uuid.UUID]Reminder, len(s.reminders)),
	}
	for id, r := range s.reminders {
		if r.SentAt != nil {
			at := *r.SentAt
			r.SentAt = &at
		}
		c.reminders[id] = r
	}
	return c
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	if err := fn(ctx, &memTx{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) with(fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *MemoryStore) GetSubscription(ctx context.Context, userID uuid.UUID) (sub *Subscription, err error) {
	err = m.with(func(s *memState) error { sub, err = s.getSubscription(userID); return err })
	return sub, err
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, sub *Subscription) error {
	return m.with(func(s *memState) error { return s.createSubscription(sub) })
}

func (m *MemoryStore) UpdateSubscription(ctx context.Context, sub *Subscription) error {
	return m.with(func(s *memState) error { return s.updateSubscription(sub) })
}

func (m *MemoryStore) ListSubscriptions(ctx context.Context, f SubscriptionFilter) (out []Subscription, err error) {
	err = m.with(func(s *memState) error { out = s.listSubscriptions(f); return nil })
	return out, err
}

func (m *MemoryStore) GetUsage(ctx context.Context, userID uuid.UUID) (u *Usage, err error) {
	err = m.with(func(s *memState) error { u, err = s.getUsage(userID); return err })
	return u, err
}

func (m *MemoryStore) EnsureUsage(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return m.with(func(s *memState) error { s.ensureUsage(userID, now); return nil })
}

func (m *MemoryStore) IncrementUsage(ctx context.Context, userID uuid.UUID, res Resource, limit int64, now time.Time) (ok bool, err error) {
	err = m.with(func(s *memState) error { ok = s.incrementUsage(userID, res, limit, now); return nil })
	return ok, err
}

func (m *MemoryStore) DecrementUsage(ctx context.Context, userID uuid.UUID, res Resource) error {
	return m.with(func(s *memState) error { s.decrementUsage(userID, res); return nil })
}

func (m *MemoryStore) ResetUsage(ctx context.Context, userID uuid.UUID, now time.Time) error {
	return m.with(func(s *memState) error { return s.resetUsage(userID, now) })
}

func (m *MemoryStore) ResetUsageBefore(ctx context.Context, cutoff, now time.Time) (n int, err error) {
	err = m.with(func(s *memState) error { n = s.resetUsageBefore(cutoff, now); return nil })
	return n, err
}

func (m *MemoryStore) GetPaymentByExternalRef(ctx context.Context, ref string) (p *Payment, err error) {
	err = m.with(func(s *memState) error { p, err = s.getPayment(ref); return err })
	return p, err
}

func (m *MemoryStore) CreatePayment(ctx context.Context, p *Payment) error {
	return m.with(func(s *memState) error { return s.createPayment(p) })
}

func (m *MemoryStore) UpdatePayment(ctx context.Context, p *Payment) error {
	return m.with(func(s *memState) error { return s.updatePayment(p) })
}

func (m *MemoryStore) ListPayments(ctx context.Context, userID uuid.UUID, limit int) (out []Payment, err error) {
	err = m.with(func(s *memState) error { out = s.listPayments(userID, limit); return nil })
	return out, err
}

func (m *MemoryStore) DeleteReminders(ctx context.Context, userID, subID uuid.UUID) error {
	return m.with(func(s *memState) error { s.deleteReminders(userID, subID); return nil })
}

func (m *MemoryStore) CreateReminder(ctx context.Context, r *Reminder) error {
	return m.with(func(s *memState) error { return s.createReminder(r) })
}

func (m *MemoryStore) UpsertReminder(ctx context.Context, r *Reminder) error {
	return m.with(func(s *memState) error { s.upsertReminder(r); return nil })
}

func (m *MemoryStore) ListReminders(ctx context.Context, subID uuid.UUID) (out []Reminder, err error) {
	err = m.with(func(s *memState) error { out = s.listReminders(subID); return nil })
	return out, err
}

func (m *MemoryStore) ListDueReminders(ctx context.Context, now time.Time, limit int) (out []Reminder, err error) {
	err = m.with(func(s *memState) error { out = s.listDueReminders(now, limit); return nil })
	return out, err
}

func (m *MemoryStore) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return m.with(func(s *memState) error { return s.markReminderSent(id, at) })
}

// memTx is the Store handed to InTx callbacks. The enclosing MemoryStore
// lock is already held.
type memTx struct {
	state *memState
}

func (t *memTx) InTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return fn(ctx, t)
}

func (t *memTx) GetSubscription(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	return t.state.getSubscription(userID)
}

func (t *memTx) CreateSubscription(_ context.Context, sub *Subscription) error {
	return t.state.createSubscription(sub)
}

func (t *memTx) UpdateSubscription(_ context.Context, sub *Subscription) error {
	return t.state.updateSubscription(sub)
}

func (t *memTx) ListSubscriptions(_ context.Context, f SubscriptionFilter) ([]Subscription, error) {
	return t.state.listSubscriptions(f), nil
}

func (t *memTx) GetUsage(_ context.Context, userID uuid.UUID) (*Usage, error) {
	return t.state.getUsage(userID)
}

func (t *memTx) EnsureUsage(_ context.Context, userID uuid.UUID, now time.Time) error {
	t.state.ensureUsage(userID, now)
	return nil
}

func (t *memTx) IncrementUsage(_ context.Context, userID uuid.UUID, res Resource, limit int64, now time.Time) (bool, error) {
	return t.state.incrementUsage(userID, res, limit, now), nil
}

func (t *memTx) DecrementUsage(_ context.Context, userID uuid.UUID, res Resource) error {
	t.state.decrementUsage(userID, res)
	return nil
}

func (t *memTx) ResetUsage(_ context.Context, userID uuid.UUID, now time.Time) error {
	return t.state.resetUsage(userID, now)
}

func (t *memTx) ResetUsageBefore(_ context.Context, cutoff, now time.Time) (int, error) {
	return t.state.resetUsageBefore(cutoff, now), nil
}

func (t *memTx) GetPaymentByExternalRef(_ context.Context, ref string) (*Payment, error) {
	return t.state.getPayment(ref)
}

func (t *memTx) CreatePayment(_ context.Context, p *Payment) error {
	return t.state.createPayment(p)
}

func (t *memTx) UpdatePayment(_ context.Context, p *Payment) error {
	return t.state.updatePayment(p)
}

func (t *memTx) ListPayments(_ context.Context, userID uuid.UUID, limit int) ([]Payment, error) {
	return t.state.listPayments(userID, limit), nil
}

func (t *memTx) DeleteReminders(_ context.Context, userID, subID uuid.UUID) error {
	t.state.deleteReminders(userID, subID)
	return nil
}

func (t *memTx) CreateReminder(_ context.Context, r *Reminder) error {
	return t.state.createReminder(r)
}

func (t *memTx) UpsertReminder(_ context.Context, r *Reminder) error {
	t.state.upsertReminder(r)
	return nil
}

func (t *memTx) ListReminders(_ context.Context, subID uuid.UUID) ([]Reminder, error) {
	return t.state.listReminders(subID), nil
}

func (t *memTx) ListDueReminders(_ context.Context, now time.Time, limit int) ([]Reminder, error) {
	return t.state.listDueReminders(now, limit), nil
}

func (t *memTx) MarkReminderSent(_ context.Context, id uuid.UUID, at time.Time) error {
	return t.state.markReminderSent(id, at)
}

func (s *memState) getSubscription(userID uuid.UUID) (*Subscription, error) {
	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *memState) createSubscription(sub *Subscription) error {
	if _, ok := s.subs[sub.UserID]; ok {
		return ErrSubscriptionAlreadyExists
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	s.subs[sub.UserID] = *sub
	return nil
}

func (s *memState) updateSubscription(sub *Subscription) error {
	cur, ok := s.subs[sub.UserID]
	if !ok || cur.ID != sub.ID {
		return ErrSubscriptionNotFound
	}
	s.subs[sub.UserID] = *sub
	return nil
}

func (s *memState) listSubscriptions(f SubscriptionFilter) []Subscription {
	var out []Subscription
	for _, sub := range s.subs {
		if f.Status != "" && sub.Status != f.Status {
			continue
		}
		if !f.EndBefore.IsZero() && !sub.EndDate.Before(f.EndBefore) {
			continue
		}
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b Subscription) int {
		if c := a.EndDate.Compare(b.EndDate); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (s *memState) getUsage(userID uuid.UUID) (*Usage, error) {
	u, ok := s.usage[userID]
	if !ok {
		return nil, ErrUsageNotFound
	}
	return &u, nil
}

func (s *memState) ensureUsage(userID uuid.UUID, now time.Time) {
	if _, ok := s.usage[userID]; !ok {
		s.usage[userID] = Usage{UserID: userID, LastReset: now}
	}
}

func (s *memState) incrementUsage(userID uuid.UUID, res Resource, limit int64, now time.Time) bool {
	s.ensureUsage(userID, now)
	u := s.usage[userID]
	if !WithinLimit(limit, u.Count(res)) {
		return false
	}
	u.Add(res, 1)
	s.usage[userID] = u
	return true
}

func (s *memState) decrementUsage(userID uuid.UUID, res Resource) {
	if u, ok := s.usage[userID]; ok {
		u.Add(res, -1)
		s.usage[userID] = u
	}
}

func (s *memState) resetUsage(userID uuid.UUID, now time.Time) error {
	u, ok := s.usage[userID]
	if !ok {
		return ErrUsageNotFound
	}
	u.Reset(now)
	s.usage[userID] = u
	return nil
}

func (s *memState) resetUsageBefore(cutoff, now time.Time) int {
	var n int
	for id, u := range s.usage {
		if u.LastReset.Before(cutoff) {
			u.Reset(now)
			s.usage[id] = u
			n++
		}
	}
	return n
}

func (s *memState) getPayment(ref string) (*Payment, error) {
	p, ok := s.payments[ref]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (s *memState) createPayment(p *Payment) error {
	if _, ok := s.payments[p.ExternalRef]; ok {
		return ErrDuplicatePayment
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.payments[p.ExternalRef] = *p
	return nil
}

func (s *memState) updatePayment(p *Payment) error {
	if _, ok := s.payments[p.ExternalRef]; !ok {
		return ErrPaymentNotFound
	}
	s.payments[p.ExternalRef] = *p
	return nil
}

func (s *memState) listPayments(userID uuid.UUID, limit int) []Payment {
	var out []Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Payment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memState) deleteReminders(userID, subID uuid.UUID) {
	for id, r := range s.reminders {
		if r.UserID == userID && r.SubscriptionID == subID {
			delete(s.reminders, id)
		}
	}
}

func (s *memState) findReminder(k reminderKey) (uuid.UUID, bool) {
	for id, r := range s.reminders {
		if (reminderKey{r.UserID, r.SubscriptionID, r.Type}) == k {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (s *memState) createReminder(r *Reminder) error {
	if _, ok := s.findReminder(reminderKey{r.UserID, r.SubscriptionID, r.Type}); ok {
		return ErrReminderExists
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.reminders[r.ID] = *r
	return nil
}

func (s *memState) upsertReminder(r *Reminder) {
	if id, ok := s.findReminder(reminderKey{r.UserID, r.SubscriptionID, r.Type}); ok {
		cur := s.reminders[id]
		cur.ScheduledAt = r.ScheduledAt
		cur.Sent = false
		cur.SentAt = nil
		s.reminders[id] = cur
		r.ID = id
		return
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.reminders[r.ID] = *r
}

func (s *memState) listReminders(subID uuid.UUID) []Reminder {
	var out []Reminder
	for _, r := range s.reminders {
		if r.SubscriptionID == subID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Reminder) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	return out
}

func (s *memState) listDueReminders(now time.Time, limit int) []Reminder {
	var out []Reminder
	for _, r := range s.reminders {
		if !r.Sent && !r.ScheduledAt.After(now) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Reminder) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *memState) markReminderSent(id uuid.UUID, at time.Time) error {
	r, ok := s.reminders[id]
	if !ok {
		return ErrReminderNotFound
	}
	r.Sent = true
	r.SentAt = &at
	s.reminders[id] = r
	return nil
}
