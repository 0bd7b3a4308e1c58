// Package store owns the durable subscriber state: one JSON snapshot
// file mapping recipient id to subscription record. All mutations go
// through the Store and are persisted before returning; callers never
// touch internal state directly.
package store

import (
	"fmt"
	"sort"
	"time"

	"pushbot/pkg/logx"
)

// Known preference flags and their defaults for new subscribers.
// Flags absent from a record read as false.
const (
	PrefDailyRecommendation = "dailyRecommendation"
	PrefPromotions          = "promotions"
	PrefPriceAlert          = "priceAlert"
	PrefNewProducts         = "newProducts"
	PrefWeeklyReport        = "weeklyReport"
)

func defaultPreferences() map[string]bool {
	return map[string]bool{
		PrefDailyRecommendation: true,
		PrefPromotions:          true,
		PrefPriceAlert:          false,
		PrefNewProducts:         false,
		PrefWeeklyReport:        false,
	}
}

// KnownFlag reports whether name is a recognized preference flag.
func KnownFlag(name string) bool {
	_, ok := defaultPreferences()[name]
	return ok
}

// Subscriber is one recipient's subscription record.
type Subscriber struct {
	RecipientID int64           `json:"recipientId"`
	OwnerID     int64           `json:"ownerId"`
	JoinedAt    time.Time       `json:"joinedAt"`
	Preferences map[string]bool `json:"preferences"`
	Active      bool            `json:"active"`
	LastError   string          `json:"lastError,omitempty"`
}

// Pref reads a preference flag. Flags not present in the record are
// false.
func (s Subscriber) Pref(name string) bool {
	return s.Preferences[name]
}

func (s Subscriber) clone() Subscriber {
	cp := s
	cp.Preferences = make(map[string]bool, len(s.Preferences))
	for k, v := range s.Preferences {
		cp.Preferences[k] = v
	}
	return cp
}

// Predicate filters subscribers for targeting. A nil predicate matches
// everything.
type Predicate func(s Subscriber) bool

// PrefEnabled matches subscribers that have the given flag switched on.
func PrefEnabled(flag string) Predicate {
	return func(s Subscriber) bool { return s.Pref(flag) }
}

// IOError wraps a snapshot read or write failure. The in-memory state
// is ahead of the durable state when a save fails; callers log it for
// operator attention, the process keeps running.
type IOError struct {
	Op   string // "load" or "save"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Add creates or overwrites the record for recipientID. Re-subscribing
// resets the record: active=true, defaults re-applied, then overrides.
// Idempotent by recipient.
func (st *Store) Add(recipientID, ownerID int64, overrides map[string]bool) (Subscriber, error) {
	prefs := defaultPreferences()
	for k, v := range overrides {
		prefs[k] = v
	}
	sub := Subscriber{
		RecipientID: recipientID,
		OwnerID:     ownerID,
		JoinedAt:    time.Now().UTC(),
		Preferences: prefs,
		Active:      true,
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.subs[recipientID] = sub
	err := st.saveLocked()
	st.log.Info("subscriber added",
		logx.Int64("recipient_id", recipientID),
		logx.Int64("owner_id", ownerID))
	return sub.clone(), err
}

// Remove deletes the record if present and reports whether one existed.
func (st *Store) Remove(recipientID int64) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.subs[recipientID]; !ok {
		return false, nil
	}
	delete(st.subs, recipientID)
	err := st.saveLocked()
	st.log.Info("subscriber removed", logx.Int64("recipient_id", recipientID))
	return true, err
}

// UpdatePreferences merges partial flags into the existing preferences.
// Returns false without persisting when the recipient is absent.
func (st *Store) UpdatePreferences(recipientID int64, partial map[string]bool) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sub, ok := st.subs[recipientID]
	if !ok {
		return false, nil
	}
	if sub.Preferences == nil {
		sub.Preferences = map[string]bool{}
	}
	for k, v := range partial {
		sub.Preferences[k] = v
	}
	st.subs[recipientID] = sub
	return true, st.saveLocked()
}

// Deactivate marks the recipient inactive and records the reason.
// Idempotent; unknown recipients are a no-op.
func (st *Store) Deactivate(recipientID int64, reason string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	sub, ok := st.subs[recipientID]
	if !ok {
		return nil
	}
	sub.Active = false
	sub.LastError = reason
	st.subs[recipientID] = sub
	err := st.saveLocked()
	st.log.Warn("subscriber deactivated",
		logx.Int64("recipient_id", recipientID),
		logx.String("reason", reason))
	return err
}

// Get returns a copy of the record.
func (st *Store) Get(recipientID int64) (Subscriber, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sub, ok := st.subs[recipientID]
	if !ok {
		return Subscriber{}, false
	}
	return sub.clone(), true
}

// ListActive returns copies of all active records matching pred (nil
// matches all), ordered by recipient id so one call sees a stable
// sequence. The result is a snapshot; later mutations don't affect it.
func (st *Store) ListActive(pred Predicate) []Subscriber {
	st.mu.RLock()
	out := make([]Subscriber, 0, len(st.subs))
	for _, sub := range st.subs {
		if !sub.Active {
			continue
		}
		if pred != nil && !pred(sub) {
			continue
		}
		out = append(out, sub.clone())
	}
	st.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out
}

// Counts returns the total and active record counts.
func (st *Store) Counts() (total, active int) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	total = len(st.subs)
	for _, sub := range st.subs {
		if sub.Active {
			active++
		}
	}
	return total, active
}
