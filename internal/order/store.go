package order

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

const (
	// UserHistoryLimit caps each per-user history; oldest evicted first.
	UserHistoryLimit = 20

	// FeedLimit caps the global recent-orders feed.
	FeedLimit = 50
)

// StatusKind selects which lifecycle field SetStatus mutates.
type StatusKind string

const (
	KindShipping StatusKind = "shipping"
	KindPayment  StatusKind = "payment"
)

// Store holds the per-user order histories and the global feed. Process-wide
// mutable state guarded by one mutex; the feed is durably written through
// the FeedStore after every mutation, best-effort.
type Store struct {
	mu        sync.Mutex
	feedStore FeedStore
	feed      []Record
	histories map[string][]Record
}

// NewStore loads the persisted feed. An absent or corrupt feed is treated
// as empty; the failure is logged, never fatal.
func NewStore(feedStore FeedStore) *Store {
	s := &Store{
		feedStore: feedStore,
		histories: make(map[string][]Record),
	}
	if feedStore != nil {
		feed, err := feedStore.Load()
		if err != nil {
			slog.Warn("could not load orders feed", "error", err)
		} else {
			if len(feed) > FeedLimit {
				feed = feed[:FeedLimit]
			}
			s.feed = feed
		}
	}
	return s
}

// historyKey derives the per-user bucket key: user id when present, else
// email. Anonymous orders have no durable history.
func historyKey(userID int64, email string) string {
	if userID != 0 {
		return fmt.Sprintf("id:%d", userID)
	}
	if email != "" {
		return "email:" + strings.ToLower(email)
	}
	return ""
}

// Record prepends the order to the owner's history and to the global feed,
// evicting the oldest entries past the caps, then persists the feed.
func (s *Store) Record(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key := historyKey(rec.Customer.UserID, rec.Customer.Email); key != "" {
		history := append([]Record{cloneRecord(rec)}, s.histories[key]...)
		if len(history) > UserHistoryLimit {
			history = history[:UserHistoryLimit]
		}
		s.histories[key] = history
	}

	s.feed = append([]Record{cloneRecord(rec)}, s.feed...)
	if len(s.feed) > FeedLimit {
		s.feed = s.feed[:FeedLimit]
	}
	s.persistFeedLocked()
}

// HistoryFor returns a copy of the user's recorded orders, newest first.
func (s *Store) HistoryFor(userID int64, email string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(userID, email)
	if key == "" {
		return nil
	}
	return cloneRecords(s.histories[key])
}

// MergeForUser combines the user's history, their session history, and any
// feed orders matching their id or email, deduplicated by invoice number
// and sorted most-recent-first.
func (s *Store) MergeForUser(userID int64, email string, sessionHistory []Record) []Record {
	merged := s.HistoryFor(userID, email)
	if len(merged) == 0 {
		merged = cloneRecords(sessionHistory)
	}

	s.mu.Lock()
	for _, rec := range s.feed {
		emailMatch := email != "" && strings.EqualFold(rec.Customer.Email, email)
		idMatch := userID != 0 && rec.Customer.UserID == userID
		if emailMatch || idMatch {
			merged = append(merged, cloneRecord(rec))
		}
	}
	s.mu.Unlock()

	return dedupeSorted(merged, 0)
}

// Recent returns the newest orders across all users for admin visibility.
// Per-user histories are folded in to cover orders recorded while the feed
// was unavailable.
func (s *Store) Recent(limit int) []Record {
	if limit <= 0 {
		limit = 5
	}

	s.mu.Lock()
	combined := cloneRecords(s.feed)
	for _, history := range s.histories {
		combined = append(combined, cloneRecords(history)...)
	}
	s.mu.Unlock()

	return dedupeSorted(combined, limit)
}

// SetStatus locates an order by invoice number (case-insensitive) across
// the feed and every history bucket and updates the matching status field
// and timestamp on every occurrence. Reports whether anything matched.
func (s *Store) SetStatus(orderKey, status string, kind StatusKind) bool {
	if orderKey == "" {
		return false
	}
	target := strings.ToLower(orderKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := false
	for i := range s.feed {
		if applyStatus(&s.feed[i], target, status, kind) {
			updated = true
		}
	}
	for key, history := range s.histories {
		for i := range history {
			if applyStatus(&history[i], target, status, kind) {
				updated = true
			}
		}
		s.histories[key] = history
	}

	if updated {
		s.persistFeedLocked()
	}
	return updated
}

func applyStatus(rec *Record, target, status string, kind StatusKind) bool {
	if strings.ToLower(rec.InvoiceNumber) != target {
		return false
	}
	now := nowUTC()
	if kind == KindPayment {
		rec.PaymentStatus = status
		rec.PaymentUpdatedAt = now
	} else {
		rec.ShippingStatus = status
		rec.ShippingUpdatedAt = now
	}
	return true
}

// persistFeedLocked writes the feed wholesale. Failures are logged, never
// raised: feed durability must not block the user flow.
func (s *Store) persistFeedLocked() {
	if s.feedStore == nil {
		return
	}
	if err := s.feedStore.Save(cloneRecords(s.feed)); err != nil {
		slog.Warn("could not save orders feed", "error", err)
	}
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, cloneRecord(rec))
	}
	return out
}

// dedupeSorted deduplicates by invoice number (first occurrence wins) and
// sorts most-recent-first. limit 0 means unbounded.
func dedupeSorted(records []Record, limit int) []Record {
	seen := make(map[string]bool, len(records))
	unique := make([]Record, 0, len(records))
	for _, rec := range records {
		key := strings.ToLower(rec.InvoiceNumber)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, rec)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].PlacedAt.After(unique[j].PlacedAt)
	})

	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
