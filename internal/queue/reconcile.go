package queue

import (
	"sort"
	"time"

	"github.com/jmylchreest/nudge/internal/model"
)

// Options carries the state a merge is checked against.
type Options struct {
	UserID      string      // Only this user's notifications are admitted ("" = any)
	DisplayedID string      // Id currently on screen, if any
	Tombstones  *Tombstones // Recently dismissed ids (may be nil)
	Now         time.Time   // Reference time for tombstone expiry
}

// Result summarises what a merge did.
type Result struct {
	Added      []string // Ids appended, in the order they were appended
	Known      int      // Already pending, displayed or recently dismissed
	Ineligible int      // Read, dismissed, foreign user or missing id
	Pruned     int      // Tombstones forgotten
}

// Reconcile merges a full feed snapshot into q.
//
// Snapshot items whose id is not pending, not displayed and not recently
// dismissed are appended to the tail in creation-time order; the existing
// pending order is never changed. Running it twice with the same snapshot
// leaves q unchanged the second time.
func Reconcile(q *Queue, snapshot []model.Notification, opts Options) Result {
	var res Result

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	present := make(map[string]bool, len(snapshot))
	novel := make([]model.Notification, 0, len(snapshot))

	for i := range snapshot {
		n := snapshot[i]
		if n.ID == "" {
			res.Ineligible++
			continue
		}
		if !n.Pending() || (opts.UserID != "" && n.UserID != opts.UserID) {
			res.Ineligible++
			continue
		}
		present[n.ID] = true

		if q.Contains(n.ID) || n.ID == opts.DisplayedID ||
			(opts.Tombstones != nil && opts.Tombstones.Contains(n.ID, now)) {
			res.Known++
			continue
		}

		novel = append(novel, n)
	}

	// Snapshots are not guaranteed to be stably ordered across deliveries.
	sort.SliceStable(novel, func(i, j int) bool {
		if novel[i].CreatedAt.Equal(novel[j].CreatedAt) {
			return novel[i].ID < novel[j].ID
		}
		return novel[i].CreatedAt.Before(novel[j].CreatedAt)
	})

	for _, n := range novel {
		// PushBack also drops duplicates within the snapshot itself.
		if q.PushBack(n.Clone()) {
			res.Added = append(res.Added, n.ID)
		} else {
			res.Known++
		}
	}

	if opts.Tombstones != nil {
		res.Pruned = opts.Tombstones.Prune(present, now)
	}

	return res
}
