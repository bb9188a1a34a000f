package engine

import (
	"sort"

	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// cycleResult summarizes the mutations of one diff pass.
type cycleResult struct {
	// pushes holds one device push per newly classified transition.
	pushes []domain.PushNotification
	// dispatched holds the feed records (post-synthesis or post-rewrite) that
	// correspond to classified transitions, for the archive.
	dispatched []domain.NotificationRecord
	appended   int
	rewritten  int
}

// applyLocked runs the diff algorithm over one consistent fetched snapshot
// set. Caller holds e.mu.
//
// Per snapshot, in order: the variant's new-condition check, the
// status-change check, the unconditional ledger advance, and the corrective
// rewrite for unclassified divergence. After all snapshots: marker update,
// feed prepend + cap, ledger prune.
func (e *Engine) applyLocked(snaps []domain.OrderSnapshot, now time.Time) cycleResult {
	var res cycleResult
	var fresh []domain.NotificationRecord

	st := &e.st
	for _, snap := range snaps {
		if snap.OrderID == "" {
			continue
		}
		prior, seen := st.Ledger[snap.OrderID]

		var classified domain.NotificationType

		// New-condition check.
		if e.rules.TrackAssignments {
			if !st.Assigned[snap.OrderID] && !snap.Status.Terminal() {
				classified = domain.NotifyNewAssignment
				st.Assigned[snap.OrderID] = true
			}
		} else if !seen && snap.CreatedAt.After(st.LastCheck) {
			classified = domain.NotifyNewOrder
		}

		// Status-change check. Intermediate transitions advance the ledger
		// silently; only terminal arrivals are surfaced.
		if seen && prior != snap.Status {
			switch {
			case snap.Status == domain.StatusCancelled || snap.Status == domain.StatusRefunded:
				classified = domain.NotifyCancelled
			case snap.Status == domain.StatusDelivered &&
				(!e.rules.DeliveredRequiresHandoff || prior == domain.StatusOutForDelivery):
				classified = domain.NotifyDelivered
			}
		}

		// The ledger always advances, so a given transition is classified at
		// most once, at the instant it is first observed.
		st.Ledger[snap.OrderID] = snap.Status

		if classified != "" {
			rec := e.recordForTransition(classified, snap, now)
			if idx := findRecord(st.Feed, snap.OrderID); idx >= 0 {
				// An existing record for this order absorbs the transition in
				// place: the feed is a current-state cache, not an audit log.
				// The archive gets the fresh record, whose id is distinct per
				// cycle, so every dispatch occurrence keeps its own row even
				// when the feed rewrote an earlier one.
				rewriteRecord(&st.Feed[idx], rec)
				res.dispatched = append(res.dispatched, rec)
				res.rewritten++
			} else {
				fresh = append(fresh, rec)
				res.dispatched = append(res.dispatched, rec)
				res.appended++
			}
			res.pushes = append(res.pushes, domain.PushNotification{
				Title: rec.Title,
				Body:  rec.Message,
				Data: domain.PushData{
					Type:         classified,
					OrderID:      snap.OrderID,
					TargetScreen: e.rules.TargetScreen,
				},
			})
			if e.rules.AttentionTypes[classified] {
				st.Attention++
			}
			continue
		}

		// Corrective rewrite: converge stale records toward authoritative
		// state without re-emitting and without touching read flags.
		if idx := findRecord(st.Feed, snap.OrderID); idx >= 0 {
			if correctRecord(&st.Feed[idx], snap) {
				res.rewritten++
			}
		}
	}

	st.LastCheck = now

	if len(fresh) > 0 {
		// Newest first within the batch, then ahead of the existing feed.
		sort.SliceStable(fresh, func(i, j int) bool {
			return fresh[i].Timestamp.After(fresh[j].Timestamp)
		})
		st.Feed = append(fresh, st.Feed...)
	}
	if len(st.Feed) > e.rules.FeedCap {
		st.Feed = st.Feed[:e.rules.FeedCap]
	}

	e.pruneLedgerLocked(snaps)

	return res
}

// pruneLedgerLocked bounds the ledger (and assignment set) to a trailing
// window. Orders still present in the fetched set are always kept; beyond
// that, terminal entries are evicted first since they can never be classified
// again.
func (e *Engine) pruneLedgerLocked(snaps []domain.OrderSnapshot) {
	st := &e.st
	if len(st.Ledger) <= e.rules.LedgerCap {
		return
	}

	current := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		current[s.OrderID] = true
	}

	evict := func(terminalOnly bool) {
		for id, status := range st.Ledger {
			if len(st.Ledger) <= e.rules.LedgerCap {
				return
			}
			if current[id] {
				continue
			}
			if terminalOnly && !status.Terminal() {
				continue
			}
			delete(st.Ledger, id)
			delete(st.Assigned, id)
		}
	}
	evict(true)
	evict(false)
}

// findRecord returns the index of the newest feed record for the order, or -1.
func findRecord(feed []domain.NotificationRecord, orderID string) int {
	for i := range feed {
		if feed[i].OrderID == orderID {
			return i
		}
	}
	return -1
}

// rewriteRecord applies a classified transition to an existing record in
// place. ID, timestamp and read flag are preserved so the feed position and
// the unread count stay stable.
func rewriteRecord(dst *domain.NotificationRecord, src domain.NotificationRecord) {
	dst.Type = src.Type
	dst.Title = src.Title
	dst.Message = src.Message
	dst.Icon = src.Icon
	dst.Color = src.Color
	dst.Amount = src.Amount
	dst.Address = src.Address
}

// correctRecord reconciles a record with a snapshot whose status diverged
// without producing a classification (e.g. state observed after a restart
// where the ledger was already terminal). Returns true when anything changed.
func correctRecord(rec *domain.NotificationRecord, snap domain.OrderSnapshot) bool {
	changed := false

	if want, ok := terminalType(snap.Status); ok && rec.Type != want {
		title, message := renderTemplate(want, snap)
		rec.Type = want
		rec.Title = title
		rec.Message = message
		rec.Icon = iconFor(want)
		rec.Color = colorFor(want)
		changed = true
	}
	if snap.TotalAmount != 0 && rec.Amount != snap.TotalAmount {
		rec.Amount = snap.TotalAmount
		changed = true
	}
	if snap.Address != "" && rec.Address != snap.Address {
		rec.Address = snap.Address
		changed = true
	}
	return changed
}

// terminalType maps a terminal status to the record type that encodes it.
func terminalType(s domain.OrderStatus) (domain.NotificationType, bool) {
	switch s {
	case domain.StatusCancelled, domain.StatusRefunded:
		return domain.NotifyCancelled, true
	case domain.StatusDelivered:
		return domain.NotifyDelivered, true
	}
	return "", false
}
