package routing

import "github.com/nextlevelbuilder/agentchat/internal/markers"

// SelectNext picks the next routing item and moves it to executing.
// Returns false when nothing is pending.
//
// Discipline:
//  1. Any pending P1 preempts everything, oldest first, and resets the
//     local-consecutive counter.
//  2. Items local to the last completed message run next, capped at
//     MaxLocalSeq consecutive picks so a deep branch cannot starve the rest.
//  3. Otherwise the oldest global item by intent priority (P2 before P3).
func (q *Queue) SelectNext() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Item{}, false
	}

	// 1. P1 preemption: an interrupt must fire.
	if idx := q.oldestWithIntentLocked(markers.IntentInterrupt); idx >= 0 {
		q.localConsecutive = 0
		return q.takeLocked(idx), true
	}

	// 2. Local preference while under the anti-starvation cap.
	localIdx := q.oldestLocalLocked()
	if localIdx >= 0 && q.localConsecutive < q.cfg.MaxLocalSeq {
		q.localConsecutive++
		return q.takeLocked(localIdx), true
	}

	// 3. Global pick by intent priority, then FIFO.
	if idx := q.oldestGlobalLocked(); idx >= 0 {
		q.localConsecutive = 0
		return q.takeLocked(idx), true
	}

	// Only local items remain and the cap is hit with no global work to
	// interleave: keep draining the local branch.
	q.localConsecutive++
	return q.takeLocked(localIdx), true
}

func (q *Queue) oldestWithIntentLocked(intent markers.Intent) int {
	best := -1
	for i := range q.pending {
		if q.pending[i].Intent != intent {
			continue
		}
		if best < 0 || q.pending[i].seq < q.pending[best].seq {
			best = i
		}
	}
	return best
}

func (q *Queue) oldestLocalLocked() int {
	best := -1
	for i := range q.pending {
		if q.pending[i].ParentMessageID != q.lastCompletedMessageID {
			continue
		}
		if best < 0 || q.pending[i].seq < q.pending[best].seq {
			best = i
		}
	}
	return best
}

func (q *Queue) oldestGlobalLocked() int {
	best := -1
	for i := range q.pending {
		it := &q.pending[i]
		if it.ParentMessageID == q.lastCompletedMessageID {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		b := &q.pending[best]
		if it.Intent.Priority() < b.Intent.Priority() ||
			(it.Intent.Priority() == b.Intent.Priority() && it.seq < b.seq) {
			best = i
		}
	}
	return best
}

func (q *Queue) takeLocked(idx int) Item {
	item := q.pending[idx]
	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	q.executing[item.ID] = item
	return item
}
