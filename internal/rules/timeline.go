// Package rules implements the rule engine: a shared min-heap timeline
// of TBR firings, SBR evaluations, and suspended execution records,
// driven by a single worker goroutine that sleeps until the earliest
// entry's time and wakes early when the timeline changes.
//
// Grounded in the teacher's kernel/lifecycle.go container/heap
// priorityQueue, adapted verbatim in shape: the heap key becomes the
// next-eval time instead of a SchedulingPriority, and entries carry a
// Kind discriminator (TBR, SBR, SuspendedTime, or SuspendedCond) instead of a PID
// alone.
package rules

import (
	"container/heap"
	"time"

	"github.com/dtn-amp/agent/internal/exec"
)

// EntryKind discriminates what a timeline entry represents.
type EntryKind uint8

const (
	KindTBR EntryKind = iota
	KindSBR
	KindSuspendedTime
	KindSuspendedCond
)

// entry is one scheduled timeline item.
type entry struct {
	kind EntryKind
	at   time.Time

	// TBR/SBR identify the rule object by path string (ari.ObjectPath
	// stringifies uniquely enough for map keys within one agent).
	ruleKey string

	// pid identifies a suspended execution record.
	pid exec.PID

	index int // heap.Interface bookkeeping
}

// timelineHeap implements container/heap.Interface, min-ordered by at.
type timelineHeap []*entry

func (h timelineHeap) Len() int            { return len(h) }
func (h timelineHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timelineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timelineHeap) Push(x any) {
	n := len(*h)
	e := x.(*entry)
	e.index = n
	*h = append(*h, e)
}

func (h *timelineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[0 : n-1]
	return e
}

func (h timelineHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// removeRule deletes every entry with the given ruleKey (a rule is never
// scheduled twice, but re-insertion after a fire first removes any
// stale entry defensively).
func (h *timelineHeap) removeRule(key string) {
	for i := 0; i < len(*h); i++ {
		if (*h)[i].ruleKey == key {
			heap.Remove(h, i)
			i--
		}
	}
}

func (h *timelineHeap) removePID(pid exec.PID) {
	for i := 0; i < len(*h); i++ {
		if (*h)[i].pid == pid {
			heap.Remove(h, i)
			i--
		}
	}
}
