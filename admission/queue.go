/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

package admission

import "container/heap"

// queuedRequest is a RequestContext waiting for a slot.
// seq preserves FIFO order between requests of the same priority
// enqueued within one timestamp granule.
type queuedRequest struct {
	ctx *RequestContext
	seq uint64
}

// requestQueue is a priority queue of waiting requests ordered by
// (priority rank, enqueue time, enqueue sequence).
type requestQueue struct {
	items []*queuedRequest
}

var _ heap.Interface = (*requestQueue)(nil)

func (q *requestQueue) Len() int { return len(q.items) }

func (q *requestQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.ctx.Priority != b.ctx.Priority {
		return a.ctx.Priority < b.ctx.Priority
	}
	if !a.ctx.EnqueuedAt.Equal(b.ctx.EnqueuedAt) {
		return a.ctx.EnqueuedAt.Before(b.ctx.EnqueuedAt)
	}
	return a.seq < b.seq
}

func (q *requestQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *requestQueue) Push(x interface{}) {
	q.items = append(q.items, x.(*queuedRequest))
}

func (q *requestQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

func (q *requestQueue) push(ctx *RequestContext, seq uint64) {
	heap.Push(q, &queuedRequest{ctx: ctx, seq: seq})
}

// pop removes and returns the highest-priority, earliest-enqueued request.
func (q *requestQueue) pop() (*RequestContext, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return heap.Pop(q).(*queuedRequest).ctx, true
}

// removeWhere removes every queued request matching the predicate and
// returns the removed contexts. The heap is rebuilt afterward.
func (q *requestQueue) removeWhere(pred func(ctx *RequestContext) bool) []*RequestContext {
	var removed []*RequestContext
	kept := q.items[:0]
	for _, item := range q.items {
		if pred(item.ctx) {
			removed = append(removed, item.ctx)
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = nil
	}
	q.items = kept
	if len(removed) != 0 {
		heap.Init(q)
	}
	return removed
}
