// Package queue holds the pending notification queue and its reconciliation
// against feed snapshots.
package queue

import (
	"container/list"

	"github.com/jmylchreest/nudge/internal/model"
)

// Queue is an ordered list of notifications waiting for display.
// It is not safe for concurrent use; the owning session serialises access.
type Queue struct {
	items *list.List               // of model.Notification, oldest first
	index map[string]*list.Element // id -> element
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		items: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Len returns the number of pending notifications.
func (q *Queue) Len() int {
	return q.items.Len()
}

// Contains reports whether id is pending.
func (q *Queue) Contains(id string) bool {
	_, ok := q.index[id]
	return ok
}

// PushBack appends n unless its id is already pending.
// Returns false if it was a duplicate.
func (q *Queue) PushBack(n model.Notification) bool {
	if _, exists := q.index[n.ID]; exists {
		return false
	}
	q.index[n.ID] = q.items.PushBack(n)
	return true
}

// PopFront removes and returns the head of the queue.
func (q *Queue) PopFront() (model.Notification, bool) {
	elem := q.items.Front()
	if elem == nil {
		return model.Notification{}, false
	}
	n := q.items.Remove(elem).(model.Notification)
	delete(q.index, n.ID)
	return n, true
}

// Remove drops id from the queue if present.
func (q *Queue) Remove(id string) bool {
	elem, exists := q.index[id]
	if !exists {
		return false
	}
	q.items.Remove(elem)
	delete(q.index, id)
	return true
}

// IDs returns the pending ids in display order.
func (q *Queue) IDs() []string {
	ids := make([]string, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(model.Notification).ID)
	}
	return ids
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.items.Init()
	q.index = make(map[string]*list.Element)
}
