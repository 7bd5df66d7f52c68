// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"net"
	"time"

	"github.com/bluele/gcache"
)

// pendingQuery is a client query waiting for upstream answers.
type pendingQuery struct {
	// source is the address of the original requester.
	source net.Addr

	// response starts as a copy of the query and accumulates answers.
	response *Message

	// answered tracks which questions already received an answer.
	answered []bool

	created time.Time

	// settled is set once the entry leaves the table on purpose, either
	// because the response was sent or because a newer query replaced it.
	settled bool
}

// match returns the index of the first unanswered question the given
// upstream response answers. A response without question section is
// attributed to the first unanswered question.
func (pq *pendingQuery) match(resp *Message) (int, bool) {
	for idx, q := range pq.response.Questions {
		if pq.answered[idx] {
			continue
		}
		if len(resp.Questions) == 0 {
			return idx, true
		}
		r := resp.Questions[0]
		if responseEqualASCIIName(q.Name, r.Name) && q.Type == r.Type && q.Class == r.Class {
			return idx, true
		}
	}
	return 0, false
}

// pendingTable maps transaction IDs to pending queries. Entries live at
// most ttl and the table holds at most size entries, evicting the least
// recently used one when full.
type pendingTable struct {
	cache gcache.Cache

	// onDrop is called for entries leaving the table unanswered.
	onDrop func(id uint16, pq *pendingQuery)
}

func newPendingTable(size int, ttl time.Duration, clock gcache.Clock, onDrop func(uint16, *pendingQuery)) *pendingTable {
	t := &pendingTable{onDrop: onDrop}
	t.cache = gcache.New(size).
		LRU().
		Expiration(ttl).
		Clock(clock).
		EvictedFunc(t.evicted).
		Build()
	return t
}

// evicted runs with the cache lock held and must not use the cache.
func (t *pendingTable) evicted(key, value interface{}) {
	pq := value.(*pendingQuery)
	if pq.settled {
		return
	}
	pq.settled = true
	if t.onDrop != nil {
		t.onDrop(key.(uint16), pq)
	}
}

func (t *pendingTable) lookup(id uint16) (*pendingQuery, bool) {
	value, err := t.cache.GetIFPresent(id)
	if err != nil {
		return nil, false
	}
	return value.(*pendingQuery), true
}

func (t *pendingTable) store(id uint16, pq *pendingQuery) error {
	return t.cache.Set(id, pq)
}

func (t *pendingTable) remove(id uint16) {
	if pq, ok := t.lookup(id); ok {
		pq.settled = true
	}
	t.cache.Remove(id)
}

// sweep drops the expired entries and returns how many were dropped.
func (t *pendingTable) sweep() int {
	before := t.cache.Len(false)
	for _, key := range t.cache.Keys(false) {
		// Looking up an expired entry removes it.
		_, _ = t.cache.GetIFPresent(key)
	}
	return before - t.cache.Len(false)
}

func (t *pendingTable) count() int {
	return t.cache.Len(false)
}
