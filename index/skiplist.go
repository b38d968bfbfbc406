package index

import (
	"math/rand"
	"time"
)

type skipList struct {
	maxLevel int
	p        float64
	level    int
	rand     *rand.Rand
	length   int
	head     *element
}

type element struct {
	key  string
	loc  Location
	next []*element
}

func newSkipList(maxLevel int, p float64) *skipList {
	return &skipList{
		maxLevel: maxLevel,
		p:        p,
		level:    1,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		head: &element{
			next: make([]*element, maxLevel),
		},
	}
}

// findPredecessors fills update with the rightmost element before key on every level
// and returns the element on level 0 that may hold key.
func (s *skipList) findPredecessors(key string, update []*element) *element {
	curr := s.head
	for i := s.level - 1; i >= 0; i-- {
		for curr.next[i] != nil && curr.next[i].key < key {
			curr = curr.next[i]
		}
		if update != nil {
			update[i] = curr
		}
	}
	return curr.next[0]
}

func (s *skipList) set(key string, loc Location) (Location, bool) {
	update := make([]*element, s.maxLevel)
	next := s.findPredecessors(key, update)

	if next != nil && next.key == key {
		prev := next.loc
		next.loc = loc
		return prev, true
	}

	level := s.randomLevel()
	if level > s.level {
		for i := s.level; i < level; i++ {
			update[i] = s.head
		}
		s.level = level
	}

	e := &element{
		key:  key,
		loc:  loc,
		next: make([]*element, level),
	}
	for i := 0; i < level; i++ {
		e.next[i] = update[i].next[i]
		update[i].next[i] = e
	}
	s.length++
	return Location{}, false
}

func (s *skipList) get(key string) (Location, bool) {
	e := s.findPredecessors(key, nil)
	if e != nil && e.key == key {
		return e.loc, true
	}
	return Location{}, false
}

func (s *skipList) delete(key string) (Location, bool) {
	update := make([]*element, s.maxLevel)
	e := s.findPredecessors(key, update)
	if e == nil || e.key != key {
		return Location{}, false
	}

	for i := 0; i < len(e.next); i++ {
		if update[i].next[i] == e {
			update[i].next[i] = e.next[i]
		}
	}
	for s.level > 1 && s.head.next[s.level-1] == nil {
		s.level--
	}
	s.length--
	return e.loc, true
}

func (s *skipList) each(fn func(key string, loc Location) bool) {
	for curr := s.head.next[0]; curr != nil; curr = curr.next[0] {
		if !fn(curr.key, curr.loc) {
			return
		}
	}
}

func (s *skipList) randomLevel() int {
	level := 1
	for s.rand.Float64() < s.p && level < s.maxLevel {
		level++
	}
	return level
}
