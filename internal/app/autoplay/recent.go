package autoplay

// RecentSet is a bounded set of track identifiers with ring-buffer
// eviction: once capacity is exceeded the oldest-inserted entry is evicted.
// Membership checks do not refresh insertion order.
type RecentSet struct {
	capacity int
	order    []string
	members  map[string]bool
}

// NewRecentSet creates a RecentSet with the given capacity.
func NewRecentSet(capacity int) *RecentSet {
	if capacity < 1 {
		capacity = 1
	}
	return &RecentSet{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		members:  make(map[string]bool, capacity),
	}
}

// Add inserts an identifier, evicting the oldest entry when full. Adding an
// identifier that is already present is a no-op.
func (s *RecentSet) Add(id string) {
	if id == "" || s.members[id] {
		return
	}

	if len(s.order) >= s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.members, oldest)
	}

	s.order = append(s.order, id)
	s.members[id] = true
}

// Contains reports whether the identifier is in the set.
func (s *RecentSet) Contains(id string) bool {
	return s.members[id]
}

// Len returns the number of identifiers currently held.
func (s *RecentSet) Len() int {
	return len(s.order)
}
