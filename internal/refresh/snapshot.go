package refresh

import "time"

// Snapshot is one published view of a store, partitioned by name. A snapshot
// is never mutated after it is published; a refresh replaces it as a whole.
type Snapshot[T any] struct {
	Partitions map[string][]T `json:"partitions"`
	Order      []string       `json:"order"`
	FetchedAt  time.Time      `json:"fetched_at"`
	Generation uint64         `json:"generation"`
}

// Partition returns the records of one partition. Nil-safe.
func (s *Snapshot[T]) Partition(name string) []T {
	if s == nil {
		return nil
	}
	return s.Partitions[name]
}

// All returns every record, partitions concatenated in Order.
func (s *Snapshot[T]) All() []T {
	if s == nil {
		return nil
	}
	out := make([]T, 0, s.Len())
	for _, name := range s.Order {
		out = append(out, s.Partitions[name]...)
	}
	return out
}

// Len returns the total number of records across partitions.
func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, items := range s.Partitions {
		n += len(items)
	}
	return n
}

// State is the observable refresh status of a Loader.
type State struct {
	Refreshing          bool
	Loading             bool
	LastError           error
	LastAttempt         time.Time
	LastSuccess         time.Time
	ConsecutiveFailures int
	FromCache           bool
}
