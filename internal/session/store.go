// Package session holds the per-connection price log for the Means to an End server.
package session

// Observation is a price seen at a timestamp.
type Observation struct {
	Timestamp int32
	Price     int32
}

// Store is an append-only log of observations owned by a single connection.
// It is not safe for concurrent use.
type Store struct {
	log []Observation
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Insert appends an observation. Duplicate and out-of-order timestamps are kept.
func (s *Store) Insert(timestamp, price int32) {
	s.log = append(s.log, Observation{Timestamp: timestamp, Price: price})
}

// QueryMean returns the mean price of observations with minTime <= timestamp <= maxTime,
// truncated toward zero. It returns 0 when nothing matches, including when minTime > maxTime.
func (s *Store) QueryMean(minTime, maxTime int32) int32 {
	if minTime > maxTime {
		return 0
	}

	var sum, count int64
	for _, o := range s.log {
		if o.Timestamp < minTime || o.Timestamp > maxTime {
			continue
		}
		sum += int64(o.Price)
		count++
	}

	if count == 0 {
		return 0
	}
	return int32(sum / count)
}

// Len returns the number of recorded observations.
func (s *Store) Len() int {
	return len(s.log)
}
