package report

// DayBuckets accumulates per-day statistics while an adapter scans raw
// records. It is built and discarded inside a single Report call.
type DayBuckets[T any] struct {
	days map[string]*T
}

// NewDayBuckets returns an empty accumulator.
func NewDayBuckets[T any]() *DayBuckets[T] {
	return &DayBuckets[T]{days: make(map[string]*T)}
}

// At returns the bucket for key, creating a zero value on first use.
func (b *DayBuckets[T]) At(key string) *T {
	v, ok := b.days[key]
	if !ok {
		v = new(T)
		b.days[key] = v
	}
	return v
}

// Get returns the bucket for key if one exists.
func (b *DayBuckets[T]) Get(key string) (*T, bool) {
	v, ok := b.days[key]
	return v, ok
}

// Len is the number of days with a bucket.
func (b *DayBuckets[T]) Len() int {
	return len(b.days)
}
