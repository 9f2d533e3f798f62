package camera

import "iter"

// Seq is a lazily produced, finite sequence which can be consumed once.
// Items are pulled on demand, an exhausted Seq stays exhausted.
type Seq[T any] struct {
	next func() (T, bool)
	done bool
}

// NewSeq wraps a generator, next reports false once it has nothing left.
func NewSeq[T any](next func() (T, bool)) *Seq[T] {
	return &Seq[T]{next: next}
}

// SliceSeq yields items in order without copying them.
func SliceSeq[T any](items []T) *Seq[T] {
	i := 0
	return NewSeq(func() (T, bool) {
		if i >= len(items) {
			var zero T
			return zero, false
		}
		item := items[i]
		i++
		return item, true
	})
}

func EmptySeq[T any]() *Seq[T] {
	return &Seq[T]{done: true}
}

// Next pulls the following item.
func (s *Seq[T]) Next() (T, bool) {
	var zero T
	if s == nil || s.done || s.next == nil {
		return zero, false
	}
	item, ok := s.next()
	if !ok {
		s.done = true
		s.next = nil
		return zero, false
	}
	return item, true
}

// All adapts the sequence for range loops. Ranging consumes it, breaking
// out early leaves the remainder available to Next.
func (s *Seq[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for {
			item, ok := s.Next()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Collect drains s into a slice.
func Collect[T any](s *Seq[T]) []T {
	var items []T
	for item := range s.All() {
		items = append(items, item)
	}
	return items
}

// Find returns the first item satisfying match, consuming s up to it.
func Find[T any](s *Seq[T], match func(T) bool) (T, bool) {
	for item := range s.All() {
		if match(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}
