// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package buffer implements the fixed-capacity sample ring used for moving
// averages.
package buffer

// DefaultCapacity holds one sample per second for a minute
const DefaultCapacity = 60

// Ring is a circular buffer of samples. It has one writer; once full, each
// Add overwrites the oldest sample.
type Ring struct {
	data []float64
	head int // most recently written slot
	tail int // oldest slot
	n    int
}

// New returns an empty ring. A capacity below 1 uses DefaultCapacity.
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	r := &Ring{data: make([]float64, capacity)}
	r.Reset()
	return r
}

// Reset empties the ring without reallocating
func (r *Ring) Reset() {
	r.head = len(r.data) - 1
	r.tail = 0
	r.n = 0
}

// Add stores a sample at the next slot
func (r *Ring) Add(v float64) {
	r.head++
	if r.head >= len(r.data) {
		r.head = 0
	}
	r.data[r.head] = v

	if r.n < len(r.data) {
		r.n++
	} else {
		r.tail = r.head + 1
		if r.tail >= len(r.data) {
			r.tail = 0
		}
	}
}

// Len returns the number of samples held
func (r *Ring) Len() int {
	return r.n
}

// Cap returns the capacity
func (r *Ring) Cap() int {
	return len(r.data)
}

// Newest returns the most recent sample, or 0 when empty
func (r *Ring) Newest() float64 {
	if r.n == 0 {
		return 0
	}
	return r.data[r.head]
}

// at returns the sample i places before the newest
func (r *Ring) at(i int) float64 {
	idx := r.head - i
	if idx < 0 {
		idx += len(r.data)
	}
	return r.data[idx]
}

// Last returns the most recent k samples, oldest first. k is limited to Len.
func (r *Ring) Last(k int) []float64 {
	k = r.clamp(k)
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		out[k-1-i] = r.at(i)
	}
	return out
}

// Average returns the mean of the most recent min(k, Len) samples, or 0 when
// the ring is empty
func (r *Ring) Average(k int) float64 {
	k = r.clamp(k)
	if k == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += r.at(i)
	}
	return sum / float64(k)
}

func (r *Ring) clamp(k int) int {
	if k > r.n {
		k = r.n
	}
	if k < 0 {
		k = 0
	}
	return k
}

// State is the serializable form of a ring
type State struct {
	Data []float64 `cbor:"1,keyasint"`
	Head int       `cbor:"2,keyasint"`
	Tail int       `cbor:"3,keyasint"`
	N    int       `cbor:"4,keyasint"`
}

// State returns a copy of the ring contents
func (r *Ring) State() State {
	data := make([]float64, len(r.data))
	copy(data, r.data)
	return State{Data: data, Head: r.head, Tail: r.tail, N: r.n}
}

// Restore loads a state saved by State. A state of another capacity or with
// out-of-range indices leaves the ring empty and returns false.
func (r *Ring) Restore(s State) bool {
	c := len(r.data)
	if len(s.Data) != c || s.N < 0 || s.N > c ||
		s.Head < 0 || s.Head >= c || s.Tail < 0 || s.Tail >= c {
		r.Reset()
		return false
	}
	copy(r.data, s.Data)
	r.head, r.tail, r.n = s.Head, s.Tail, s.N
	return true
}
