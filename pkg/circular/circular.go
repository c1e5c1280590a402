package circular

import (
	"errors"
	"sync"
)

/*
 * Returned when a snapshot target does not match the window length.
 */
var ErrLength = errors.New("target buffer must be of the same size as source buffer")

/*
 * Data structure implementing a fixed-length sliding window.
 *
 * Writers and readers may live on different goroutines. Both only hold the
 * lock for the duration of a copy, so a reader always observes a window that
 * was complete at some instant.
 */
type Buffer[T any] struct {
	mutex   sync.RWMutex
	values  []T
	pointer int
	filled  int
}

/*
 * Add elements to the window, overwriting the oldest ones.
 *
 * Semantics: First write to buffer, then increment pointer.
 *
 * Pointer points to "oldest" element, or next element to be overwritten.
 */
func (b *Buffer[T]) Enqueue(elems ...T) {
	numElems := len(elems)
	values := b.values
	n := len(values)

	if n == 0 || numElems == 0 {
		return
	}

	b.mutex.Lock()

	/*
	 * If there are more elements than fit into the buffer, simply copy
	 * the tail of the element array into the buffer, otherwise perform
	 * circular write operation.
	 */
	if numElems >= n {
		idx := numElems - n
		copy(values, elems[idx:numElems])
		b.pointer = 0
		b.filled = n
	} else {
		ptr := b.pointer
		ptrInc := ptr + numElems

		/*
		 * Check whether the write operation stays within the array bounds.
		 */
		if ptrInc < n {
			copy(values[ptr:ptrInc], elems)
			b.pointer = ptrInc
		} else {
			head := ptrInc - n
			tail := n - ptr
			copy(values[ptr:n], elems[0:tail])
			copy(values[0:head], elems[tail:numElems])
			b.pointer = head
		}

		b.filled = min(b.filled+numElems, n)
	}

	b.mutex.Unlock()
}

/*
 * Returns the size of the window.
 */
func (b *Buffer[T]) Length() int {
	return len(b.values)
}

/*
 * Returns how many elements have been written, capped at the window size.
 */
func (b *Buffer[T]) Filled() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.filled
}

/*
 * Copy the window into buf, oldest element first.
 */
func (b *Buffer[T]) Retrieve(buf []T) error {
	values := b.values
	n := len(values)

	/*
	 * Ensure the target buffer is of equal size.
	 */
	if n != len(buf) {
		return ErrLength
	}

	b.mutex.RLock()
	ptr := b.pointer
	tailSize := n - ptr
	copy(buf[0:tailSize], values[ptr:n])
	copy(buf[tailSize:n], values[0:ptr])
	b.mutex.RUnlock()
	return nil
}

/*
 * Zero the window and rewind it.
 */
func (b *Buffer[T]) Reset() {
	var zero T
	b.mutex.Lock()

	for i := range b.values {
		b.values[i] = zero
	}

	b.pointer = 0
	b.filled = 0
	b.mutex.Unlock()
}

/*
 * Creates a window of a certain size.
 */
func CreateBuffer[T any](size int) *Buffer[T] {
	return &Buffer[T]{
		values: make([]T, size),
	}
}
