// Package tensor implements the generic flat N-dimensional array used to
// hold layer inputs/outputs across the graph.
//
// It generalizes the row-major flat-array Matrix[T] of this module's
// ancestor (Preimage_Sampler.Matrix[T any], a 2-D At/Set helper over a flat
// backing slice) from exactly two dimensions to an arbitrary shape.
package tensor

import "fmt"

// Number is the set of element domains a Tensor may hold: the signed
// wide-integer quantized domain (Element) used throughout proving, and the
// float32 domain used only by the non-provable test-only multiplier path.
type Number interface {
	~int64 | ~float32
}

// Tensor is a dense, row-major, N-dimensional array of T.
type Tensor[T Number] struct {
	shape []int
	data  []T
}

// New builds a tensor over shape with the given flat, row-major data. The
// product of shape must equal len(data).
func New[T Number](shape []int, data []T) *Tensor[T] {
	size := sizeOf(shape)
	if size != len(data) {
		panic(fmt.Sprintf("tensor.New: shape %v requires %d elements, got %d", shape, size, len(data)))
	}
	return &Tensor[T]{shape: append([]int(nil), shape...), data: data}
}

// Zeros builds a zero-initialized tensor of the given shape.
func Zeros[T Number](shape []int) *Tensor[T] {
	return New[T](shape, make([]T, sizeOf(shape)))
}

func sizeOf(shape []int) int {
	size := 1
	for _, d := range shape {
		size *= d
	}
	return size
}

// Shape returns a copy of the tensor's dimensions.
func (t *Tensor[T]) Shape() []int { return append([]int(nil), t.shape...) }

// Len returns the number of elements.
func (t *Tensor[T]) Len() int { return len(t.data) }

// GetData returns the flat, row-major backing slice (mirroring
// `Tensor::get_data` in the source).
func (t *Tensor[T]) GetData() []T { return t.data }

// At returns the element at the given multi-index.
func (t *Tensor[T]) At(idx ...int) T {
	return t.data[t.flatIndex(idx)]
}

// Set assigns the element at the given multi-index.
func (t *Tensor[T]) Set(v T, idx ...int) {
	t.data[t.flatIndex(idx)] = v
}

func (t *Tensor[T]) flatIndex(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index arity %d does not match shape %v", len(idx), t.shape))
	}
	flat := 0
	for i, d := range idx {
		if d < 0 || d >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of bounds for dimension %d (size %d)", d, i, t.shape[i]))
		}
		flat = flat*t.shape[i] + d
	}
	return flat
}

// Map applies f element-wise, returning a new tensor of the same shape.
func Map[T, U Number](t *Tensor[T], f func(T) U) *Tensor[U] {
	out := make([]U, len(t.data))
	for i, v := range t.data {
		out[i] = f(v)
	}
	return New[U](t.Shape(), out)
}
