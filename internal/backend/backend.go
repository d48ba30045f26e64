package backend

import "github.com/ekisa-team/dlrshim/internal/graphrt"

// Model is the uniform contract served by every loaded backend model.
//
// A Model is not safe for concurrent use; callers serialize access.
type Model interface {
	// Backend returns the backend identifier.
	Backend() string

	// NumInputs returns the number of pure inputs, weights excluded.
	NumInputs() int

	// NumWeights returns the number of inputs bound from the parameter blob.
	NumWeights() int

	// NumOutputs returns the number of model outputs.
	NumOutputs() int

	InputName(i int) (string, error)
	WeightName(i int) (string, error)

	// InputInfo returns the shape and dtype of a named input slot.
	InputInfo(name string) (graphrt.TensorInfo, error)

	// SetInput binds data to a named input. The product of shape must equal
	// the slot's element count.
	SetInput(name string, shape []int64, data []float32) error

	// GetInput copies the current content of a named input into out.
	GetInput(name string, out []float32) error

	// Run executes the model synchronously.
	Run() error

	OutputInfo(i int) (graphrt.TensorInfo, error)
	OutputShape(i int) ([]int64, error)

	// OutputSizeDim returns the element count and rank of output i.
	OutputSizeDim(i int) (size int64, dim int, err error)

	// GetOutput copies output i into out.
	GetOutput(i int, out []float32) error

	// Close releases the model and its native resources.
	Close() error
}
