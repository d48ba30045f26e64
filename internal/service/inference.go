package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ekisa-team/dlrshim/internal/backend"
	"github.com/ekisa-team/dlrshim/internal/metrics"
	"github.com/ekisa-team/dlrshim/internal/model"
)

// ErrInvalidInput is returned for malformed prediction requests.
var ErrInvalidInput = errors.New("invalid input")

// Models resolves model instances by ID.
type Models interface {
	Get(id string) (*model.Instance, error)
	Registry() *model.Registry
}

// Tensor is a named tensor exchanged with clients. Values travel as float32
// and are converted to the slot's dtype by the backend.
type Tensor struct {
	Shape []int64   `json:"shape,omitempty"`
	Data  []float32 `json:"data"`
}

// TensorSpec describes one input or output slot.
type TensorSpec struct {
	Name  string  `json:"name,omitempty"`
	Shape []int64 `json:"shape"`
	DType string  `json:"dtype"`
}

// Description is the interface of a loaded model.
type Description struct {
	model.Info
	Inputs  []TensorSpec `json:"inputs"`
	Weights []string     `json:"weights"`
	Outputs []TensorSpec `json:"outputs"`
}

// Prediction is the result of one Predict call.
type Prediction struct {
	ModelID    string        `json:"model_id"`
	InstanceID string        `json:"instance_id"`
	Outputs    []Tensor      `json:"outputs"`
	Duration   time.Duration `json:"duration_ns"`
}

// Inference runs predictions against loaded models.
type Inference struct {
	models Models
}

// NewInference creates a new inference service.
func NewInference(models Models) *Inference {
	return &Inference{models: models}
}

// List returns the state of every configured model.
func (s *Inference) List() []model.Info {
	instances := s.models.Registry().List()

	infos := make([]model.Info, 0, len(instances))
	for _, inst := range instances {
		infos = append(infos, inst.Info())
	}
	return infos
}

// Describe returns the inputs, weights and outputs of a loaded model.
func (s *Inference) Describe(_ context.Context, modelID string) (*Description, error) {
	inst, err := s.models.Get(modelID)
	if err != nil {
		return nil, err
	}

	d := &Description{Info: inst.Info()}
	err = inst.Use(func(m backend.Model) error {
		for i := range m.NumInputs() {
			name, err := m.InputName(i)
			if err != nil {
				return err
			}
			info, err := m.InputInfo(name)
			if err != nil {
				return err
			}
			d.Inputs = append(d.Inputs, TensorSpec{Name: name, Shape: info.Shape, DType: info.DType.String()})
		}

		d.Weights = make([]string, 0, m.NumWeights())
		for i := range m.NumWeights() {
			name, err := m.WeightName(i)
			if err != nil {
				return err
			}
			d.Weights = append(d.Weights, name)
		}

		for i := range m.NumOutputs() {
			info, err := m.OutputInfo(i)
			if err != nil {
				return err
			}
			d.Outputs = append(d.Outputs, TensorSpec{Shape: info.Shape, DType: info.DType.String()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Predict binds inputs, runs the model and returns every output. An input
// without a shape takes the slot's shape.
func (s *Inference) Predict(ctx context.Context, modelID string, inputs map[string]Tensor) (*Prediction, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no inputs", ErrInvalidInput)
	}

	inst, err := s.models.Get(modelID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	p := &Prediction{ModelID: modelID}

	err = inst.Use(func(m backend.Model) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		outs, err := Execute(m, inputs)
		if err != nil {
			return err
		}
		p.Outputs = outs
		return nil
	})

	p.Duration = time.Since(start)
	metrics.ObserveInference(modelID, p.Duration, err)
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", modelID, err)
	}

	p.InstanceID = inst.Info().InstanceID
	return p, nil
}

// Execute binds inputs in name order, runs m and reads back every output.
// An input without a shape takes the slot's shape. The caller must hold
// exclusive use of m.
func Execute(m backend.Model, inputs map[string]Tensor) ([]Tensor, error) {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		in := inputs[name]
		shape := in.Shape
		if len(shape) == 0 {
			info, err := m.InputInfo(name)
			if err != nil {
				return nil, err
			}
			shape = info.Shape
		}
		if err := m.SetInput(name, shape, in.Data); err != nil {
			return nil, err
		}
	}

	if err := m.Run(); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	outputs := make([]Tensor, m.NumOutputs())
	for i := range outputs {
		shape, err := m.OutputShape(i)
		if err != nil {
			return nil, err
		}
		size, _, err := m.OutputSizeDim(i)
		if err != nil {
			return nil, err
		}

		out := make([]float32, size)
		if err := m.GetOutput(i, out); err != nil {
			return nil, err
		}
		outputs[i] = Tensor{Shape: shape, Data: out}
	}
	return outputs, nil
}

// IsClientError reports whether err was caused by the request rather than
// the server.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput,
		backend.ErrSizeMismatch,
		backend.ErrInputNotFound,
		backend.ErrIndexOutOfRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
