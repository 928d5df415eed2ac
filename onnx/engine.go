// Package onnx runs WD tagger models through onnxruntime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	wdtag "github.com/anatolykoptev/go-wdtag"
)

// Execution providers, in preference order.
const (
	ProviderCUDA = "CUDA"
	ProviderCPU  = "CPU"
)

// Options configures an Engine.
type Options struct {
	LibraryPath string // onnxruntime shared library; empty uses the platform default name
	ModelPath   string // model.onnx
	DisableCUDA bool   // skip the CUDA provider attempt
}

// Engine is a wdtag.Engine backed by a single onnxruntime session. Infer
// is serialized, so one Engine may be shared by several workers.
type Engine struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	size     int
	provider string
}

var envOnce struct {
	sync.Mutex
	refs int
}

func acquireEnvironment(libraryPath string) error {
	envOnce.Lock()
	defer envOnce.Unlock()
	if envOnce.refs == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envOnce.refs++
	return nil
}

func releaseEnvironment() error {
	envOnce.Lock()
	defer envOnce.Unlock()
	if envOnce.refs == 0 {
		return nil
	}
	envOnce.refs--
	if envOnce.refs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

// New loads the model, reads its input edge length from the input shape,
// and opens a session, trying CUDA first unless disabled.
func New(opts Options) (*Engine, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("onnx: model path is required")
	}
	if err := acquireEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	e, err := open(opts)
	if err != nil {
		_ = releaseEnvironment()
		return nil, err
	}
	return e, nil
}

func open(opts Options) (*Engine, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("inspect model: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("onnx: model has no inputs or outputs")
	}
	size, err := edgeFromShape(inputs[0].Dimensions)
	if err != nil {
		return nil, err
	}
	classes, err := classesFromShape(outputs[0].Dimensions)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(size), int64(size), 3))
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(classes)))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	e := &Engine{input: input, output: output, size: size}
	names := []string{inputs[0].Name}
	outNames := []string{outputs[0].Name}

	if !opts.DisableCUDA {
		session, err := newSession(opts.ModelPath, names, outNames, input, output, true)
		if err == nil {
			e.session, e.provider = session, ProviderCUDA
		} else {
			slog.Warn("wdtag: CUDA not available, falling back to CPU", "error", err.Error())
		}
	}
	if e.session == nil {
		session, err := newSession(opts.ModelPath, names, outNames, input, output, false)
		if err != nil {
			_ = input.Destroy()
			_ = output.Destroy()
			return nil, fmt.Errorf("create session: %w", err)
		}
		e.session, e.provider = session, ProviderCPU
	}
	slog.Info("wdtag: model loaded", "model", opts.ModelPath, "provider", e.provider,
		"input_size", size, "classes", classes)
	return e, nil
}

func newSession(modelPath string, inNames, outNames []string, in, out ort.Value, cuda bool) (*ort.AdvancedSession, error) {
	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer so.Destroy()

	if cuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, err
		}
		defer cudaOpts.Destroy()
		if err := so.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, err
		}
	}
	return ort.NewAdvancedSession(modelPath, inNames, outNames, []ort.Value{in}, []ort.Value{out}, so)
}

// edgeFromShape reads the square edge from an NHWC input shape.
func edgeFromShape(dims ort.Shape) (int, error) {
	if len(dims) != 4 {
		return 0, fmt.Errorf("onnx: expected 4-d input, got %v", dims)
	}
	h, w := dims[1], dims[2]
	if w <= 0 || h != w {
		return 0, fmt.Errorf("onnx: expected fixed square input, got %v", dims)
	}
	return int(w), nil
}

// classesFromShape reads the number of scores from a [batch, classes] output.
func classesFromShape(dims ort.Shape) (int, error) {
	if len(dims) == 0 || dims[len(dims)-1] <= 0 {
		return 0, fmt.Errorf("onnx: cannot read class count from output %v", dims)
	}
	return int(dims[len(dims)-1]), nil
}

// InputSize returns the model's input edge length.
func (e *Engine) InputSize() int { return e.size }

// Provider returns the execution provider the session runs on.
func (e *Engine) Provider() string { return e.provider }

// Infer implements wdtag.Engine.
func (e *Engine) Infer(ctx context.Context, t wdtag.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Size != e.size {
		return nil, fmt.Errorf("onnx: tensor edge %d, model wants %d", t.Size, e.size)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("onnx: engine is closed")
	}
	copy(e.input.GetData(), t.Data)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	return append([]float32(nil), e.output.GetData()...), nil
}

// Close releases the session, tensors and, with the last engine, the
// onnxruntime environment.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := errors.Join(e.session.Destroy(), e.input.Destroy(), e.output.Destroy())
	e.session = nil
	return errors.Join(err, releaseEnvironment())
}
