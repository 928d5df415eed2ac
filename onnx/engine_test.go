package onnx

import (
	"context"
	"testing"

	ort "github.com/yalue/onnxruntime_go"

	wdtag "github.com/anatolykoptev/go-wdtag"
)

func TestEdgeFromShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dims    ort.Shape
		want    int
		wantErr bool
	}{
		{name: "dynamic batch", dims: ort.NewShape(-1, 448, 448, 3), want: 448},
		{name: "fixed batch", dims: ort.NewShape(1, 384, 384, 3), want: 384},
		{name: "not square", dims: ort.NewShape(1, 448, 320, 3), wantErr: true},
		{name: "dynamic edge", dims: ort.NewShape(1, -1, -1, 3), wantErr: true},
		{name: "wrong rank", dims: ort.NewShape(448, 448), wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := edgeFromShape(tc.dims)
			if tc.wantErr {
				if err == nil {
					t.Errorf("edgeFromShape(%v) = %d, want error", tc.dims, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("edgeFromShape(%v) error: %v", tc.dims, err)
			}
			if got != tc.want {
				t.Errorf("edgeFromShape(%v) = %d, want %d", tc.dims, got, tc.want)
			}
		})
	}
}

func TestClassesFromShape(t *testing.T) {
	t.Parallel()

	if got, err := classesFromShape(ort.NewShape(-1, 10861)); err != nil || got != 10861 {
		t.Errorf("classesFromShape = %d, %v; want 10861, nil", got, err)
	}
	if _, err := classesFromShape(ort.NewShape(1, -1)); err == nil {
		t.Error("expected error for dynamic class count")
	}
}

func TestNewRequiresModelPath(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Error("expected error without model path")
	}
}

func TestInferRejectsWrongTensorSize(t *testing.T) {
	t.Parallel()

	e := &Engine{size: 448}
	_, err := e.Infer(context.Background(), wdtag.Tensor{Size: 64, Data: make([]float32, 64*64*3)})
	if err == nil {
		t.Error("expected error for mismatched tensor edge")
	}
}
