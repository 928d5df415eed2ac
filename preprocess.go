package wdtag

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Tensor is a single NHWC float32 image in BGR channel order, values 0..255.
type Tensor struct {
	Data []float32
	Size int
}

// Shape returns the tensor dimensions: batch, height, width, channels.
func (t Tensor) Shape() []int64 {
	return []int64{1, int64(t.Size), int64(t.Size), 3}
}

// Preprocess converts an arbitrary decoded image into the model's input
// tensor. Transparency is flattened onto white, the shorter side is padded
// with white to a centered square, and the square is resized to size with a
// Catmull-Rom (bicubic) filter.
func Preprocess(img image.Image, size int) Tensor {
	if size <= 0 {
		return Tensor{}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	edge := max(w, h, 1)

	square := image.NewRGBA(image.Rect(0, 0, edge, edge))
	draw.Draw(square, square.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	offset := image.Pt((edge-w)/2, (edge-h)/2)
	draw.Draw(square, image.Rectangle{Min: offset, Max: offset.Add(b.Size())}, img, b.Min, draw.Over)

	canvas := square
	if edge != size {
		canvas = image.NewRGBA(image.Rect(0, 0, size, size))
		xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), square, square.Bounds(), xdraw.Src, nil)
	}

	data := make([]float32, size*size*3)
	for y := range size {
		for x := range size {
			p := canvas.PixOffset(x, y)
			o := (y*size + x) * 3
			data[o] = float32(canvas.Pix[p+2])
			data[o+1] = float32(canvas.Pix[p+1])
			data[o+2] = float32(canvas.Pix[p])
		}
	}
	return Tensor{Data: data, Size: size}
}
