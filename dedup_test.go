package wdtag

import (
	"image/color"
	"testing"
)

func TestDedupFilter(t *testing.T) {
	t.Parallel()

	d := newDedupFilter(DefaultDuplicateThreshold)
	if d.isDuplicate(solidImage(64, 64, color.Gray{Y: 128})) {
		t.Fatal("first image reported as duplicate")
	}
	if !d.isDuplicate(solidImage(32, 32, color.Gray{Y: 40})) {
		t.Error("second flat image should match the first")
	}
	if d.isDuplicate(gradientImage(64, 64)) {
		t.Error("gradient should not match a flat image")
	}
	if !d.isDuplicate(gradientImage(128, 96)) {
		t.Error("rescaled gradient should match the first gradient")
	}
}
