package wdtag

import (
	"image"
	"sync"

	"github.com/corona10/goimagehash"
)

// dedupFilter is a per-run duplicate filter based on perceptual hashing.
// It is safe for concurrent use.
type dedupFilter struct {
	threshold int

	mu     sync.Mutex
	hashes []*goimagehash.ImageHash
}

func newDedupFilter(threshold int) *dedupFilter {
	return &dedupFilter{threshold: threshold}
}

// isDuplicate returns true if img is perceptually identical to an image
// already seen in this run. If hashing fails the image is accepted.
// Accepted images are remembered for later comparisons.
func (d *dedupFilter) isDuplicate(img image.Image) bool {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range d.hashes {
		dist, err := hash.Distance(h)
		if err == nil && dist < d.threshold {
			return true
		}
	}

	d.hashes = append(d.hashes, hash)
	return false
}
