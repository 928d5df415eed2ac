package wdtag

import "fmt"

// Thresholds configures tag selection. It is applied uniformly to every file
// in a run.
type Thresholds struct {
	General        float64 // inclusive minimum score for general tags
	Character      float64 // inclusive minimum score for character tags
	HideRating     bool    // omit rating tags entirely
	CharacterFirst bool    // character tags before general tags
	StripSeparator bool    // replace "_" with " " before output
}

// Validate rejects thresholds outside [0, 1].
func (t Thresholds) Validate() error {
	if t.General < 0 || t.General > 1 {
		return fmt.Errorf("wdtag: general threshold %v outside [0,1]", t.General)
	}
	if t.Character < 0 || t.Character > 1 {
		return fmt.Errorf("wdtag: character threshold %v outside [0,1]", t.Character)
	}
	return nil
}

// SelectTags converts a score vector into an ordered tag list. Within each
// category tags keep label-table order; rating tags, when shown, are always
// last and are not thresholded.
func SelectTags(scores []float32, labels *LabelSet, t Thresholds) []string {
	character := pickAbove(scores, labels, labels.Character, t.Character)
	general := pickAbove(scores, labels, labels.General, t.General)

	tags := make([]string, 0, len(character)+len(general)+len(labels.Rating))
	if t.CharacterFirst {
		tags = append(tags, character...)
		tags = append(tags, general...)
	} else {
		tags = append(tags, general...)
		tags = append(tags, character...)
	}
	if !t.HideRating {
		tags = append(tags, labels.RatingNames()...)
	}
	return tags
}

func pickAbove(scores []float32, labels *LabelSet, indices []int, threshold float64) []string {
	// Compare in float32 so a score equal to the threshold passes.
	floor := float32(threshold)
	var out []string
	for _, idx := range indices {
		if idx < len(scores) && scores[idx] >= floor {
			out = append(out, labels.Names[idx])
		}
	}
	return out
}
