package wdtag

import (
	"slices"
	"testing"
)

func TestSelectTags(t *testing.T) {
	t.Parallel()

	defaults := Thresholds{General: DefaultGeneralThreshold, Character: DefaultCharacterThreshold, HideRating: true}

	tests := []struct {
		name   string
		scores []float32
		thresh Thresholds
		want   []string
	}{
		{
			name:   "defaults keep general then character",
			scores: testScores(),
			thresh: defaults,
			want:   []string{"1girl", "solo", "hatsune_miku"},
		},
		{
			name:   "character first",
			scores: testScores(),
			thresh: Thresholds{General: 0.35, Character: 0.85, HideRating: true, CharacterFirst: true},
			want:   []string{"hatsune_miku", "1girl", "solo"},
		},
		{
			name:   "ratings appended last without threshold",
			scores: testScores(),
			thresh: Thresholds{General: 0.35, Character: 0.85},
			want:   []string{"1girl", "solo", "hatsune_miku", "safe", "questionable", "explicit"},
		},
		{
			name:   "ratings last even with character first",
			scores: testScores(),
			thresh: Thresholds{General: 0.9, Character: 0.85, CharacterFirst: true},
			want:   []string{"hatsune_miku", "1girl", "safe", "questionable", "explicit"},
		},
		{
			name:   "label order not score order",
			scores: []float32{0, 0, 0, 0.5, 0.99, 0.7, 0, 0},
			thresh: defaults,
			want:   []string{"1girl", "solo", "long_hair"},
		},
		{
			name:   "inclusive at 1.0",
			scores: []float32{0, 0, 0, 1.0, 0.99, 0, 1.0, 1.0},
			thresh: Thresholds{General: 1, Character: 1, HideRating: true},
			want:   []string{"1girl", "hatsune_miku"},
		},
		{
			name:   "everything below threshold",
			scores: []float32{1, 1, 1, 0.1, 0.1, 0.1, 0.1, 1},
			thresh: defaults,
			want:   []string{},
		},
		{
			name:   "zero thresholds keep every categorized tag",
			scores: make([]float32, 8),
			thresh: Thresholds{HideRating: true},
			want:   []string{"1girl", "solo", "long_hair", "hatsune_miku"},
		},
	}

	labels := testLabels(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SelectTags(tc.scores, labels, tc.thresh)
			if !slices.Equal(got, tc.want) {
				t.Errorf("SelectTags() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSelectTags_HideRatingNeverEmitsRatings(t *testing.T) {
	t.Parallel()

	labels := testLabels(t)
	ratings := labels.RatingNames()
	scores := []float32{1, 1, 1, 1, 1, 1, 1, 1}
	for _, th := range []float64{0, 0.25, 0.5, 0.75, 1} {
		got := SelectTags(scores, labels, Thresholds{General: th, Character: th, HideRating: true})
		for _, tag := range got {
			if slices.Contains(ratings, tag) {
				t.Errorf("threshold %v: rating tag %q emitted with HideRating", th, tag)
			}
		}
	}
}

func TestSelectTags_Deterministic(t *testing.T) {
	t.Parallel()

	labels := testLabels(t)
	th := Thresholds{General: 0.35, Character: 0.85}
	first := SelectTags(testScores(), labels, th)
	for range 20 {
		if got := SelectTags(testScores(), labels, th); !slices.Equal(got, first) {
			t.Fatalf("SelectTags not deterministic: %v vs %v", got, first)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		th      Thresholds
		wantErr bool
	}{
		{name: "defaults", th: Thresholds{General: 0.35, Character: 0.85}},
		{name: "bounds", th: Thresholds{General: 0, Character: 1}},
		{name: "negative general", th: Thresholds{General: -0.1, Character: 0.5}, wantErr: true},
		{name: "character above one", th: Thresholds{General: 0.5, Character: 1.01}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.th.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
