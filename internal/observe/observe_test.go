package observe

import (
	"errors"
	"strings"
	"testing"
)

func validSketch() Sketch {
	return Sketch{
		LineQuality:         LineStructured,
		AnatomyRisk:         RiskMedium,
		Complexity:          ComplexityComplex,
		ConstructionDensity: 0.4,
		BrokenDensity:       0.3,
		SubjectTags:         []string{"character"},
		SubjectCount:        1,
		ObjectScale:         ScaleMedium,
	}
}

func TestSketchValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Sketch)
		wantErr string
	}{
		{"valid", func(*Sketch) {}, ""},
		{"nil scale ok", func(s *Sketch) { s.ObjectScale = "" }, ""},
		{"missing quality", func(s *Sketch) { s.LineQuality = "" }, "line_quality is required"},
		{"bad quality", func(s *Sketch) { s.LineQuality = "pristine" }, "line_quality"},
		{"missing risk", func(s *Sketch) { s.AnatomyRisk = "" }, "anatomy_risk is required"},
		{"bad risk", func(s *Sketch) { s.AnatomyRisk = "extreme" }, "anatomy_risk"},
		{"missing complexity", func(s *Sketch) { s.Complexity = "" }, "complexity is required"},
		{"construction out of range", func(s *Sketch) { s.ConstructionDensity = 1.2 }, "construction_density"},
		{"broken negative", func(s *Sketch) { s.BrokenDensity = -0.1 }, "broken_density"},
		{"no tags", func(s *Sketch) { s.SubjectTags = nil }, "subject_tags is required"},
		{"negative count", func(s *Sketch) { s.SubjectCount = -1 }, "subject_count"},
		{"bad scale", func(s *Sketch) { s.ObjectScale = "huge" }, "object_scale"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSketch()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidObservation) {
				t.Fatalf("Validate() = %v, want ErrInvalidObservation", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}

	var nilSketch *Sketch
	if err := nilSketch.Validate(); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("nil sketch Validate() = %v, want ErrInvalidObservation", err)
	}
}

func TestReferenceValidate(t *testing.T) {
	var nilRef *Reference
	if err := nilRef.Validate(); err != nil {
		t.Errorf("nil reference should be valid, got %v", err)
	}

	ok := Reference{Similarity: 0.8, ConflictPenalty: 0.2, StyleDistance: 0.5}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	for name, ref := range map[string]Reference{
		"similarity":       {Similarity: 1.5},
		"conflict_penalty": {ConflictPenalty: -0.2},
		"style_distance":   {StyleDistance: 2},
	} {
		if err := ref.Validate(); !errors.Is(err, ErrInvalidObservation) {
			t.Errorf("%s: Validate() = %v, want ErrInvalidObservation", name, err)
		}
	}
}

func TestIntentValidate(t *testing.T) {
	in := DefaultIntent()
	if err := in.Validate(); err != nil {
		t.Fatalf("default intent must validate, got %v", err)
	}

	in.TransformStrength = 1.2
	if err := in.Validate(); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("transform_strength 1.2: Validate() = %v, want ErrInvalidObservation", err)
	}

	in = DefaultIntent()
	in.DestinationPhase = "render"
	if err := in.Validate(); !errors.Is(err, ErrInvalidObservation) {
		t.Errorf("bad phase: Validate() = %v, want ErrInvalidObservation", err)
	}
}

func TestDefaultIntent(t *testing.T) {
	in := DefaultIntent()
	if in.TransformStrength != 0.5 {
		t.Errorf("TransformStrength = %v, want 0.5", in.TransformStrength)
	}
	if !in.PoseLock {
		t.Error("PoseLock should default on")
	}
	if in.StyleLock || in.StyleMatchOverride {
		t.Error("style options should default off")
	}
	if in.DestinationPhase != PhaseCleanup {
		t.Errorf("DestinationPhase = %q, want %q", in.DestinationPhase, PhaseCleanup)
	}
}

func TestHasCardinalityHint(t *testing.T) {
	s := Sketch{}
	if s.HasCardinalityHint() {
		t.Error("empty sketch should have no hint")
	}
	s.SubjectCount = 2
	if !s.HasCardinalityHint() {
		t.Error("subject count is a hint")
	}
	s = Sketch{ObjectScale: ScaleLarge}
	if !s.HasCardinalityHint() {
		t.Error("object scale is a hint")
	}
}
