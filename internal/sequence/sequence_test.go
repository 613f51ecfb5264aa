package sequence

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"linedirector/internal/director"
	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

func testPlanner(t *testing.T, parallel int) *Planner {
	t.Helper()
	return &Planner{
		Engine:   director.New(policy.MustDefault()),
		Parallel: parallel,
	}
}

func frameSketch(quality observe.LineQuality, risk observe.RiskLevel) observe.Sketch {
	return observe.Sketch{
		LineQuality:         quality,
		AnatomyRisk:         risk,
		Complexity:          observe.ComplexityComplex,
		ConstructionDensity: 0.3,
		BrokenDensity:       0.2,
		SubjectTags:         []string{"character"},
		SubjectCount:        1,
		ObjectScale:         observe.ScaleMedium,
	}
}

func TestKeyframes(t *testing.T) {
	tests := []struct {
		n    int
		want []int
	}{
		{0, nil},
		{1, []int{0}},
		{2, []int{0, 1}},
		{3, []int{0, 1, 2}},
		{9, []int{0, 4, 8}},
		{10, []int{0, 5, 9}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Keyframes(tt.n)); diff != "" {
			t.Errorf("Keyframes(%d) mismatch (-want +got):\n%s", tt.n, diff)
		}
	}
}

func TestMergeSketches(t *testing.T) {
	a := frameSketch(observe.LineClean, observe.RiskLow)
	a.ConstructionDensity = 0.2
	a.SubjectTags = []string{"character"}
	b := frameSketch(observe.LineMessy, observe.RiskHigh)
	b.ConstructionDensity = 0.6
	b.SubjectTags = []string{"character", "prop"}
	b.SubjectCount = 2
	b.ObjectScale = observe.ScaleLarge

	merged := MergeSketches([]observe.Sketch{a, b})
	if merged.LineQuality != observe.LineMessy {
		t.Errorf("LineQuality = %q, want the worst (messy)", merged.LineQuality)
	}
	if merged.AnatomyRisk != observe.RiskHigh {
		t.Errorf("AnatomyRisk = %q, want the highest (high)", merged.AnatomyRisk)
	}
	if merged.ConstructionDensity != 0.6 {
		t.Errorf("ConstructionDensity = %v, want 0.6", merged.ConstructionDensity)
	}
	if diff := cmp.Diff([]string{"character", "prop"}, merged.SubjectTags); diff != "" {
		t.Errorf("SubjectTags mismatch (-want +got):\n%s", diff)
	}
	if merged.SubjectCount != 2 {
		t.Errorf("SubjectCount = %d, want 2", merged.SubjectCount)
	}
	if merged.ObjectScale != observe.ScaleLarge {
		t.Errorf("ObjectScale = %q, want large", merged.ObjectScale)
	}

	if diff := cmp.Diff(observe.Sketch{}, MergeSketches(nil)); diff != "" {
		t.Errorf("MergeSketches(nil) should be the zero sketch (-want +got):\n%s", diff)
	}
}

func TestPlanAll(t *testing.T) {
	p := testPlanner(t, 3)
	frames := []Frame{
		{Index: 0, Sketch: frameSketch(observe.LineClean, observe.RiskLow)},
		{Index: 1, Sketch: frameSketch(observe.LineStructured, observe.RiskMedium)},
		{Index: 2, Sketch: frameSketch(observe.LineMessy, observe.RiskHigh)},
	}

	results, err := p.PlanAll(context.Background(), frames, nil, observe.DefaultIntent())
	if err != nil {
		t.Fatalf("PlanAll() = %v", err)
	}
	if len(results) != len(frames) {
		t.Fatalf("results = %d, want %d", len(results), len(frames))
	}
	for i, r := range results {
		if r.Index != i {
			t.Errorf("result %d has index %d; order must follow the input", i, r.Index)
		}
		if r.Err != nil {
			t.Errorf("frame %d failed: %v", i, r.Err)
		}
		if r.Plan == nil {
			t.Errorf("frame %d has no plan", i)
		}
	}
}

func TestPlanAllCapturesFrameErrors(t *testing.T) {
	p := testPlanner(t, 2)
	bad := frameSketch(observe.LineClean, observe.RiskLow)
	bad.SubjectTags = nil
	frames := []Frame{
		{Index: 0, Sketch: frameSketch(observe.LineClean, observe.RiskLow)},
		{Index: 1, Sketch: bad},
	}

	results, err := p.PlanAll(context.Background(), frames, nil, observe.DefaultIntent())
	if err != nil {
		t.Fatalf("per-frame failures must not fail the batch: %v", err)
	}
	if results[0].Err != nil || results[0].Plan == nil {
		t.Errorf("healthy frame affected by its neighbor: %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("invalid frame should carry its error")
	}
}

func TestPlanAllHonorsCancellation(t *testing.T) {
	p := testPlanner(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := []Frame{{Index: 0, Sketch: frameSketch(observe.LineClean, observe.RiskLow)}}
	if _, err := p.PlanAll(ctx, frames, nil, observe.DefaultIntent()); err == nil {
		t.Error("canceled context should surface as an error")
	}
}

func TestPlanShared(t *testing.T) {
	p := testPlanner(t, 1)
	frames := []Frame{
		{Index: 0, Sketch: frameSketch(observe.LineClean, observe.RiskLow)},
		{Index: 1, Sketch: frameSketch(observe.LineMessy, observe.RiskHigh)},
		{Index: 2, Sketch: frameSketch(observe.LineStructured, observe.RiskMedium)},
	}

	shared, err := p.PlanShared(frames, nil, observe.DefaultIntent())
	if err != nil {
		t.Fatalf("PlanShared() = %v", err)
	}

	merged := MergeSketches([]observe.Sketch{frames[0].Sketch, frames[1].Sketch, frames[2].Sketch})
	direct, err := p.Engine.ComputePlan(director.Request{Sketch: merged, Intent: observe.DefaultIntent()})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(direct, shared); diff != "" {
		t.Errorf("shared plan must equal the merged-keyframe plan (-want +got):\n%s", diff)
	}
}
