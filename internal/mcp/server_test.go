package mcp

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"linedirector/internal/director"
	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(director.New(policy.MustDefault()))
}

func validSketch() observe.Sketch {
	return observe.Sketch{
		LineQuality:         observe.LineStructured,
		AnatomyRisk:         observe.RiskMedium,
		Complexity:          observe.ComplexityComplex,
		ConstructionDensity: 0.4,
		BrokenDensity:       0.3,
		SubjectTags:         []string{"character"},
		SubjectCount:        1,
		ObjectScale:         observe.ScaleMedium,
	}
}

func TestComputePlanTool(t *testing.T) {
	s := testServer(t)

	_, out, err := s.handleComputePlan(context.Background(), nil, computePlanInput{
		Sketch: validSketch(),
	})
	if err != nil {
		t.Fatalf("handleComputePlan: %v", err)
	}
	if out.Plan == nil {
		t.Fatal("expected a plan")
	}
	if out.Plan.Diagnostics.Case != policy.CaseSingleComplex {
		t.Errorf("case = %q, want %q", out.Plan.Diagnostics.Case, policy.CaseSingleComplex)
	}
	if !out.Plan.Diagnostics.NoReference {
		t.Error("expected no_reference diagnostic when reference is omitted")
	}
}

func TestComputePlanToolDefaultsIntent(t *testing.T) {
	s := testServer(t)

	_, explicit, err := s.handleComputePlan(context.Background(), nil, computePlanInput{
		Sketch: validSketch(),
		Intent: func() *observe.Intent { in := observe.DefaultIntent(); return &in }(),
	})
	if err != nil {
		t.Fatalf("explicit intent: %v", err)
	}
	_, defaulted, err := s.handleComputePlan(context.Background(), nil, computePlanInput{
		Sketch: validSketch(),
	})
	if err != nil {
		t.Fatalf("defaulted intent: %v", err)
	}
	if explicit.Plan.ID != defaulted.Plan.ID {
		t.Errorf("omitted intent should equal the default intent: %s vs %s",
			explicit.Plan.ID, defaulted.Plan.ID)
	}
}

func TestComputePlanToolRejectsInvalidSketch(t *testing.T) {
	s := testServer(t)

	sk := validSketch()
	sk.LineQuality = "pristine"
	_, _, err := s.handleComputePlan(context.Background(), nil, computePlanInput{Sketch: sk})
	if !errors.Is(err, observe.ErrInvalidObservation) {
		t.Fatalf("err = %v, want ErrInvalidObservation", err)
	}
}

func TestListProfilesTool(t *testing.T) {
	s := testServer(t)

	_, out, err := s.handleListProfiles(context.Background(), nil, listProfilesInput{})
	if err != nil {
		t.Fatalf("handleListProfiles: %v", err)
	}
	if len(out.Profiles) != 3 {
		t.Fatalf("profiles = %d, want 3", len(out.Profiles))
	}
	if out.Sampler == "" || out.Model == "" {
		t.Error("expected backend defaults in the listing")
	}
	if !sort.StringsAreSorted(out.Phases) {
		t.Errorf("phases %v must come out sorted", out.Phases)
	}
	for _, p := range out.Profiles {
		if p.Stage1Guidance[0] > p.Stage1Guidance[1] {
			t.Errorf("profile %s has inverted stage1 guidance envelope", p.Name)
		}
	}
}

func TestExplainPlanTool(t *testing.T) {
	s := testServer(t)

	_, out, err := s.handleExplainPlan(context.Background(), nil, computePlanInput{
		Sketch: validSketch(),
	})
	if err != nil {
		t.Fatalf("handleExplainPlan: %v", err)
	}
	if out.Case != policy.CaseSingleComplex {
		t.Errorf("case = %q, want %q", out.Case, policy.CaseSingleComplex)
	}
	joined := strings.Join(out.Lines, "\n")
	if !strings.Contains(joined, "classified as "+policy.CaseSingleComplex) {
		t.Errorf("explanation missing classification line:\n%s", joined)
	}
	if !strings.Contains(joined, "no style reference") {
		t.Errorf("explanation missing no-reference line:\n%s", joined)
	}
}
