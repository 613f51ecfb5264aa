package comfy

import (
	"encoding/json"
	"strings"
	"testing"

	"linedirector/internal/director"
)

func samplePlan() *director.Plan {
	return &director.Plan{
		ID:        "test-plan",
		Model:     "animagine-xl-3.1.safetensors",
		Sampler:   "euler",
		Scheduler: "simple",
		Stage1:    director.StageParams{Steps: 30, Guidance: 7.9, Denoise: 0.62},
		Stage2:    director.StageParams{Steps: 26, Guidance: 7.6, Denoise: 0.30},
		Shape:     director.Conditioning{Strength: 1.12, End: 0.78},
		Pose:      director.Conditioning{Strength: 1.20, End: 0.93},
		Style1:    director.StyleInjection{Weight: 0.45, End: 0.80},
		Style2:    director.StyleInjection{Weight: 0.30, End: 0.60},
	}
}

func TestPatchesCoverEveryField(t *testing.T) {
	patches := Patches(samplePlan())
	if len(patches) != 18 {
		t.Fatalf("patches = %d, want 18", len(patches))
	}
	seen := map[string]bool{}
	for _, p := range patches {
		key := p.Node + "/" + p.Input
		if seen[key] {
			t.Errorf("duplicate patch for %s", key)
		}
		seen[key] = true
	}
	for _, key := range []string{
		NodeSampler1 + "/steps", NodeSampler1 + "/cfg", NodeSampler1 + "/denoise",
		NodeSampler2 + "/steps", NodeSampler2 + "/cfg", NodeSampler2 + "/denoise",
		NodeShapeControl + "/strength", NodeShapeControl + "/end_percent",
		NodePoseControl + "/strength", NodePoseControl + "/end_percent",
		NodeStyleStage1 + "/weight", NodeStyleStage1 + "/end_at",
		NodeStyleStage2 + "/weight", NodeStyleStage2 + "/end_at",
	} {
		if !seen[key] {
			t.Errorf("missing patch for %s", key)
		}
	}
}

func testWorkflow() []byte {
	doc := map[string]map[string]any{}
	for _, node := range []string{
		NodeSampler1, NodeSampler2, NodeShapeControl,
		NodePoseControl, NodeStyleStage1, NodeStyleStage2,
	} {
		doc[node] = map[string]any{"inputs": map[string]any{}}
	}
	raw, _ := json.Marshal(doc)
	return raw
}

func TestApplyToWorkflow(t *testing.T) {
	plan := samplePlan()
	out, err := ApplyToWorkflow(testWorkflow(), plan)
	if err != nil {
		t.Fatalf("ApplyToWorkflow() = %v", err)
	}

	var doc map[string]map[string]any
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	inputs := doc[NodeSampler1]["inputs"].(map[string]any)
	if got := inputs["cfg"].(float64); got != plan.Stage1.Guidance {
		t.Errorf("sampler1 cfg = %v, want %v", got, plan.Stage1.Guidance)
	}
	if got := inputs["sampler_name"].(string); got != plan.Sampler {
		t.Errorf("sampler1 sampler_name = %q, want %q", got, plan.Sampler)
	}
	inputs = doc[NodeStyleStage2]["inputs"].(map[string]any)
	if got := inputs["weight"].(float64); got != plan.Style2.Weight {
		t.Errorf("style2 weight = %v, want %v", got, plan.Style2.Weight)
	}
}

func TestApplyToWorkflowMissingNode(t *testing.T) {
	doc := map[string]map[string]any{
		NodeSampler1: {"inputs": map[string]any{}},
	}
	raw, _ := json.Marshal(doc)
	_, err := ApplyToWorkflow(raw, samplePlan())
	if err == nil {
		t.Fatal("expected an error for a workflow missing nodes")
	}
	if !strings.Contains(err.Error(), "no node") {
		t.Errorf("err = %v, want a missing-node message", err)
	}
}

func TestApplyToWorkflowBadJSON(t *testing.T) {
	if _, err := ApplyToWorkflow([]byte("not json"), samplePlan()); err == nil {
		t.Fatal("expected a parse error")
	}
}
