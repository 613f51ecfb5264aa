// Package comfy maps a finished parameter plan onto the node inputs of the
// two-stage ComfyUI API workflow. It is a pure mapping: transport, queueing,
// and polling against the backend belong to the caller.
package comfy

import (
	"encoding/json"
	"fmt"

	"linedirector/internal/director"
)

// Node IDs of the two-stage API workflow.
const (
	NodeSampler1     = "5"   // structural setup pass
	NodeSampler2     = "55"  // ink refinement pass
	NodeShapeControl = "103" // union ControlNet (contour lock)
	NodePoseControl  = "104" // OpenPose ControlNet (skeletal lock)
	NodeStyleStage1  = "66"  // IP-Adapter feeding sampler 1
	NodeStyleStage2  = "105" // IP-Adapter feeding sampler 2
)

// Patch sets one node input to a value.
type Patch struct {
	Node  string `json:"node"`
	Input string `json:"input"`
	Value any    `json:"value"`
}

// Patches flattens a plan into the ordered node-input assignments for the
// workflow. Every numeric plan field maps to exactly one input.
func Patches(p *director.Plan) []Patch {
	return []Patch{
		{NodeSampler1, "steps", p.Stage1.Steps},
		{NodeSampler1, "cfg", p.Stage1.Guidance},
		{NodeSampler1, "denoise", p.Stage1.Denoise},
		{NodeSampler1, "sampler_name", p.Sampler},
		{NodeSampler1, "scheduler", p.Scheduler},
		{NodeSampler2, "steps", p.Stage2.Steps},
		{NodeSampler2, "cfg", p.Stage2.Guidance},
		{NodeSampler2, "denoise", p.Stage2.Denoise},
		{NodeSampler2, "sampler_name", p.Sampler},
		{NodeSampler2, "scheduler", p.Scheduler},
		{NodeShapeControl, "strength", p.Shape.Strength},
		{NodeShapeControl, "end_percent", p.Shape.End},
		{NodePoseControl, "strength", p.Pose.Strength},
		{NodePoseControl, "end_percent", p.Pose.End},
		{NodeStyleStage1, "weight", p.Style1.Weight},
		{NodeStyleStage1, "end_at", p.Style1.End},
		{NodeStyleStage2, "weight", p.Style2.Weight},
		{NodeStyleStage2, "end_at", p.Style2.End},
	}
}

// ApplyToWorkflow patches an API-format workflow document (node id ->
// {"inputs": {...}}) with the plan's values and returns the updated JSON.
// Nodes absent from the document are an error: a workflow that silently
// drops a safety-clamped parameter would defeat the clamp.
func ApplyToWorkflow(workflowJSON []byte, p *director.Plan) ([]byte, error) {
	var doc map[string]map[string]any
	if err := json.Unmarshal(workflowJSON, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	for _, patch := range Patches(p) {
		node, ok := doc[patch.Node]
		if !ok {
			return nil, fmt.Errorf("workflow has no node %s (wanted for %s)", patch.Node, patch.Input)
		}
		inputs, ok := node["inputs"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("node %s has no inputs object", patch.Node)
		}
		inputs[patch.Input] = patch.Value
	}
	return json.MarshalIndent(doc, "", "  ")
}
