package director

import (
	"encoding/json"

	"github.com/google/uuid"

	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

// StageParams are the sampler settings for one generation pass.
type StageParams struct {
	Steps    int     `json:"steps"`
	Guidance float64 `json:"guidance"`
	Denoise  float64 `json:"denoise"`
}

// Conditioning is one geometric constraint layer (contour or skeletal).
type Conditioning struct {
	Strength float64 `json:"strength"`
	End      float64 `json:"end"`
}

// StyleInjection is the weighted reference-style influence for one pass.
type StyleInjection struct {
	Weight float64 `json:"weight"`
	End    float64 `json:"end"`
}

// ClampRecord documents one safety-clamp override: which rule fired, which
// field it touched, and the value before and after.
type ClampRecord struct {
	Rule  string  `json:"rule"`
	Field string  `json:"field"`
	Old   float64 `json:"old"`
	New   float64 `json:"new"`
}

// Diagnostics is the audit trail packaged with every plan.
type Diagnostics struct {
	Case         string        `json:"case"`
	Signals      Signals       `json:"signals"`
	NoReference  bool          `json:"no_reference,omitempty"`
	Guidance1Max float64       `json:"guidance1_effective_max"`
	Guidance2Max float64       `json:"guidance2_effective_max"`
	Reasons      []string      `json:"reasons,omitempty"`
	Clamps       []ClampRecord `json:"clamps,omitempty"`
}

// Plan is the final, immutable output consumed by the generation-backend
// adapter. It carries no behavior beyond serialization.
type Plan struct {
	ID              string         `json:"id"`
	Model           string         `json:"model"`
	Sampler         string         `json:"sampler"`
	Scheduler       string         `json:"scheduler"`
	Stage1          StageParams    `json:"stage1"`
	Stage2          StageParams    `json:"stage2"`
	Shape           Conditioning   `json:"shape"`
	Pose            Conditioning   `json:"pose"`
	Style1          StyleInjection `json:"style_stage1"`
	Style2          StyleInjection `json:"style_stage2"`
	PromptModifiers []string       `json:"prompt_modifiers,omitempty"`
	Diagnostics     Diagnostics    `json:"diagnostics"`
}

// planNamespace scopes deterministic plan IDs. Identical inputs must yield
// bit-identical plans, so the ID is derived from the request, not random.
var planNamespace = uuid.MustParse("76c1b6b2-9e2d-4a53-8f5e-3d1a4c2b7e90")

func planID(req Request) string {
	raw, _ := json.Marshal(req)
	return uuid.NewSHA1(planNamespace, raw).String()
}

// assemblePlan packages clamped candidates, the rule-firing list, and the
// signal snapshot into the final plan. Pure packaging; never fails.
func assemblePlan(req Request, table *policy.Table, model, caseName string, b Bounds,
	c candidate, sig Signals, reasons []string, clamps []ClampRecord,
) *Plan {
	return &Plan{
		ID:              planID(req),
		Model:           model,
		Sampler:         table.Sampler,
		Scheduler:       table.Scheduler,
		Stage1:          c.Stage1,
		Stage2:          c.Stage2,
		Shape:           c.Shape,
		Pose:            c.Pose,
		Style1:          c.Style1,
		Style2:          c.Style2,
		PromptModifiers: promptModifiers(req.Reference, table.Thresholds),
		Diagnostics: Diagnostics{
			Case:         caseName,
			Signals:      sig,
			NoReference:  req.Reference == nil,
			Guidance1Max: b.Stage1Guidance.Max,
			Guidance2Max: b.Stage2Guidance.Max,
			Reasons:      reasons,
			Clamps:       clamps,
		},
	}
}

// promptModifiers derives the optional hints for the prompt-construction
// collaborator. The collaborator may use or ignore them.
func promptModifiers(ref *observe.Reference, th policy.Thresholds) []string {
	if ref == nil {
		return nil
	}
	var hints []string
	if ref.Colored {
		hints = append(hints, "reduce style transfer: colored reference detected")
	}
	if ref.ConflictPenalty >= th.ConflictTighten {
		hints = append(hints, "style conflict: keep the subject from the sketch, take only rendering style from the reference")
	}
	if ref.AccessoryMismatch {
		hints = append(hints, "ignore accessories that appear only in the reference")
	}
	return hints
}
