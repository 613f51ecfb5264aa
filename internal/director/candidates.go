package director

import (
	"math"

	"linedirector/internal/observe"
)

// candidate holds the raw first-estimate parameters before the safety clamp.
type candidate struct {
	Stage1 StageParams
	Stage2 StageParams
	Shape  Conditioning
	Pose   Conditioning
	Style1 StyleInjection
	Style2 StyleInjection
}

// Guidance seed: base_guidance = 7.2 + 1.8 * transform_strength.
const (
	guidanceBase      = 7.2
	guidanceIntentMul = 1.8
	guidanceStage2Gap = 0.5
)

const (
	stage2DenoiseRatio = 0.45
	stage2StepDrop     = 6
)

// generateCandidates computes raw candidates for every plan field from the
// tightened envelope and the signals. Formulas only estimate; the safety
// clamp owns every hard guarantee.
func generateCandidates(b Bounds, sig Signals, in observe.Intent) candidate {
	var c candidate
	repair := 1 - sig.Structure

	base := guidanceBase + guidanceIntentMul*in.TransformStrength
	c.Stage1.Guidance = b.Stage1Guidance.Clamp(base + 0.3*repair)
	c.Stage2.Guidance = math.Min(b.Stage2Guidance.Clamp(base-guidanceStage2Gap), c.Stage1.Guidance)

	c.Stage1.Denoise = b.Stage1Denoise.Lerp(repair)
	c.Stage2.Denoise = math.Min(
		b.Stage2Denoise.Clamp(stage2DenoiseRatio*c.Stage1.Denoise+0.05*repair),
		c.Stage1.Denoise)

	c.Stage1.Steps = int(math.Round(b.Steps.Lerp(repair)))
	c.Stage2.Steps = c.Stage1.Steps - stage2StepDrop
	if min := int(math.Round(b.Steps.Min)); c.Stage2.Steps < min {
		c.Stage2.Steps = min
	}

	// Contour lock: a confident sketch keeps strong, long-held shape
	// conditioning; a messy one releases earlier so repair has room.
	width := b.ShapeStrength.Max - b.ShapeStrength.Min
	c.Shape.Strength = b.ShapeStrength.Clamp(b.ShapeStrength.Max - 0.5*repair*width)
	c.Shape.End = b.ShapeEnd.Lerp(sig.Structure)

	c.Pose.Strength = b.PoseStrength.Lerp(sig.PoseRisk)
	c.Pose.End = b.PoseEnd.Lerp(sig.PoseRisk)

	// R=0 means the style path is ignored entirely: zero weight, zero end,
	// for both stages. A fully conflicted reference therefore produces the
	// same style fields as no reference at all.
	if sig.Reference == 0 {
		return c
	}

	c.Style1.Weight = b.Style1Weight.Clamp(b.Style1Weight.Max * sig.Reference)
	c.Style2.Weight = b.Style2Weight.Clamp(b.Style2Weight.Max * sig.Reference * (1 - 0.5*sig.StyleDistance))
	c.Style1.End = b.Style1End.Clamp(b.Style1End.Max - 0.2*sig.StyleDistance*(b.Style1End.Max-b.Style1End.Min))
	c.Style2.End = b.Style2End.Clamp(b.Style2End.Max - 0.2*sig.StyleDistance*(b.Style2End.Max-b.Style2End.Min))
	return c
}
