package director

import (
	"fmt"
	"math"

	"linedirector/internal/policy"
)

// clampRule is one hard safety rule. Rules run in declared order and later
// rules may override earlier ones; the order is load-bearing and pinned by
// tests. A firing rule appends one record per field it changed.
type clampRule struct {
	ID    string
	Name  string
	Apply func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord
}

func record(rule, field string, old, new float64) ClampRecord {
	return ClampRecord{Rule: rule, Field: field, Old: old, New: new}
}

// clampRules returns the fixed rule order:
//
//	C1 envelope-clamp      every field into its tightened envelope
//	C2 style-gap           stage-2 style weight <= stage-1 weight - gap
//	C3 style-ceiling       stage-2 style weight <= absolute ceiling
//	C4 style-guidance-cap  heavy stage-2 style injection caps stage-2 guidance
//	C5 strong-conditioning strong shape/pose lock decrements stage-1 guidance
//	C6 hallucination-damp  high H decrements guidance and stage-2 denoise
//	C7 stage-order         stage-2 guidance <= stage-1 guidance, final check
func clampRules() []clampRule {
	return []clampRule{
		{
			ID: "C1", Name: "envelope-clamp",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				var recs []ClampRecord
				clampF := func(field string, v *float64, e policy.Envelope) {
					if e.Contains(*v) {
						return
					}
					old := *v
					*v = e.Clamp(*v)
					recs = append(recs, record("envelope-clamp", field, old, *v))
				}
				clampSteps := func(field string, v *int, e policy.Envelope) {
					old := *v
					n := int(math.Round(e.Clamp(float64(*v))))
					if n != old {
						*v = n
						recs = append(recs, record("envelope-clamp", field, float64(old), float64(n)))
					}
				}
				clampF("stage1.guidance", &c.Stage1.Guidance, b.Stage1Guidance)
				clampF("stage2.guidance", &c.Stage2.Guidance, b.Stage2Guidance)
				clampF("stage1.denoise", &c.Stage1.Denoise, b.Stage1Denoise)
				clampF("stage2.denoise", &c.Stage2.Denoise, b.Stage2Denoise)
				clampSteps("stage1.steps", &c.Stage1.Steps, b.Steps)
				clampSteps("stage2.steps", &c.Stage2.Steps, b.Steps)
				clampF("shape.strength", &c.Shape.Strength, b.ShapeStrength)
				clampF("shape.end", &c.Shape.End, b.ShapeEnd)
				clampF("pose.strength", &c.Pose.Strength, b.PoseStrength)
				clampF("pose.end", &c.Pose.End, b.PoseEnd)
				// A zero style weight means the style path is disabled; its
				// end point stays zero and is exempt from the end envelope.
				if c.Style1.Weight > 0 {
					clampF("style1.weight", &c.Style1.Weight, b.Style1Weight)
					clampF("style1.end", &c.Style1.End, b.Style1End)
				}
				if c.Style2.Weight > 0 {
					clampF("style2.weight", &c.Style2.Weight, b.Style2Weight)
					clampF("style2.end", &c.Style2.End, b.Style2End)
				}
				return recs
			},
		},
		{
			ID: "C2", Name: "style-gap",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				if c.Style2.Weight == 0 {
					return nil
				}
				limit := c.Style1.Weight - th.MinStyleGap
				if limit < 0 {
					limit = 0
				}
				if c.Style2.Weight <= limit {
					return nil
				}
				old := c.Style2.Weight
				c.Style2.Weight = limit
				return []ClampRecord{record("style-gap", "style2.weight", old, limit)}
			},
		},
		{
			ID: "C3", Name: "style-ceiling",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				if c.Style2.Weight <= th.StyleCeiling {
					return nil
				}
				old := c.Style2.Weight
				c.Style2.Weight = th.StyleCeiling
				return []ClampRecord{record("style-ceiling", "style2.weight", old, th.StyleCeiling)}
			},
		},
		{
			ID: "C4", Name: "style-guidance-cap",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				var recs []ClampRecord
				for _, gc := range th.StyleGuidanceCaps {
					if c.Style2.Weight > gc.WeightAbove && c.Stage2.Guidance > gc.GuidanceMax {
						old := c.Stage2.Guidance
						c.Stage2.Guidance = gc.GuidanceMax
						recs = append(recs, record("style-guidance-cap", "stage2.guidance", old, gc.GuidanceMax))
					}
				}
				return recs
			},
		},
		{
			ID: "C5", Name: "strong-conditioning",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				if c.Shape.Strength < th.StrongConditioning && c.Pose.Strength < th.StrongConditioning {
					return nil
				}
				old := c.Stage1.Guidance
				lowered := math.Max(b.Stage1Guidance.Min, old-th.StrongConditioningDecrement)
				if lowered == old {
					return nil
				}
				c.Stage1.Guidance = lowered
				return []ClampRecord{record("strong-conditioning", "stage1.guidance", old, lowered)}
			},
		},
		{
			ID: "C6", Name: "hallucination-damp",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				if sig.Hallucination < th.HallucinationThreshold {
					return nil
				}
				var recs []ClampRecord
				damp := func(field string, v *float64, floor, dec float64) {
					old := *v
					lowered := math.Max(floor, old-dec)
					if lowered < old {
						*v = lowered
						recs = append(recs, record("hallucination-damp", field, old, lowered))
					}
				}
				damp("stage1.guidance", &c.Stage1.Guidance, b.Stage1Guidance.Min, th.HallucinationGuidanceDecrement)
				damp("stage2.guidance", &c.Stage2.Guidance, b.Stage2Guidance.Min, th.HallucinationGuidanceDecrement)
				damp("stage2.denoise", &c.Stage2.Denoise, b.Stage2Denoise.Min, th.HallucinationDenoiseDecrement)
				return recs
			},
		},
		{
			ID: "C7", Name: "stage-order",
			Apply: func(c *candidate, b Bounds, th policy.Thresholds, sig Signals) []ClampRecord {
				var recs []ClampRecord
				if c.Stage2.Guidance > c.Stage1.Guidance {
					old := c.Stage2.Guidance
					c.Stage2.Guidance = c.Stage1.Guidance
					recs = append(recs, record("stage-order", "stage2.guidance", old, c.Stage2.Guidance))
				}
				if c.Stage2.Denoise > c.Stage1.Denoise {
					old := c.Stage2.Denoise
					c.Stage2.Denoise = c.Stage1.Denoise
					recs = append(recs, record("stage-order", "stage2.denoise", old, c.Stage2.Denoise))
				}
				if c.Stage2.Steps > c.Stage1.Steps {
					old := c.Stage2.Steps
					c.Stage2.Steps = c.Stage1.Steps
					recs = append(recs, record("stage-order", "stage2.steps", float64(old), float64(c.Stage2.Steps)))
				}
				return recs
			},
		},
	}
}

// applyClamps runs the ordered rules over the candidates. It fails only if a
// tightened envelope is empty, which is a policy defect, never a per-request
// condition.
func applyClamps(c *candidate, b Bounds, th policy.Thresholds, sig Signals) ([]ClampRecord, error) {
	for field, e := range map[string]policy.Envelope{
		"stage1_guidance": b.Stage1Guidance, "stage2_guidance": b.Stage2Guidance,
		"stage1_denoise": b.Stage1Denoise, "stage2_denoise": b.Stage2Denoise,
		"steps": b.Steps, "shape_strength": b.ShapeStrength, "shape_end": b.ShapeEnd,
		"pose_strength": b.PoseStrength, "pose_end": b.PoseEnd,
		"stage1_style_weight": b.Style1Weight, "stage2_style_weight": b.Style2Weight,
		"stage1_style_end": b.Style1End, "stage2_style_end": b.Style2End,
	} {
		if e.Empty() {
			return nil, fmt.Errorf("%w: tightened envelope %s is empty (min %.3f > max %.3f)",
				policy.ErrInvalidPolicy, field, e.Min, e.Max)
		}
	}

	var records []ClampRecord
	for _, rule := range clampRules() {
		records = append(records, rule.Apply(c, b, th, sig)...)
	}
	return records, nil
}
