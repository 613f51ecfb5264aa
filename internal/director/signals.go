package director

import (
	"fmt"

	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

// Signals are the five bounded scalars the engine steers by. S, R, D and P
// are extracted from the observations; H is estimated in a second pass once
// candidate parameters exist, because hallucination risk is a property of the
// candidate plan, not of the raw inputs.
type Signals struct {
	Structure     float64 `json:"S_structure_confidence"`
	Reference     float64 `json:"R_reference_reliability"`
	StyleDistance float64 `json:"D_style_distance"`
	PoseRisk      float64 `json:"P_pose_risk"`
	Hallucination float64 `json:"H_hallucination_risk"`
}

// Weights of the structure-confidence sum.
const (
	wQuality      = 0.40
	wConstruction = 0.30
	wBroken       = 0.30
)

const coloredStyleDistanceBoost = 0.15

// poseLockFloor is the minimum pose risk when the caller locks the pose:
// a locked pose is always worth protecting, however safe the anatomy looks.
const poseLockFloor = 0.75

// ExtractSignals turns the observations and intent into {S, R, D, P}.
// H is left at zero; EstimateHallucination fills it after candidates exist.
// The returned reasons note any signal-level decisions (no-reference marker,
// pose-lock boost) for the diagnostics trail.
func ExtractSignals(sk *observe.Sketch, ref *observe.Reference, in observe.Intent) (Signals, []string, error) {
	if err := sk.Validate(); err != nil {
		return Signals{}, nil, err
	}
	if err := ref.Validate(); err != nil {
		return Signals{}, nil, err
	}
	if err := in.Validate(); err != nil {
		return Signals{}, nil, err
	}

	var sig Signals
	var reasons []string

	q := map[observe.LineQuality]float64{
		observe.LineMessy:      0.15,
		observe.LineStructured: 0.55,
		observe.LineClean:      0.95,
	}[sk.LineQuality]
	sig.Structure = clamp01(wQuality*q +
		wConstruction*(1-sk.ConstructionDensity) +
		wBroken*(1-sk.BrokenDensity))

	if ref == nil {
		// R=0 means "ignore the style path", not a failure; downstream
		// stages zero the style injection entirely.
		reasons = append(reasons, "no-reference: style injection disabled")
	} else {
		sig.Reference = clamp01(ref.Similarity * (1 - ref.ConflictPenalty))
		sig.StyleDistance = ref.StyleDistance
		if ref.Colored {
			sig.StyleDistance = clamp01(sig.StyleDistance + coloredStyleDistanceBoost)
		}
		if sig.Reference == 0 {
			reasons = append(reasons, "reference unusable (reliability 0): style injection disabled")
		}
	}

	sig.PoseRisk = map[observe.RiskLevel]float64{
		observe.RiskLow:    0.20,
		observe.RiskMedium: 0.55,
		observe.RiskHigh:   0.90,
	}[sk.AnatomyRisk]
	if in.PoseLock && sig.PoseRisk < poseLockFloor {
		sig.PoseRisk = poseLockFloor
		reasons = append(reasons, fmt.Sprintf("pose-lock: pose risk raised to %.2f", poseLockFloor))
	}

	return sig, reasons, nil
}

// Normalization of the stage-2 guidance excess term: guidance at or below
// the floor contributes nothing, the span maps onto [0,1].
const (
	hallucinationGuidanceFloor = 6.5
	hallucinationGuidanceSpan  = 1.5
)

// EstimateHallucination scores how likely the candidate plan is to fabricate
// ungrounded detail. Inputs are the stage-2 candidates (guidance, denoise,
// style weight) and the reference conflict level; the term weights are
// policy data so the estimator can be retuned without a rebuild.
func EstimateHallucination(w policy.HallucinationWeights, guidance2, denoise2, styleWeight2, conflict float64) float64 {
	excess := clamp01((guidance2 - hallucinationGuidanceFloor) / hallucinationGuidanceSpan)
	return clamp01(w.GuidanceExcess*excess +
		w.Stage2Denoise*denoise2 +
		w.StyleWeight*styleWeight2 +
		w.Conflict*conflict)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
