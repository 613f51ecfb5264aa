package director

import (
	"fmt"

	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

// Bounds is the per-request envelope set: the selected profile's envelopes,
// possibly narrowed by the adjuster. Bounds only ever shrink relative to the
// profile baseline; they never finalize a value.
type Bounds struct {
	Stage1Guidance policy.Envelope
	Stage2Guidance policy.Envelope
	Stage1Denoise  policy.Envelope
	Stage2Denoise  policy.Envelope
	Steps          policy.Envelope
	ShapeStrength  policy.Envelope
	ShapeEnd       policy.Envelope
	PoseStrength   policy.Envelope
	PoseEnd        policy.Envelope
	Style1Weight   policy.Envelope
	Style2Weight   policy.Envelope
	Style1End      policy.Envelope
	Style2End      policy.Envelope
}

// BoundsFromProfile copies a profile's envelopes into a mutable bounds set.
func BoundsFromProfile(p policy.Profile) Bounds {
	return Bounds{
		Stage1Guidance: p.Stage1Guidance,
		Stage2Guidance: p.Stage2Guidance,
		Stage1Denoise:  p.Stage1Denoise,
		Stage2Denoise:  p.Stage2Denoise,
		Steps:          p.Steps,
		ShapeStrength:  p.ShapeStrength,
		ShapeEnd:       p.ShapeEnd,
		PoseStrength:   p.PoseStrength,
		PoseEnd:        p.PoseEnd,
		Style1Weight:   p.Stage1StyleWeight,
		Style2Weight:   p.Stage2StyleWeight,
		Style1End:      p.Stage1StyleEnd,
		Style2End:      p.Stage2StyleEnd,
	}
}

// lowerMax tightens an envelope's ceiling. It never loosens and never makes
// the envelope empty: the floor is the hard limit of any tightening.
func lowerMax(e *policy.Envelope, v float64) bool {
	if v >= e.Max {
		return false
	}
	if v < e.Min {
		v = e.Min
	}
	e.Max = v
	return true
}

// raiseMin tightens an envelope's floor, capped at the ceiling.
func raiseMin(e *policy.Envelope, v float64) bool {
	if v <= e.Min {
		return false
	}
	if v > e.Max {
		v = e.Max
	}
	e.Min = v
	return true
}

// Signal levels at which the adjuster reacts.
const (
	lowStructure     = 0.40
	highStructure    = 0.75
	highPoseRisk     = 0.70
	styleConflictCut = 0.85 // fraction kept of style ceilings under high pose risk
)

// AdjustBounds narrows the profile envelopes using the signals, the
// reference flags, and the caller intent. The rules run in a fixed order and
// each may only tighten what earlier rules left. Reference-conflict
// tightening deliberately precedes pose-risk adjustment; the clamp stage
// re-checks the style invariants afterwards, so the order is a contract, not
// an accident.
func AdjustBounds(b Bounds, sig Signals, sk *observe.Sketch, ref *observe.Reference, in observe.Intent, th policy.Thresholds) (Bounds, []string) {
	var reasons []string

	// Intent: style lock caps the injection ceiling before anything else,
	// unless the caller explicitly trusts the style match.
	if in.StyleLock && !in.StyleMatchOverride {
		if lowerMax(&b.Style1Weight, th.StyleLockCeiling) || lowerMax(&b.Style2Weight, th.StyleLockCeiling) {
			reasons = append(reasons, fmt.Sprintf("style-lock: style weight ceilings capped at %.2f", th.StyleLockCeiling))
		}
	}

	// 1. Reference conflict / colored-finished reference.
	if ref != nil {
		if ref.ConflictPenalty >= th.ConflictTighten || ref.Colored {
			lowerMax(&b.Style1Weight, b.Style1Weight.Max*0.5)
			lowerMax(&b.Style2Weight, th.ColoredStyleWeightCap)
			lowerMax(&b.Style2End, b.Style2End.Min)
			why := "high conflict"
			if ref.Colored {
				why = "colored reference"
			}
			reasons = append(reasons, fmt.Sprintf("reference-conflict (%s): style ceilings lowered, stage-2 style end pulled to %.2f", why, b.Style2End.Max))
		}
	}

	// 2. Structure confidence steers repair room.
	if sig.Structure < lowStructure {
		if raiseMin(&b.Stage1Denoise, b.Stage1Denoise.Lerp(0.5)) {
			reasons = append(reasons, fmt.Sprintf("low structure confidence: stage-1 denoise floor raised to %.2f", b.Stage1Denoise.Min))
		}
	} else if sig.Structure > highStructure {
		if lowerMax(&b.Stage2Denoise, b.Stage2Denoise.Lerp(0.6)) {
			reasons = append(reasons, fmt.Sprintf("high structure confidence: stage-2 denoise ceiling lowered to %.2f", b.Stage2Denoise.Max))
		}
	}

	// 3. Pose risk raises conditioning floors and caps the competing style
	// force. Pose lock forces the strength floor to the profile ceiling.
	if sig.PoseRisk >= highPoseRisk {
		if in.PoseLock {
			raiseMin(&b.PoseStrength, b.PoseStrength.Max)
			reasons = append(reasons, fmt.Sprintf("pose-lock: pose strength forced to %.2f", b.PoseStrength.Max))
		} else {
			raiseMin(&b.PoseStrength, b.PoseStrength.Lerp(sig.PoseRisk))
			reasons = append(reasons, fmt.Sprintf("high pose risk: pose strength floor raised to %.2f", b.PoseStrength.Min))
		}
		if raiseMin(&b.PoseEnd, b.PoseEnd.Lerp(sig.PoseRisk)) {
			reasons = append(reasons, fmt.Sprintf("high pose risk: pose end floor raised to %.2f", b.PoseEnd.Min))
		}
		cut1 := lowerMax(&b.Style1Weight, b.Style1Weight.Max*styleConflictCut)
		cut2 := lowerMax(&b.Style2Weight, b.Style2Weight.Max*styleConflictCut)
		if cut1 || cut2 {
			reasons = append(reasons, fmt.Sprintf("high pose risk: style weight ceilings cut to %.2f and %.2f",
				b.Style1Weight.Max, b.Style2Weight.Max))
		}
	}

	// 4. Object scale tunes the shape-conditioning ceiling: a frame-filling
	// subject tolerates less contour force before its lines go rigid.
	switch sk.ObjectScale {
	case observe.ScaleLarge:
		if lowerMax(&b.ShapeStrength, b.ShapeStrength.Lerp(0.7)) {
			reasons = append(reasons, fmt.Sprintf("large subject: shape strength ceiling lowered to %.2f", b.ShapeStrength.Max))
		}
	case observe.ScaleSmall:
		// Small subjects keep the full profile ceiling.
	}

	return b, reasons
}
