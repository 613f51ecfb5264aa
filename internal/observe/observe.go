// Package observe defines the input contracts the director receives from its
// external collaborators: the sketch-analysis report, the optional
// reference-comparison report, and the caller's intent options. All three are
// value types; the director never mutates them.
package observe

import (
	"errors"
	"fmt"
)

// ErrInvalidObservation marks a required observation field that is missing or
// outside its domain. No plan is produced.
var ErrInvalidObservation = errors.New("invalid observation")

// ErrUnclassifiable marks an observation with no usable subject cardinality
// or scale hint, so no case profile can be selected.
var ErrUnclassifiable = errors.New("unclassifiable input")

// LineQuality describes line cleanliness as reported by the analyst.
type LineQuality string

const (
	LineMessy      LineQuality = "messy"
	LineStructured LineQuality = "structured"
	LineClean      LineQuality = "clean"
)

// RiskLevel grades how risky anatomy correction is for this sketch.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Complexity is the analyst's line-density bucket.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityComplex Complexity = "complex"
)

// ObjectScale is the analyst's hint about how much of the frame the main
// subject occupies.
type ObjectScale string

const (
	ScaleSmall  ObjectScale = "small"
	ScaleMedium ObjectScale = "medium"
	ScaleLarge  ObjectScale = "large"
)

// Phase is the destination animation phase requested by the caller.
type Phase string

const (
	PhaseTieDown Phase = "tiedown"
	PhaseCleanup Phase = "cleanup"
	PhaseInk     Phase = "ink"
)

// Sketch is the qualitative report produced once per request by the
// sketch-analysis collaborator.
type Sketch struct {
	LineQuality         LineQuality `json:"line_quality"`
	AnatomyRisk         RiskLevel   `json:"anatomy_risk"`
	Complexity          Complexity  `json:"complexity"`
	ConstructionDensity float64     `json:"construction_density"`
	BrokenDensity       float64     `json:"broken_density"`
	SubjectTags         []string    `json:"subject_tags"`
	SubjectCount        int         `json:"subject_count"`
	ObjectScale         ObjectScale `json:"object_scale"`
}

// Reference is the optional report from the reference-comparison collaborator.
// A nil *Reference is a valid input meaning "no reference supplied".
type Reference struct {
	Similarity        float64 `json:"similarity"`
	ConflictPenalty   float64 `json:"conflict_penalty"`
	StyleDistance     float64 `json:"style_distance"`
	Colored           bool    `json:"colored"`
	AccessoryMismatch bool    `json:"accessory_mismatch"`
}

// Intent carries the caller-supplied generation options.
type Intent struct {
	TransformStrength  float64 `json:"transform_strength"`
	PoseLock           bool    `json:"pose_lock"`
	StyleLock          bool    `json:"style_lock"`
	StyleMatchOverride bool    `json:"style_match_override"`
	DestinationPhase   Phase   `json:"destination_phase"`
	ModelOverride      string  `json:"model_override,omitempty"`
}

// DefaultIntent returns the options used when the caller supplies none.
func DefaultIntent() Intent {
	return Intent{
		TransformStrength: 0.5,
		PoseLock:          true,
		StyleLock:         false,
		DestinationPhase:  PhaseCleanup,
	}
}

// Validate checks the sketch report for missing or out-of-domain fields.
// Cardinality/scale hints are checked separately by the classifier, which
// distinguishes "unclassifiable" from "malformed".
func (s *Sketch) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: sketch report is nil", ErrInvalidObservation)
	}
	switch s.LineQuality {
	case LineMessy, LineStructured, LineClean:
	case "":
		return fmt.Errorf("%w: line_quality is required", ErrInvalidObservation)
	default:
		return fmt.Errorf("%w: line_quality %q not in {messy, structured, clean}", ErrInvalidObservation, s.LineQuality)
	}
	switch s.AnatomyRisk {
	case RiskLow, RiskMedium, RiskHigh:
	case "":
		return fmt.Errorf("%w: anatomy_risk is required", ErrInvalidObservation)
	default:
		return fmt.Errorf("%w: anatomy_risk %q not in {low, medium, high}", ErrInvalidObservation, s.AnatomyRisk)
	}
	switch s.Complexity {
	case ComplexitySimple, ComplexityComplex:
	case "":
		return fmt.Errorf("%w: complexity is required", ErrInvalidObservation)
	default:
		return fmt.Errorf("%w: complexity %q not in {simple, complex}", ErrInvalidObservation, s.Complexity)
	}
	if s.ConstructionDensity < 0 || s.ConstructionDensity > 1 {
		return fmt.Errorf("%w: construction_density %.3f outside [0,1]", ErrInvalidObservation, s.ConstructionDensity)
	}
	if s.BrokenDensity < 0 || s.BrokenDensity > 1 {
		return fmt.Errorf("%w: broken_density %.3f outside [0,1]", ErrInvalidObservation, s.BrokenDensity)
	}
	if len(s.SubjectTags) == 0 {
		return fmt.Errorf("%w: subject_tags is required", ErrInvalidObservation)
	}
	if s.SubjectCount < 0 {
		return fmt.Errorf("%w: subject_count %d is negative", ErrInvalidObservation, s.SubjectCount)
	}
	switch s.ObjectScale {
	case ScaleSmall, ScaleMedium, ScaleLarge, "":
	default:
		return fmt.Errorf("%w: object_scale %q not in {small, medium, large}", ErrInvalidObservation, s.ObjectScale)
	}
	return nil
}

// HasCardinalityHint reports whether the classifier has anything to work with.
func (s *Sketch) HasCardinalityHint() bool {
	return s.SubjectCount > 0 || s.ObjectScale != ""
}

// Validate checks the reference report's numeric domains.
func (r *Reference) Validate() error {
	if r == nil {
		return nil // absence is a valid input
	}
	if r.Similarity < 0 || r.Similarity > 1 {
		return fmt.Errorf("%w: similarity %.3f outside [0,1]", ErrInvalidObservation, r.Similarity)
	}
	if r.ConflictPenalty < 0 || r.ConflictPenalty > 1 {
		return fmt.Errorf("%w: conflict_penalty %.3f outside [0,1]", ErrInvalidObservation, r.ConflictPenalty)
	}
	if r.StyleDistance < 0 || r.StyleDistance > 1 {
		return fmt.Errorf("%w: style_distance %.3f outside [0,1]", ErrInvalidObservation, r.StyleDistance)
	}
	return nil
}

// Validate checks the intent options.
func (in *Intent) Validate() error {
	if in.TransformStrength < 0 || in.TransformStrength > 1 {
		return fmt.Errorf("%w: transform_strength %.3f outside [0,1]", ErrInvalidObservation, in.TransformStrength)
	}
	switch in.DestinationPhase {
	case PhaseTieDown, PhaseCleanup, PhaseInk, "":
	default:
		return fmt.Errorf("%w: destination_phase %q not in {tiedown, cleanup, ink}", ErrInvalidObservation, in.DestinationPhase)
	}
	return nil
}
