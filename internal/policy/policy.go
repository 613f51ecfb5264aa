// Package policy holds the read-only parameter policy: per-case envelopes,
// clamp thresholds, and destination-phase shifts. The table is loaded once
// (from the embedded default or an external YAML file), validated, and never
// mutated afterwards. A reloading caller must swap in a whole new *Table.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy marks an internally inconsistent profile/threshold table.
// This is a deployment defect: it should fail process startup, never surface
// per request.
var ErrInvalidPolicy = errors.New("invalid policy")

// Case profile names. The classifier only ever returns one of these.
const (
	CaseSingleSimple  = "single-simple"
	CaseSingleComplex = "single-complex"
	CaseMultiObject   = "multi-object"
)

//go:embed policy.yaml
var defaultYAML []byte

// Envelope is a closed [Min, Max] range for one plan parameter.
type Envelope struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Empty reports whether the envelope admits no value.
func (e Envelope) Empty() bool { return e.Min > e.Max }

// Clamp forces v into the envelope.
func (e Envelope) Clamp(v float64) float64 {
	if v < e.Min {
		return e.Min
	}
	if v > e.Max {
		return e.Max
	}
	return v
}

// Lerp maps t in [0,1] onto the envelope linearly.
func (e Envelope) Lerp(t float64) float64 {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return e.Min + t*(e.Max-e.Min)
}

// Contains reports whether v lies inside the envelope.
func (e Envelope) Contains(v float64) bool { return v >= e.Min && v <= e.Max }

// Profile is one case bucket's parameter envelopes.
type Profile struct {
	Stage1Guidance    Envelope `yaml:"stage1_guidance" json:"stage1_guidance"`
	Stage2Guidance    Envelope `yaml:"stage2_guidance" json:"stage2_guidance"`
	Stage1Denoise     Envelope `yaml:"stage1_denoise" json:"stage1_denoise"`
	Stage2Denoise     Envelope `yaml:"stage2_denoise" json:"stage2_denoise"`
	Steps             Envelope `yaml:"steps" json:"steps"`
	ShapeStrength     Envelope `yaml:"shape_strength" json:"shape_strength"`
	ShapeEnd          Envelope `yaml:"shape_end" json:"shape_end"`
	PoseStrength      Envelope `yaml:"pose_strength" json:"pose_strength"`
	PoseEnd           Envelope `yaml:"pose_end" json:"pose_end"`
	Stage1StyleWeight Envelope `yaml:"stage1_style_weight" json:"stage1_style_weight"`
	Stage2StyleWeight Envelope `yaml:"stage2_style_weight" json:"stage2_style_weight"`
	Stage1StyleEnd    Envelope `yaml:"stage1_style_end" json:"stage1_style_end"`
	Stage2StyleEnd    Envelope `yaml:"stage2_style_end" json:"stage2_style_end"`
}

// GuidanceCap pairs a stage-2 style weight trigger with a stage-2 guidance
// ceiling. Caps are applied in declared order; later caps override earlier.
type GuidanceCap struct {
	WeightAbove float64 `yaml:"weight_above" json:"weight_above"`
	GuidanceMax float64 `yaml:"guidance_max" json:"guidance_max"`
}

// HallucinationWeights are the term weights of the hallucination estimate.
// They are policy data like the other clamp constants: retuning the estimator
// must not need a rebuild.
type HallucinationWeights struct {
	GuidanceExcess float64 `yaml:"guidance_excess" json:"guidance_excess"`
	Stage2Denoise  float64 `yaml:"stage2_denoise" json:"stage2_denoise"`
	StyleWeight    float64 `yaml:"style_weight" json:"style_weight"`
	Conflict       float64 `yaml:"conflict" json:"conflict"`
}

// ModelRule maps subject tags onto a checkpoint choice.
type ModelRule struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Model    string   `yaml:"model" json:"model"`
}

// ModelTable drives checkpoint selection: a caller override wins (with a
// warning when the override is a shaded checkpoint, which adds rendering to
// line passes), then the first subject rule whose keyword matches a subject
// tag, then the default.
type ModelTable struct {
	Default      string      `yaml:"default" json:"default"`
	Shaded       []string    `yaml:"shaded" json:"shaded"`
	SubjectRules []ModelRule `yaml:"subject_rules" json:"subject_rules"`
}

// IsShaded reports whether the named checkpoint is on the shaded list.
func (m ModelTable) IsShaded(model string) bool {
	for _, s := range m.Shaded {
		if s == model {
			return true
		}
	}
	return false
}

// Thresholds are the engine-wide clamp constants.
type Thresholds struct {
	MinStyleGap                    float64              `yaml:"min_style_gap" json:"min_style_gap"`
	StyleCeiling                   float64              `yaml:"style_ceiling" json:"style_ceiling"`
	StyleGuidanceCaps              []GuidanceCap        `yaml:"style_guidance_caps" json:"style_guidance_caps"`
	StrongConditioning             float64              `yaml:"strong_conditioning" json:"strong_conditioning"`
	StrongConditioningDecrement    float64              `yaml:"strong_conditioning_decrement" json:"strong_conditioning_decrement"`
	HallucinationWeights           HallucinationWeights `yaml:"hallucination_weights" json:"hallucination_weights"`
	HallucinationThreshold         float64              `yaml:"hallucination_threshold" json:"hallucination_threshold"`
	HallucinationGuidanceDecrement float64              `yaml:"hallucination_guidance_decrement" json:"hallucination_guidance_decrement"`
	HallucinationDenoiseDecrement  float64              `yaml:"hallucination_denoise_decrement" json:"hallucination_denoise_decrement"`
	ConflictTighten                float64              `yaml:"conflict_tighten" json:"conflict_tighten"`
	StyleLockCeiling               float64              `yaml:"style_lock_ceiling" json:"style_lock_ceiling"`
	ColoredStyleWeightCap          float64              `yaml:"colored_style_weight_cap" json:"colored_style_weight_cap"`
}

// PhaseShift nudges a profile's envelopes for a destination phase. Shifts are
// part of profile selection, applied before the bounds adjuster; the shifted
// profile is the baseline all later tightening is measured against.
type PhaseShift struct {
	Stage1DenoiseMaxDelta float64 `yaml:"stage1_denoise_max_delta" json:"stage1_denoise_max_delta"`
	StyleWeightMaxDelta   float64 `yaml:"style_weight_max_delta" json:"style_weight_max_delta"`
	ShapeEndMinDelta      float64 `yaml:"shape_end_min_delta" json:"shape_end_min_delta"`
}

// Table is the complete, validated policy.
type Table struct {
	Models     ModelTable            `yaml:"models" json:"models"`
	Sampler    string                `yaml:"sampler" json:"sampler"`
	Scheduler  string                `yaml:"scheduler" json:"scheduler"`
	Thresholds Thresholds            `yaml:"thresholds" json:"thresholds"`
	Profiles   map[string]Profile    `yaml:"profiles" json:"profiles"`
	Phases     map[string]PhaseShift `yaml:"phases" json:"phases"`
}

// Default parses and validates the embedded policy table.
func Default() (*Table, error) {
	return Parse(defaultYAML)
}

// MustDefault panics if the embedded table is invalid. The embedded table
// ships with the binary, so a failure here is a build defect.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile reads and validates an external policy table.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %q: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals and validates a YAML policy table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrInvalidPolicy, err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Profile looks up a case profile by name.
func (t *Table) Profile(name string) (Profile, error) {
	p, ok := t.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidPolicy, name)
	}
	return p, nil
}

// ProfileNames returns the configured profile names, sorted.
func (t *Table) ProfileNames() []string {
	names := make([]string, 0, len(t.Profiles))
	for name := range t.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PhaseNames returns the configured phase names, sorted.
func (t *Table) PhaseNames() []string {
	names := make([]string, 0, len(t.Phases))
	for name := range t.Phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hard outer ranges. Profile envelopes must sit inside these; candidates are
// additionally clamped into the (possibly narrower) per-request envelope.
var (
	hardGuidance = Envelope{Min: 5.0, Max: 10.0}
	hardDenoise  = Envelope{Min: 0.0, Max: 0.95}
	hardSteps    = Envelope{Min: 15, Max: 50}
	hardFraction = Envelope{Min: 0.0, Max: 1.0}
	hardStrength = Envelope{Min: 0.0, Max: 1.5}
)

// Validate checks the table for internal consistency. Any failure is an
// ErrInvalidPolicy: a configuration defect, not a per-request condition.
func (t *Table) Validate() error {
	if t.Models.Default == "" {
		return fmt.Errorf("%w: models.default is required", ErrInvalidPolicy)
	}
	for i, rule := range t.Models.SubjectRules {
		if rule.Model == "" || len(rule.Keywords) == 0 {
			return fmt.Errorf("%w: models.subject_rules[%d] needs keywords and a model", ErrInvalidPolicy, i)
		}
	}
	if t.Sampler == "" || t.Scheduler == "" {
		return fmt.Errorf("%w: sampler and scheduler are required", ErrInvalidPolicy)
	}

	for _, name := range []string{CaseSingleSimple, CaseSingleComplex, CaseMultiObject} {
		p, ok := t.Profiles[name]
		if !ok {
			return fmt.Errorf("%w: missing profile %q", ErrInvalidPolicy, name)
		}
		if err := p.validate(name); err != nil {
			return err
		}
	}

	// Guidance ceilings must narrow from single-simple to multi-object.
	simple := t.Profiles[CaseSingleSimple]
	complexP := t.Profiles[CaseSingleComplex]
	multi := t.Profiles[CaseMultiObject]
	if !(multi.Stage1Guidance.Max <= complexP.Stage1Guidance.Max && complexP.Stage1Guidance.Max <= simple.Stage1Guidance.Max) {
		return fmt.Errorf("%w: stage1 guidance ceilings must narrow from %s to %s", ErrInvalidPolicy, CaseSingleSimple, CaseMultiObject)
	}
	if !(multi.Stage2Guidance.Max <= complexP.Stage2Guidance.Max && complexP.Stage2Guidance.Max <= simple.Stage2Guidance.Max) {
		return fmt.Errorf("%w: stage2 guidance ceilings must narrow from %s to %s", ErrInvalidPolicy, CaseSingleSimple, CaseMultiObject)
	}

	th := t.Thresholds
	if th.MinStyleGap <= 0 || th.MinStyleGap >= 1 {
		return fmt.Errorf("%w: min_style_gap %.3f outside (0,1)", ErrInvalidPolicy, th.MinStyleGap)
	}
	if th.StyleCeiling <= 0 || th.StyleCeiling > 1 {
		return fmt.Errorf("%w: style_ceiling %.3f outside (0,1]", ErrInvalidPolicy, th.StyleCeiling)
	}
	if th.HallucinationThreshold <= 0 || th.HallucinationThreshold >= 1 {
		return fmt.Errorf("%w: hallucination_threshold %.3f outside (0,1)", ErrInvalidPolicy, th.HallucinationThreshold)
	}
	hw := th.HallucinationWeights
	if hw.GuidanceExcess < 0 || hw.Stage2Denoise < 0 || hw.StyleWeight < 0 || hw.Conflict < 0 {
		return fmt.Errorf("%w: hallucination_weights must be non-negative", ErrInvalidPolicy)
	}
	if sum := hw.GuidanceExcess + hw.Stage2Denoise + hw.StyleWeight + hw.Conflict; sum <= 0 || sum > 1 {
		return fmt.Errorf("%w: hallucination_weights sum %.3f outside (0,1]", ErrInvalidPolicy, sum)
	}
	if th.HallucinationGuidanceDecrement < 0 || th.HallucinationDenoiseDecrement < 0 {
		return fmt.Errorf("%w: hallucination decrements must be non-negative", ErrInvalidPolicy)
	}
	if th.StrongConditioning <= 0 {
		return fmt.Errorf("%w: strong_conditioning must be positive", ErrInvalidPolicy)
	}
	if th.ConflictTighten <= 0 || th.ConflictTighten > 1 {
		return fmt.Errorf("%w: conflict_tighten %.3f outside (0,1]", ErrInvalidPolicy, th.ConflictTighten)
	}
	for i := 1; i < len(th.StyleGuidanceCaps); i++ {
		prev, cur := th.StyleGuidanceCaps[i-1], th.StyleGuidanceCaps[i]
		if cur.WeightAbove <= prev.WeightAbove || cur.GuidanceMax >= prev.GuidanceMax {
			return fmt.Errorf("%w: style_guidance_caps must ascend in weight and descend in guidance", ErrInvalidPolicy)
		}
	}

	for name := range t.Phases {
		switch name {
		case "tiedown", "cleanup", "ink":
		default:
			return fmt.Errorf("%w: unknown phase %q", ErrInvalidPolicy, name)
		}
	}
	return nil
}

func (p Profile) validate(name string) error {
	checks := []struct {
		field string
		env   Envelope
		hard  Envelope
	}{
		{"stage1_guidance", p.Stage1Guidance, hardGuidance},
		{"stage2_guidance", p.Stage2Guidance, hardGuidance},
		{"stage1_denoise", p.Stage1Denoise, hardDenoise},
		{"stage2_denoise", p.Stage2Denoise, hardDenoise},
		{"steps", p.Steps, hardSteps},
		{"shape_strength", p.ShapeStrength, hardStrength},
		{"shape_end", p.ShapeEnd, hardFraction},
		{"pose_strength", p.PoseStrength, hardStrength},
		{"pose_end", p.PoseEnd, hardFraction},
		{"stage1_style_weight", p.Stage1StyleWeight, hardFraction},
		{"stage2_style_weight", p.Stage2StyleWeight, hardFraction},
		{"stage1_style_end", p.Stage1StyleEnd, hardFraction},
		{"stage2_style_end", p.Stage2StyleEnd, hardFraction},
	}
	for _, c := range checks {
		if c.env.Empty() {
			return fmt.Errorf("%w: profile %s: %s min %.3f > max %.3f", ErrInvalidPolicy, name, c.field, c.env.Min, c.env.Max)
		}
		if c.env.Min < c.hard.Min || c.env.Max > c.hard.Max {
			return fmt.Errorf("%w: profile %s: %s [%.3f, %.3f] outside hard range [%.3f, %.3f]",
				ErrInvalidPolicy, name, c.field, c.env.Min, c.env.Max, c.hard.Min, c.hard.Max)
		}
	}

	// Cross-stage floors: candidate formulas rely on stage-2 floors never
	// sitting above the stage-1 floor, or envelope clamping could push a
	// stage-2 value past its stage-1 counterpart.
	if p.Stage2Guidance.Min > p.Stage1Guidance.Min {
		return fmt.Errorf("%w: profile %s: stage2_guidance floor above stage1_guidance floor", ErrInvalidPolicy, name)
	}
	if p.Stage2Denoise.Min > p.Stage1Denoise.Min {
		return fmt.Errorf("%w: profile %s: stage2_denoise floor above stage1_denoise floor", ErrInvalidPolicy, name)
	}
	return nil
}

// ApplyPhase returns the profile shifted for the destination phase, clamped
// into hard ranges. An empty phase name means no shift.
func (t *Table) ApplyPhase(p Profile, phase string) Profile {
	shift, ok := t.Phases[phase]
	if !ok {
		return p
	}
	shifted := p

	shifted.Stage1Denoise.Max = hardDenoise.Clamp(p.Stage1Denoise.Max + shift.Stage1DenoiseMaxDelta)
	if shifted.Stage1Denoise.Max < shifted.Stage1Denoise.Min {
		shifted.Stage1Denoise.Max = shifted.Stage1Denoise.Min
	}

	shifted.Stage1StyleWeight.Max = hardFraction.Clamp(p.Stage1StyleWeight.Max + shift.StyleWeightMaxDelta)
	if shifted.Stage1StyleWeight.Max < shifted.Stage1StyleWeight.Min {
		shifted.Stage1StyleWeight.Max = shifted.Stage1StyleWeight.Min
	}
	shifted.Stage2StyleWeight.Max = hardFraction.Clamp(p.Stage2StyleWeight.Max + shift.StyleWeightMaxDelta)
	if shifted.Stage2StyleWeight.Max < shifted.Stage2StyleWeight.Min {
		shifted.Stage2StyleWeight.Max = shifted.Stage2StyleWeight.Min
	}

	shifted.ShapeEnd.Min = hardFraction.Clamp(p.ShapeEnd.Min + shift.ShapeEndMinDelta)
	if shifted.ShapeEnd.Min > shifted.ShapeEnd.Max {
		shifted.ShapeEnd.Min = shifted.ShapeEnd.Max
	}
	return shifted
}
