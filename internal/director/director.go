// Package director implements the parameter policy engine: it turns
// qualitative sketch observations, an optional reference comparison, and the
// caller's intent into a safe, internally consistent parameter plan for the
// two-stage cleanup pipeline. The engine is pure: one observation set in,
// one plan out, no I/O, no cross-request state. Concurrent callers just
// run independent invocations against the same read-only policy table.
package director

import (
	"fmt"

	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

// Engine computes parameter plans against an immutable policy table.
type Engine struct {
	table *policy.Table
}

// New returns an engine bound to a validated policy table.
func New(table *policy.Table) *Engine {
	return &Engine{table: table}
}

// Table exposes the engine's policy table for inspection surfaces.
func (e *Engine) Table() *policy.Table { return e.table }

// Request is one complete plan request. Reference may be nil.
type Request struct {
	Sketch    observe.Sketch     `json:"sketch"`
	Reference *observe.Reference `json:"reference,omitempty"`
	Intent    observe.Intent     `json:"intent"`
}

// ComputePlan runs the full pipeline: signal extraction, case
// classification, bounds adjustment, candidate generation, hallucination
// estimation, safety clamping, and plan assembly. A request either yields a
// fully valid plan or fails fast with ErrInvalidObservation,
// ErrUnclassifiable, or ErrInvalidPolicy; there is no soft-failure path.
func (e *Engine) ComputePlan(req Request) (*Plan, error) {
	sig, reasons, err := ExtractSignals(&req.Sketch, req.Reference, req.Intent)
	if err != nil {
		return nil, err
	}

	caseName, err := Classify(&req.Sketch)
	if err != nil {
		return nil, err
	}
	profile, err := e.table.Profile(caseName)
	if err != nil {
		return nil, err
	}
	profile = e.table.ApplyPhase(profile, string(req.Intent.DestinationPhase))

	bounds, adjustReasons := AdjustBounds(BoundsFromProfile(profile), sig,
		&req.Sketch, req.Reference, req.Intent, e.table.Thresholds)
	reasons = append(reasons, adjustReasons...)

	cand := generateCandidates(bounds, sig, req.Intent)

	// Second pass: H is a property of the candidate plan, so it cannot be
	// extracted with the other signals.
	conflict := 0.0
	if req.Reference != nil {
		conflict = req.Reference.ConflictPenalty
	}
	sig.Hallucination = EstimateHallucination(e.table.Thresholds.HallucinationWeights,
		cand.Stage2.Guidance, cand.Stage2.Denoise, cand.Style2.Weight, conflict)

	clamps, err := applyClamps(&cand, bounds, e.table.Thresholds, sig)
	if err != nil {
		return nil, fmt.Errorf("case %s: %w", caseName, err)
	}

	model, modelReasons := selectModel(e.table.Models, &req.Sketch, req.Intent)
	reasons = append(reasons, modelReasons...)

	return assemblePlan(req, e.table, model, caseName, bounds, cand, sig, reasons, clamps), nil
}
