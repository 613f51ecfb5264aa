// Package sequence plans whole frame sequences. The engine itself is pure
// and per-request; this package only fans independent invocations out over a
// bounded worker pool and merges keyframe observations pessimistically so a
// single shared plan is safe for every frame it covers.
package sequence

import (
	"context"

	"golang.org/x/sync/errgroup"

	"linedirector/internal/director"
	"linedirector/internal/logging"
	"linedirector/internal/observe"
)

// Frame pairs a frame index with its analysis report.
type Frame struct {
	Index  int            `json:"index"`
	Sketch observe.Sketch `json:"sketch"`
}

// Result is one frame's plan or failure. A failed frame never hides the
// others; callers decide whether a partial sequence is usable.
type Result struct {
	Index int            `json:"index"`
	Plan  *director.Plan `json:"plan,omitempty"`
	Err   error          `json:"-"`
}

// Planner runs the engine across a sequence.
type Planner struct {
	Engine   *director.Engine
	Parallel int // worker limit; values < 1 mean serial
}

// PlanAll computes an independent plan per frame using a bounded pool.
// Per-frame errors are captured in the results, not returned; the only
// returned error is context cancellation.
func (p *Planner) PlanAll(ctx context.Context, frames []Frame, ref *observe.Reference, in observe.Intent) ([]Result, error) {
	logger := logging.New("sequence")
	workers := p.Parallel
	if workers < 1 {
		workers = 1
	}
	logger.Info("planning sequence", "frames", len(frames), "workers", workers)

	results := make([]Result, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, frame := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			plan, err := p.Engine.ComputePlan(director.Request{
				Sketch:    frame.Sketch,
				Reference: ref,
				Intent:    in,
			})
			results[i] = Result{Index: frame.Index, Plan: plan, Err: err}
			if err != nil {
				logger.Error("frame plan failed", "frame", frame.Index, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PlanShared merges the keyframe observations (first/middle/last) into one
// pessimistic sketch and computes a single plan for the whole sequence.
func (p *Planner) PlanShared(frames []Frame, ref *observe.Reference, in observe.Intent) (*director.Plan, error) {
	keys := Keyframes(len(frames))
	picked := make([]observe.Sketch, 0, len(keys))
	for _, k := range keys {
		picked = append(picked, frames[k].Sketch)
	}
	merged := MergeSketches(picked)
	return p.Engine.ComputePlan(director.Request{
		Sketch:    merged,
		Reference: ref,
		Intent:    in,
	})
}

// Keyframes picks the representative frame indices: first, middle, last.
func Keyframes(n int) []int {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []int{0}
	case n == 2:
		return []int{0, 1}
	}
	return []int{0, n / 2, n - 1}
}

var qualityRank = map[observe.LineQuality]int{
	observe.LineMessy:      0,
	observe.LineStructured: 1,
	observe.LineClean:      2,
}

var riskRank = map[observe.RiskLevel]int{
	observe.RiskLow:    0,
	observe.RiskMedium: 1,
	observe.RiskHigh:   2,
}

var scaleRank = map[observe.ObjectScale]int{
	observe.ScaleSmall:  1,
	observe.ScaleMedium: 2,
	observe.ScaleLarge:  3,
}

// MergeSketches combines keyframe reports into the pessimistic envelope: the
// worst line quality, the highest anatomy risk, the densest construction and
// broken-line readings, the union of subject tags, and the largest count and
// scale. A shared plan computed from the merge is then safe everywhere.
func MergeSketches(sketches []observe.Sketch) observe.Sketch {
	if len(sketches) == 0 {
		return observe.Sketch{}
	}
	merged := sketches[0]
	seen := map[string]bool{}
	for _, tag := range merged.SubjectTags {
		seen[tag] = true
	}
	for _, s := range sketches[1:] {
		if qualityRank[s.LineQuality] < qualityRank[merged.LineQuality] {
			merged.LineQuality = s.LineQuality
		}
		if riskRank[s.AnatomyRisk] > riskRank[merged.AnatomyRisk] {
			merged.AnatomyRisk = s.AnatomyRisk
		}
		if s.Complexity == observe.ComplexityComplex {
			merged.Complexity = observe.ComplexityComplex
		}
		if s.ConstructionDensity > merged.ConstructionDensity {
			merged.ConstructionDensity = s.ConstructionDensity
		}
		if s.BrokenDensity > merged.BrokenDensity {
			merged.BrokenDensity = s.BrokenDensity
		}
		for _, tag := range s.SubjectTags {
			if !seen[tag] {
				seen[tag] = true
				merged.SubjectTags = append(merged.SubjectTags, tag)
			}
		}
		if s.SubjectCount > merged.SubjectCount {
			merged.SubjectCount = s.SubjectCount
		}
		if scaleRank[s.ObjectScale] > scaleRank[merged.ObjectScale] {
			merged.ObjectScale = s.ObjectScale
		}
	}
	return merged
}
