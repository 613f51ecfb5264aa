package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"linedirector/internal/director"
	"linedirector/internal/observe"
	"linedirector/internal/sequence"
)

var batchFlags struct {
	framesPath    string
	referencePath string
	outputPath    string
	parallel      int
	shared        bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Plan a whole frame sequence",
	Long: `Compute plans for a sequence of frames from a JSON array of
{index, sketch} entries.

By default every frame gets its own independent plan, computed over a bounded
worker pool. With --shared, the first/middle/last keyframe observations are
merged pessimistically and one plan covers the whole sequence.`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchFlags.framesPath, "frames", "i", "", "Frame observations JSON path (required)")
	f.StringVarP(&batchFlags.referencePath, "reference", "r", "", "Reference comparison JSON path (optional)")
	f.StringVarP(&batchFlags.outputPath, "output", "o", "", "Output path (default: stdout)")
	f.IntVar(&batchFlags.parallel, "parallel", 4, "Worker limit for per-frame planning")
	f.BoolVar(&batchFlags.shared, "shared", false, "Merge keyframes and emit one plan for the whole sequence")
	_ = batchCmd.MarkFlagRequired("frames")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	var frames []sequence.Frame
	if err := readJSONFile(batchFlags.framesPath, &frames); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("frames file is empty")
	}

	var ref *observe.Reference
	if batchFlags.referencePath != "" {
		ref = &observe.Reference{}
		if err := readJSONFile(batchFlags.referencePath, ref); err != nil {
			return fmt.Errorf("read reference: %w", err)
		}
	}

	planner := &sequence.Planner{
		Engine:   director.New(table),
		Parallel: batchFlags.parallel,
	}

	if batchFlags.shared {
		plan, err := planner.PlanShared(frames, ref, observe.DefaultIntent())
		if err != nil {
			return err
		}
		return writeJSON(batchFlags.outputPath, plan)
	}

	results, err := planner.PlanAll(cmd.Context(), frames, ref, observe.DefaultIntent())
	if err != nil {
		return err
	}
	failed := 0
	type frameOut struct {
		Index int            `json:"index"`
		Plan  *director.Plan `json:"plan,omitempty"`
		Error string         `json:"error,omitempty"`
	}
	out := make([]frameOut, 0, len(results))
	for _, r := range results {
		fo := frameOut{Index: r.Index, Plan: r.Plan}
		if r.Err != nil {
			fo.Error = r.Err.Error()
			failed++
		}
		out = append(out, fo)
	}
	if err := writeJSON(batchFlags.outputPath, out); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d frames failed", failed, len(results))
	}
	return nil
}
