package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"linedirector/adapters/comfy"
	"linedirector/internal/director"
	"linedirector/internal/observe"
)

var planFlags struct {
	sketchPath    string
	referencePath string
	outputPath    string
	workflowPath  string
	workflowOut   string

	transformStrength  float64
	poseLock           bool
	styleLock          bool
	styleMatchOverride bool
	phase              string
	model              string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute one parameter plan from observation reports",
	Long: `Compute a clamped parameter plan from a sketch observation file and an
optional reference comparison file. The plan is written as JSON, with the
full diagnostics trail (signals, reasons, clamp records) attached.

With --workflow, the plan is additionally patched into a ComfyUI API-format
workflow document.`,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVarP(&planFlags.sketchPath, "sketch", "i", "", "Sketch observation JSON path (required)")
	f.StringVarP(&planFlags.referencePath, "reference", "r", "", "Reference comparison JSON path (optional)")
	f.StringVarP(&planFlags.outputPath, "output", "o", "", "Plan output path (default: stdout)")
	f.StringVar(&planFlags.workflowPath, "workflow", "", "ComfyUI API workflow JSON to patch with the plan")
	f.StringVar(&planFlags.workflowOut, "workflow-out", "", "Patched workflow output path (default: stdout)")
	f.Float64Var(&planFlags.transformStrength, "transform-strength", 0.5, "How far from the sketch the result may drift [0,1]")
	f.BoolVar(&planFlags.poseLock, "pose-lock", true, "Protect the sketch pose with skeletal conditioning")
	f.BoolVar(&planFlags.styleLock, "style-lock", false, "Cap stage-1 style influence to protect the sketch's own style")
	f.BoolVar(&planFlags.styleMatchOverride, "style-match-override", false, "Skip the style-lock cap for a reference known to match")
	f.StringVar(&planFlags.phase, "phase", string(observe.PhaseCleanup), "Destination phase (tiedown, cleanup, ink)")
	f.StringVar(&planFlags.model, "model", "", "Checkpoint override (shaded checkpoints earn a diagnostics warning)")
	_ = planCmd.MarkFlagRequired("sketch")
}

func runPlan(cmd *cobra.Command, _ []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	var sketch observe.Sketch
	if err := readJSONFile(planFlags.sketchPath, &sketch); err != nil {
		return fmt.Errorf("read sketch: %w", err)
	}

	var ref *observe.Reference
	if planFlags.referencePath != "" {
		ref = &observe.Reference{}
		if err := readJSONFile(planFlags.referencePath, ref); err != nil {
			return fmt.Errorf("read reference: %w", err)
		}
	}

	plan, err := director.New(table).ComputePlan(director.Request{
		Sketch:    sketch,
		Reference: ref,
		Intent: observe.Intent{
			TransformStrength:  planFlags.transformStrength,
			PoseLock:           planFlags.poseLock,
			StyleLock:          planFlags.styleLock,
			StyleMatchOverride: planFlags.styleMatchOverride,
			DestinationPhase:   observe.Phase(planFlags.phase),
			ModelOverride:      planFlags.model,
		},
	})
	if err != nil {
		return err
	}

	if err := writeJSON(planFlags.outputPath, plan); err != nil {
		return err
	}

	if planFlags.workflowPath != "" {
		raw, err := os.ReadFile(planFlags.workflowPath)
		if err != nil {
			return fmt.Errorf("read workflow: %w", err)
		}
		patched, err := comfy.ApplyToWorkflow(raw, plan)
		if err != nil {
			return err
		}
		if err := writeRaw(planFlags.workflowOut, patched); err != nil {
			return err
		}
	}
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeRaw(path, append(data, '\n'))
}

func writeRaw(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
