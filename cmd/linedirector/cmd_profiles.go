package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Show the loaded policy table",
	RunE:  runProfiles,
}

func runProfiles(cmd *cobra.Command, _ []string) error {
	table, err := loadTable()
	if err != nil {
		return err
	}

	fmt.Printf("model:     %s\n", table.Models.Default)
	fmt.Printf("sampler:   %s\n", table.Sampler)
	fmt.Printf("scheduler: %s\n", table.Scheduler)

	for _, name := range table.ProfileNames() {
		p, err := table.Profile(name)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s:\n", name)
		fmt.Printf("  stage1 guidance  [%.2f, %.2f]  denoise [%.2f, %.2f]\n",
			p.Stage1Guidance.Min, p.Stage1Guidance.Max, p.Stage1Denoise.Min, p.Stage1Denoise.Max)
		fmt.Printf("  stage2 guidance  [%.2f, %.2f]  denoise [%.2f, %.2f]\n",
			p.Stage2Guidance.Min, p.Stage2Guidance.Max, p.Stage2Denoise.Min, p.Stage2Denoise.Max)
		fmt.Printf("  steps            [%.0f, %.0f]\n", p.Steps.Min, p.Steps.Max)
		fmt.Printf("  shape strength   [%.2f, %.2f]  end [%.2f, %.2f]\n",
			p.ShapeStrength.Min, p.ShapeStrength.Max, p.ShapeEnd.Min, p.ShapeEnd.Max)
		fmt.Printf("  pose strength    [%.2f, %.2f]  end [%.2f, %.2f]\n",
			p.PoseStrength.Min, p.PoseStrength.Max, p.PoseEnd.Min, p.PoseEnd.Max)
		fmt.Printf("  style1 weight    [%.2f, %.2f]  end [%.2f, %.2f]\n",
			p.Stage1StyleWeight.Min, p.Stage1StyleWeight.Max, p.Stage1StyleEnd.Min, p.Stage1StyleEnd.Max)
		fmt.Printf("  style2 weight    [%.2f, %.2f]  end [%.2f, %.2f]\n",
			p.Stage2StyleWeight.Min, p.Stage2StyleWeight.Max, p.Stage2StyleEnd.Min, p.Stage2StyleEnd.Max)
	}

	if len(table.Phases) > 0 {
		fmt.Printf("\nphases:\n")
		for _, name := range table.PhaseNames() {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}
