package director

import (
	"fmt"
	"strings"

	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

// selectModel picks the checkpoint for the plan. A caller override always
// wins, but a shaded checkpoint earns a warning in the diagnostics trail:
// every destination phase here is a line pass, and shaded models add
// rendering the inker has to fight. Without an override the first subject
// rule whose keyword matches a subject tag decides, then the default.
func selectModel(m policy.ModelTable, sk *observe.Sketch, in observe.Intent) (string, []string) {
	if in.ModelOverride != "" {
		if m.IsShaded(in.ModelOverride) {
			return in.ModelOverride, []string{fmt.Sprintf(
				"model override %s: shaded checkpoint adds rendering to line passes, consider %s",
				in.ModelOverride, m.Default)}
		}
		return in.ModelOverride, []string{fmt.Sprintf("model override: %s", in.ModelOverride)}
	}

	for _, rule := range m.SubjectRules {
		for _, kw := range rule.Keywords {
			for _, tag := range sk.SubjectTags {
				if strings.EqualFold(strings.TrimSpace(tag), kw) {
					return rule.Model, nil
				}
			}
		}
	}
	return m.Default, nil
}
