package director

import (
	"fmt"
	"strings"

	"linedirector/internal/observe"
	"linedirector/internal/policy"
)

// geometricTags are subject tags that mark a simple geometric primitive.
// Simple shapes get the widest guidance envelope and the tightest shape lock.
var geometricTags = map[string]bool{
	"circle": true, "circular": true, "round": true, "ball": true, "sphere": true,
	"square": true, "rectangle": true, "rectangular": true, "box": true,
	"triangle": true, "triangular": true, "oval": true, "ellipse": true,
	"line": true, "shape": true, "geometric": true,
}

// Classify buckets the sketch into one of the three case profiles using the
// cardinality/scale hints. Ties resolve to the more conservative profile
// (single-complex over single-simple, multi-object over either). It fails
// only when no cardinality or scale hint is present at all.
func Classify(sk *observe.Sketch) (string, error) {
	if !sk.HasCardinalityHint() {
		return "", fmt.Errorf("%w: no subject_count or object_scale hint", observe.ErrUnclassifiable)
	}

	if sk.SubjectCount > 1 {
		return policy.CaseMultiObject, nil
	}

	// Single subject, or count unknown with a scale hint; a lone scale hint
	// reads as a single subject.
	if sk.Complexity == observe.ComplexitySimple && allGeometric(sk.SubjectTags) {
		return policy.CaseSingleSimple, nil
	}
	return policy.CaseSingleComplex, nil
}

func allGeometric(tags []string) bool {
	if len(tags) == 0 {
		return false
	}
	for _, tag := range tags {
		if !geometricTags[strings.ToLower(strings.TrimSpace(tag))] {
			return false
		}
	}
	return true
}
