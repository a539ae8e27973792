package advisor

import (
	"fmt"
	"sort"
	"strings"
)

// Fixed score components of a suggestion. Heuristic rule bonuses are added on
// top of these.
const (
	ScoreCurrentYear = 10
	ScoreUnlocks     = 5
	ScoreNextYear    = 2
)

// rank scores every eligible course and orders them by descending score. Ties
// keep catalog order.
func (in *inference) rank(eligible []EligibleCourse) []Suggestion {
	suggestions := make([]Suggestion, 0, len(eligible))
	heuristics := in.engine.rules.ByCategory(CategoryHeuristic)

	for _, ec := range eligible {
		s := Suggestion{EligibleCourse: ec, Reasons: []string{}, Unlocks: in.unlocks(ec.ID)}

		if ec.CurrentYear {
			s.Score += ScoreCurrentYear
			s.Reasons = append(s.Reasons, "Course of your current year")
		}

		if n := len(s.Unlocks); n > 0 {
			s.Score += ScoreUnlocks
			if n <= 2 {
				names := make([]string, 0, n)
				for _, id := range s.Unlocks {
					names = append(names, in.engine.catalog.Name(id))
				}
				s.Reasons = append(s.Reasons, "Unlocks: "+strings.Join(names, ", "))
			} else {
				s.Reasons = append(s.Reasons, fmt.Sprintf("Unlocks %d courses", n))
			}
		}

		f := in.facts.WithCourse(in.engine.deriver.CourseContext(in.facts, ec.ID))
		for _, rule := range heuristics {
			out, ok := in.evaluate(rule, f)
			if !ok {
				continue
			}
			s.Score += out.Bonus
			s.Reasons = append(s.Reasons, out.Message)
		}

		if ec.NextYear {
			s.Score += ScoreNextYear
			s.Reasons = append(s.Reasons, "Get ahead on next year")
		}

		suggestions = append(suggestions, s)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	for i := range suggestions {
		suggestions[i].Rank = i + 1
	}
	return suggestions
}

// unlocks returns the not-yet-approved courses for which id is the only
// prerequisite still missing, in catalog order.
func (in *inference) unlocks(id string) []string {
	var out []string
	for _, other := range in.engine.catalog.All() {
		if in.facts.IsApproved(other.ID) {
			continue
		}
		requires := false
		satisfied := true
		for _, pre := range other.Prerequisites {
			if pre == id {
				requires = true
			} else if !in.facts.IsApproved(pre) {
				satisfied = false
			}
		}
		if requires && satisfied {
			out = append(out, other.ID)
		}
	}
	return out
}
