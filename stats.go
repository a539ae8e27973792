package advisor

import (
	"maps"
	"math"
	"slices"
)

// ComputeStatistics summarises a student's progress through the catalog.
// Ratios over an empty catalog or zero credit hours are 0.
func ComputeStatistics(catalog *Catalog, base BaseFacts) Statistics {
	total := catalog.Len()
	approvedIDs := distinct(base.Approved)
	approved := len(approvedIDs)

	st := Statistics{
		TotalCourses:     total,
		Approved:         approved,
		Failed:           len(distinct(base.Failed)),
		Pending:          max(total-approved, 0),
		TotalCreditHours: catalog.TotalCreditHours(),
	}
	if total > 0 {
		st.CompletionPercent = round(float64(approved)/float64(total)*100, 1)
	}

	if len(base.Grades) > 0 {
		// Summed in key order so the rounding is reproducible.
		var sum float64
		for _, id := range slices.Sorted(maps.Keys(base.Grades)) {
			sum += base.Grades[id]
		}
		st.MeanGrade = round(sum/float64(len(base.Grades)), 2)
	}

	for _, id := range approvedIDs {
		if c, ok := catalog.Get(id); ok {
			st.ApprovedCreditHours += c.CreditHours
		}
	}
	if st.TotalCreditHours > 0 {
		st.CreditHoursPercent = round(float64(st.ApprovedCreditHours)/float64(st.TotalCreditHours)*100, 1)
	}
	return st
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
