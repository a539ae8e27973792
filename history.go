package advisor

import (
	"sort"
)

// History is every recorded course attempt of one student, oldest first.
type History struct {
	StudentID string         `json:"student_id"`
	Entries   []HistoryEntry `json:"entries"`
}

// Latest returns one entry per course: the attempt from the latest year,
// and within a year the latest recorded. Entries are ordered by course id.
func (h *History) Latest() []HistoryEntry {
	latest := make(map[string]HistoryEntry, len(h.Entries))
	for _, e := range h.Entries {
		prev, seen := latest[e.CourseID]
		if !seen || e.YearTaken > prev.YearTaken ||
			(e.YearTaken == prev.YearTaken && !e.RecordedAt.Before(prev.RecordedAt)) {
			latest[e.CourseID] = e
		}
	}

	out := make([]HistoryEntry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

// BaseFacts turns the history into inference input for st. A course failed
// and later approved counts only as approved.
func (h *History) BaseFacts(st Student) BaseFacts {
	b := BaseFacts{
		StudentID:   st.ID,
		StudentName: st.Name,
		Year:        st.CurrentYear,
		IsNew:       st.IsNew(),
		Approved:    []string{},
		Failed:      []string{},
		InProgress:  []string{},
		Grades:      map[string]float64{},
	}
	for _, e := range h.Latest() {
		switch e.Status {
		case HistoryApproved:
			b.Approved = append(b.Approved, e.CourseID)
		case HistoryFailed:
			b.Failed = append(b.Failed, e.CourseID)
		case HistoryInProgress:
			b.InProgress = append(b.InProgress, e.CourseID)
		}
		if e.Grade != nil {
			b.Grades[e.CourseID] = *e.Grade
		}
	}
	return b
}
