package core

// FinalizeRequest is a validated finalize payload. Values holds only the metrics the caller sent.
type FinalizeRequest struct {
	Date        Date
	Values      map[Metric]float64
	BookSales   *float64
	Comment     string
	SubmittedBy string
}

// SectionSubmission is one volunteer's submission of every field in a form section.
type SectionSubmission struct {
	Date         Date
	SectionGroup string
	Comment      string
	Values       map[Metric]float64
	Replace      bool
}

// Entries expands the submission into one staging entry per field.
func (s SectionSubmission) Entries() []StagingEntry {
	out := make([]StagingEntry, 0, len(s.Values))
	for _, m := range Metrics {
		v, ok := s.Values[m]
		if !ok {
			continue
		}
		out = append(out, StagingEntry{
			Date:         s.Date,
			FieldName:    m,
			Value:        v,
			Comment:      s.Comment,
			SectionGroup: s.SectionGroup,
		})
	}
	return out
}
