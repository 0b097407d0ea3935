package models

// ExerciseRecord is the canonical content of one exercise sheet as seen by
// readers. The base set comes from the static catalog; the effective value is
// the base merged with any admin override, or an admin-created custom entry.
type ExerciseRecord struct {
	Code      string   `json:"code"`
	Series    string   `json:"series,omitempty"`
	Title     string   `json:"title"`
	Level     string   `json:"level"`
	Equipment string   `json:"equipment"`
	Muscles   string   `json:"muscles"`
	Objective string   `json:"objective"`
	Anatomy   string   `json:"anatomy"`
	Safety    []string `json:"safety"`
	KeyPoints []string `json:"key_points"`
	Regress   string   `json:"regress"`
	Progress  string   `json:"progress"`
	Dosage    string   `json:"dosage"`
	Image     string   `json:"image,omitempty"`

	// markdown fields
	Summary   string   `json:"summary,omitempty"`
	Execution []string `json:"execution,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Clone returns a deep copy so callers can mutate slices freely.
func (r ExerciseRecord) Clone() ExerciseRecord {
	r.Safety = cloneStrings(r.Safety)
	r.KeyPoints = cloneStrings(r.KeyPoints)
	r.Execution = cloneStrings(r.Execution)
	return r
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
