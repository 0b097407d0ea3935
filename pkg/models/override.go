package models

import "time"

// Override is a partial ExerciseRecord layered onto a base record.
// A nil field is absent and leaves the base untouched; a non-nil field
// replaces the base value, even when it points at an empty value.
type Override struct {
	Title     *string   `json:"title,omitempty"`
	Level     *string   `json:"level,omitempty"`
	Equipment *string   `json:"equipment,omitempty"`
	Muscles   *string   `json:"muscles,omitempty"`
	Objective *string   `json:"objective,omitempty"`
	Anatomy   *string   `json:"anatomy,omitempty"`
	Safety    *[]string `json:"safety,omitempty"`
	KeyPoints *[]string `json:"key_points,omitempty"`
	Regress   *string   `json:"regress,omitempty"`
	Progress  *string   `json:"progress,omitempty"`
	Dosage    *string   `json:"dosage,omitempty"`
	Image     *string   `json:"image,omitempty"`
	Summary   *string   `json:"summary,omitempty"`
	Execution *[]string `json:"execution,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
}

// IsEmpty reports whether no field is present.
func (o Override) IsEmpty() bool {
	return o.Title == nil && o.Level == nil && o.Equipment == nil &&
		o.Muscles == nil && o.Objective == nil && o.Anatomy == nil &&
		o.Safety == nil && o.KeyPoints == nil && o.Regress == nil &&
		o.Progress == nil && o.Dosage == nil && o.Image == nil &&
		o.Summary == nil && o.Execution == nil && o.Notes == nil
}

// StoredOverride is an override as listed from the store.
type StoredOverride struct {
	Code      string    `json:"code"`
	Override  Override  `json:"override"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredCustom is an admin-created record as listed from the store.
type StoredCustom struct {
	Record    ExerciseRecord `json:"record"`
	UpdatedAt time.Time      `json:"updated_at"`
}
