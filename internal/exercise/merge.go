package exercise

import "exercisehub/pkg/models"

// ApplyOverride layers o onto base field by field. A present field replaces
// the base value even when it is empty; an absent field keeps the base value.
// Code and Series always come from base.
func ApplyOverride(base models.ExerciseRecord, o *models.Override) models.ExerciseRecord {
	out := base.Clone()
	if o == nil {
		return out
	}

	setString(&out.Title, o.Title)
	setString(&out.Level, o.Level)
	setString(&out.Equipment, o.Equipment)
	setString(&out.Muscles, o.Muscles)
	setString(&out.Objective, o.Objective)
	setString(&out.Anatomy, o.Anatomy)
	setStrings(&out.Safety, o.Safety)
	setStrings(&out.KeyPoints, o.KeyPoints)
	setString(&out.Regress, o.Regress)
	setString(&out.Progress, o.Progress)
	setString(&out.Dosage, o.Dosage)
	setString(&out.Image, o.Image)

	// markdown fields
	setString(&out.Summary, o.Summary)
	setStrings(&out.Execution, o.Execution)
	setString(&out.Notes, o.Notes)

	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setStrings(dst *[]string, v *[]string) {
	if v == nil {
		return
	}
	if *v == nil {
		*dst = []string{}
		return
	}
	out := make([]string, len(*v))
	copy(out, *v)
	*dst = out
}
