package schedule

import "docappt/internal/model"

// Normalize groups schedule entries into doctors, in first-seen order of the
// doctor name. The first entry for a doctor decides its timezone; entries keep
// their input order and are neither sorted nor de-duplicated.
func Normalize(entries []model.ScheduleEntry) []model.Doctor {
	if len(entries) == 0 {
		return []model.Doctor{}
	}

	index := make(map[string]int)
	doctors := make([]model.Doctor, 0)

	for _, e := range entries {
		i, ok := index[e.Name]
		if !ok {
			i = len(doctors)
			index[e.Name] = i
			doctors = append(doctors, model.Doctor{
				Name:      e.Name,
				Timezone:  e.Timezone,
				Schedules: []model.ScheduleEntry{},
			})
		}
		doctors[i].Schedules = append(doctors[i].Schedules, e)
	}

	return doctors
}

// FindDoctor returns the first doctor whose name matches exactly.
func FindDoctor(doctors []model.Doctor, name string) (model.Doctor, bool) {
	for _, d := range doctors {
		if d.Name == name {
			return d, true
		}
	}
	return model.Doctor{}, false
}
