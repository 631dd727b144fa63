package incident

import "github.com/kalinga/kalinga/internal/domain/triage"

// Project flattens a generation cycle into incidents, one per patient, in
// cohort then patient order.
func Project(snap triage.Snapshot) []Record {
	out := make([]Record, 0, snap.PatientCount())
	for _, c := range snap.Cohorts {
		for _, p := range c.Patients {
			out = append(out, Record{
				ID:             p.ID,
				ComplaintType:  p.Vitals.ChiefComplaint,
				Facility:       c.FacilityName,
				Location:       c.FacilityName,
				Reporter:       "System Generated",
				ReporterRole:   "Auto",
				LoggedAt:       snap.GeneratedAt,
				Severity:       p.Level,
				ResponseStatus: StatusUnassigned,
			})
		}
	}
	return out
}

// Filter keeps incidents logged at facility. An empty name or AllFacilities
// returns the input unchanged.
func Filter(records []Record, facility string) []Record {
	if facility == "" || facility == AllFacilities {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Facility == facility {
			out = append(out, r)
		}
	}
	return out
}
