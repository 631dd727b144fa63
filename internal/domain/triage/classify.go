package triage

// Classify maps a reading to a level with an ordered cascade, evaluated from
// low to critical. The first branch whose predicate holds wins, so a reading
// that trips a medium condition (comorbidity, say) stays medium even when a
// critical condition also holds. Readings matching no branch are low.
func Classify(v Vitals) Level {
	t, hr, spo2 := v.Temperature, v.HeartRate, v.SpO2
	switch {
	case t >= 36 && t <= 37.5 && hr >= 60 && hr <= 100 && spo2 >= 95 &&
		v.MentalStatus == Alert && !v.HasComorbidity:
		return LevelLow
	case (t > 37.5 && t <= 38.5) || (hr > 100 && hr <= 110) || (spo2 >= 92 && spo2 < 95) ||
		v.MentalStatus == Verbal || v.HasComorbidity:
		return LevelMedium
	case (t > 38.5 && t <= 39) || (hr > 110 && hr <= 130) || (spo2 >= 88 && spo2 < 92) ||
		v.MentalStatus == Pain || isHighComplaint(v.ChiefComplaint):
		return LevelHigh
	case t > 39 || t < 35 || (hr > 130 && hr <= 140) || (spo2 >= 85 && spo2 < 88) ||
		(v.MentalStatus == Pain && v.ChiefComplaint == ComplaintSeizure) ||
		v.ChiefComplaint == ComplaintSevereChestPain:
		return LevelVeryHigh
	case spo2 < 85 || hr > 140 || hr < 40 || v.MentalStatus == Unresponsive:
		return LevelCritical
	}
	return LevelLow
}

func isHighComplaint(c string) bool {
	return c == ComplaintSeizure || c == ComplaintDifficultyBreathing || c == ComplaintChestPain
}

// Recommend picks a specialist from a fixed priority list, first match wins.
func Recommend(v Vitals, level Level) string {
	switch {
	case v.ChiefComplaint == ComplaintChestPain:
		return Cardiologist
	case v.ChiefComplaint == ComplaintDifficultyBreathing || v.SpO2 < 90:
		return Pulmonologist
	case v.ChiefComplaint == ComplaintSeizure || v.ChiefComplaint == ComplaintDizziness:
		return Neurologist
	case v.Temperature > 38.5:
		return InfectiousDisease
	case v.MentalStatus == Unresponsive || level == LevelCritical:
		return EmergencyMedicine
	case v.HasComorbidity:
		return InternalMedicine
	}
	return GeneralPractitioner
}
