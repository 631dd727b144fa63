package triage

import "time"

// Level is a triage severity, ordered low to critical.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelVeryHigh Level = "very-high"
	LevelCritical Level = "critical"
)

// Levels lists every level in increasing severity.
var Levels = []Level{LevelLow, LevelMedium, LevelHigh, LevelVeryHigh, LevelCritical}

// MentalStatus is an AVPU label.
type MentalStatus string

const (
	Alert        MentalStatus = "A (Alert)"
	Verbal       MentalStatus = "V (Verbal)"
	Pain         MentalStatus = "P (Pain)"
	Unresponsive MentalStatus = "U (Unresponsive)"
)

var MentalStatuses = []MentalStatus{Alert, Verbal, Pain, Unresponsive}

// ValidMentalStatus reports whether s is one of the four AVPU labels.
func ValidMentalStatus(s string) bool {
	for _, m := range MentalStatuses {
		if string(m) == s {
			return true
		}
	}
	return false
}

// Chief complaints drawn by the generator. Classification also recognises
// ComplaintSevereChestPain, which the generator never produces.
const (
	ComplaintChestPain           = "Chest pain"
	ComplaintDifficultyBreathing = "Difficulty breathing"
	ComplaintDizziness           = "Dizziness"
	ComplaintFever               = "Fever"
	ComplaintSeizure             = "Seizure"
	ComplaintSevereChestPain     = "Severe chest pain"
)

var Complaints = []string{
	ComplaintChestPain,
	ComplaintDifficultyBreathing,
	ComplaintDizziness,
	ComplaintFever,
	ComplaintSeizure,
}

// Specialists returned by Recommend.
const (
	Cardiologist        = "Cardiologist"
	Pulmonologist       = "Pulmonologist"
	Neurologist         = "Neurologist"
	InfectiousDisease   = "Infectious Disease Specialist"
	EmergencyMedicine   = "Emergency Medicine"
	InternalMedicine    = "Internal Medicine"
	GeneralPractitioner = "General Practitioner"
)

// Vitals is one immutable reading.
type Vitals struct {
	Temperature    float64      `json:"temperature"`
	HeartRate      float64      `json:"heartRate"`
	SpO2           float64      `json:"spo2"`
	MentalStatus   MentalStatus `json:"mentalStatus" validate:"required,mental_status"`
	HasComorbidity bool         `json:"hasComorbidity"`
	ChiefComplaint string       `json:"chiefComplaint" validate:"required"`
}

type Patient struct {
	ID                    string `json:"id"`
	Age                   int    `json:"age"`
	Vitals                Vitals `json:"vitals"`
	Level                 Level  `json:"level"`
	RecommendedSpecialist string `json:"recommendedSpecialist"`
}

// Facility is static configuration.
type Facility struct {
	Name          string   `json:"name"`
	SpecialtyTags []string `json:"specialtyTags"`
}

type Cohort struct {
	FacilityName  string        `json:"facilityName"`
	SpecialtyTags []string      `json:"specialtyTags"`
	Patients      []Patient     `json:"patients"`
	LevelCounts   map[Level]int `json:"levelCounts"`
	TopSpecialist string        `json:"topSpecialist"`
}

// Snapshot is one generation cycle: every cohort plus when it was drawn.
type Snapshot struct {
	Cohorts     []Cohort  `json:"cohorts"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// PatientCount totals patients across all cohorts.
func (s Snapshot) PatientCount() int {
	n := 0
	for _, c := range s.Cohorts {
		n += len(c.Patients)
	}
	return n
}

// DefaultFacilities is the built-in facility list.
func DefaultFacilities() []Facility {
	return []Facility{
		{Name: "Philippine General Hospital (PGH)", SpecialtyTags: []string{"Emergency", "Cardiology", "Pediatrics"}},
		{Name: "East Avenue Medical Center", SpecialtyTags: []string{"Neurology", "Trauma", "Internal Medicine"}},
		{Name: "Rizal Medical Center", SpecialtyTags: []string{"Surgery", "OB-GYN", "General Medicine"}},
		{Name: "Jose R. Reyes Memorial Medical Center", SpecialtyTags: []string{"Emergency", "Neurosurgery", "Pediatrics"}},
		{Name: "St. Luke’s Medical Center (Quezon City)", SpecialtyTags: []string{"Cardiology", "Oncology", "Orthopedics"}},
	}
}
