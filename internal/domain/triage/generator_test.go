package triage

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Invariants(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		cohorts := NewGenerator(rand.New(rand.NewSource(seed))).Generate(DefaultFacilities())
		require.Len(t, cohorts, 5)

		for _, c := range cohorts {
			n := len(c.Patients)
			assert.GreaterOrEqual(t, n, 5)
			assert.LessOrEqual(t, n, 14)

			sum := 0
			for _, k := range c.LevelCounts {
				sum += k
			}
			assert.Equal(t, n, sum, "level counts must add up to the patient count")

			for _, p := range c.Patients {
				assert.Equal(t, Classify(p.Vitals), p.Level)
				assert.Equal(t, Recommend(p.Vitals, p.Level), p.RecommendedSpecialist)

				assert.GreaterOrEqual(t, p.Vitals.Temperature, 36.0)
				assert.LessOrEqual(t, p.Vitals.Temperature, 40.0)
				assert.GreaterOrEqual(t, p.Vitals.HeartRate, 60.0)
				assert.Less(t, p.Vitals.HeartRate, 120.0)
				assert.GreaterOrEqual(t, p.Vitals.SpO2, 85.0)
				assert.Less(t, p.Vitals.SpO2, 100.0)
				assert.GreaterOrEqual(t, p.Age, 12)
				assert.Less(t, p.Age, 82)
				assert.Contains(t, Complaints, p.Vitals.ChiefComplaint)
				assert.Contains(t, MentalStatuses, p.Vitals.MentalStatus)
			}
		}
	}
}

func TestGenerate_SameSeedSameCohorts(t *testing.T) {
	a := NewGenerator(rand.New(rand.NewSource(42))).Generate(DefaultFacilities())
	b := NewGenerator(rand.New(rand.NewSource(42))).Generate(DefaultFacilities())
	assert.Equal(t, a, b)
}

func TestGenerate_PatientIDs(t *testing.T) {
	cohorts := NewGenerator(rand.New(rand.NewSource(3))).Generate([]Facility{{Name: "Rizal  Medical\tCenter"}})
	require.NotEmpty(t, cohorts[0].Patients)
	assert.Equal(t, "Rizal-Medical-Center-1", cohorts[0].Patients[0].ID)
	last := cohorts[0].Patients[len(cohorts[0].Patients)-1]
	assert.True(t, strings.HasPrefix(last.ID, "Rizal-Medical-Center-"))
}

func TestGenerate_TemperatureOneDecimal(t *testing.T) {
	cohorts := NewGenerator(rand.New(rand.NewSource(9))).Generate(DefaultFacilities())
	for _, c := range cohorts {
		for _, p := range c.Patients {
			scaled := p.Vitals.Temperature * 10
			assert.InDelta(t, scaled, float64(int64(scaled+0.5)), 1e-9)
		}
	}
}

func TestPlurality_FirstSeenWinsTies(t *testing.T) {
	ps := []Patient{
		{RecommendedSpecialist: Neurologist},
		{RecommendedSpecialist: Cardiologist},
		{RecommendedSpecialist: Cardiologist},
		{RecommendedSpecialist: Neurologist},
	}
	assert.Equal(t, Neurologist, plurality(ps))

	ps = append(ps, Patient{RecommendedSpecialist: Cardiologist})
	assert.Equal(t, Cardiologist, plurality(ps))
}

func TestPlurality_EmptyDefaultsToGP(t *testing.T) {
	assert.Equal(t, GeneralPractitioner, plurality(nil))
}

func TestNewSeededGenerator(t *testing.T) {
	a := NewSeededGenerator(42).Generate(DefaultFacilities())
	b := NewSeededGenerator(42).Generate(DefaultFacilities())
	assert.Equal(t, a, b, "a fixed seed is deterministic")

	clockSeeded := NewSeededGenerator(0)
	require.NotNil(t, clockSeeded)
	assert.Len(t, clockSeeded.Generate(DefaultFacilities()), 5)
}
