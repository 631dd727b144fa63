package triage

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Generator draws synthetic cohorts. It is not safe for concurrent use; the
// Service serialises calls.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator uses rng for every draw, so a fixed seed gives fixed cohorts.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// NewSeededGenerator seeds from the clock when seed is zero.
func NewSeededGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewGenerator(rand.New(rand.NewSource(seed)))
}

// Generate returns one cohort per facility, in facility order.
func (g *Generator) Generate(facilities []Facility) []Cohort {
	out := make([]Cohort, 0, len(facilities))
	for _, f := range facilities {
		out = append(out, g.cohort(f))
	}
	return out
}

func (g *Generator) cohort(f Facility) Cohort {
	n := g.intn(10) + 5
	prefix := strings.Join(strings.Fields(f.Name), "-")

	c := Cohort{
		FacilityName:  f.Name,
		SpecialtyTags: f.SpecialtyTags,
		Patients:      make([]Patient, 0, n),
		LevelCounts:   make(map[Level]int, len(Levels)),
	}
	for _, l := range Levels {
		c.LevelCounts[l] = 0
	}

	for i := 0; i < n; i++ {
		v := Vitals{
			Temperature: math.Round((36+g.rng.Float64()*4)*10) / 10,
			HeartRate:   float64(g.intn(60) + 60),
			SpO2:        float64(g.intn(15) + 85),
		}
		age := g.intn(70) + 12
		v.HasComorbidity = g.rng.Float64() < 0.35
		v.MentalStatus = MentalStatuses[g.intn(len(MentalStatuses))]
		v.ChiefComplaint = Complaints[g.intn(len(Complaints))]

		level := Classify(v)
		c.Patients = append(c.Patients, Patient{
			ID:                    prefix + "-" + strconv.Itoa(i+1),
			Age:                   age,
			Vitals:                v,
			Level:                 level,
			RecommendedSpecialist: Recommend(v, level),
		})
		c.LevelCounts[level]++
	}
	c.TopSpecialist = plurality(c.Patients)
	return c
}

// intn draws floor(rand*n), matching a uniform float scaled to n buckets.
func (g *Generator) intn(n int) int {
	return int(g.rng.Float64() * float64(n))
}

// plurality returns the most recommended specialist; ties go to whichever
// was seen first.
func plurality(patients []Patient) string {
	counts := map[string]int{}
	var order []string
	for _, p := range patients {
		if _, ok := counts[p.RecommendedSpecialist]; !ok {
			order = append(order, p.RecommendedSpecialist)
		}
		counts[p.RecommendedSpecialist]++
	}
	top, best := GeneralPractitioner, 0
	for _, s := range order {
		if counts[s] > best {
			top, best = s, counts[s]
		}
	}
	return top
}
