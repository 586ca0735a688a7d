package match

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"jobmatch-service/internal/geo"
	"jobmatch-service/internal/model"
	"jobmatch-service/internal/schedule"
	"jobmatch-service/prometheus"
)

// Filters narrows a search. Empty fields do not constrain; a RadiusKm of
// zero or less means the seeker's own radius. ExactDates makes specific-date
// jobs match only availability on the same calendar date.
type Filters struct {
	Text       string        `json:"q,omitempty"`
	JobType    model.JobType `json:"type,omitempty"`
	RadiusKm   float64       `json:"radius,omitempty"`
	ExactDates bool          `json:"exact,omitempty"`
}

// Hit is one matching job with its match annotations.
type Hit struct {
	Job                model.Job `json:"job"`
	DistanceKm         float64   `json:"distanceKm"`
	MatchingSkillCount int       `json:"matchingSkillCount"`
	SkillMatchPercent  int       `json:"skillMatchPercent"`
}

type Result struct {
	Hits    []Hit  `json:"hits"`
	Total   int    `json:"total"`
	Summary string `json:"summary"`
}

// Engine ranks nothing: it filters jobs for a seeker and keeps input order.
type Engine struct {
	log     *zap.Logger
	metrics *prometheus.Metrics
}

func NewEngine(log *zap.Logger, metrics *prometheus.Metrics) *Engine {
	return &Engine{log: log, metrics: metrics}
}

// Search returns the jobs that are within range, pass the text and type
// filters, share a skill with the seeker (when the seeker lists any) and fit
// the seeker's roster. It never mutates its inputs.
func (e *Engine) Search(seeker model.User, jobs []model.Job, f Filters) Result {
	radius := f.RadiusKm
	if radius <= 0 {
		radius = seeker.Radius
	}
	text := strings.ToLower(strings.TrimSpace(f.Text))
	seekerSkills := skillSet(seeker.Skills)

	hits := []Hit{}
	for _, job := range jobs {
		distance := geo.DistanceKm(seeker.Location.Lat, seeker.Location.Lng, job.Lat, job.Lng)
		if !(distance <= radius) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(job.Title), text) &&
			!strings.Contains(strings.ToLower(job.Company), text) {
			continue
		}
		if f.JobType != "" && job.Type != f.JobType {
			continue
		}

		matching := 0
		for _, s := range job.Skills {
			if seekerSkills[normalize(s)] {
				matching++
			}
		}
		if len(seekerSkills) > 0 && matching == 0 {
			continue
		}
		fits := schedule.Matches
		if f.ExactDates {
			fits = schedule.MatchesExactDate
		}
		if !fits(job.Schedule, seeker.Availability) {
			continue
		}

		percent := 0
		if len(seekerSkills) > 0 && len(job.Skills) > 0 {
			percent = int(math.Round(float64(matching) / float64(len(job.Skills)) * 100))
		}
		hits = append(hits, Hit{
			Job:                job.Clone(),
			DistanceKm:         math.Round(distance*100) / 100,
			MatchingSkillCount: matching,
			SkillMatchPercent:  percent,
		})
	}

	e.metrics.RecordSearch(len(hits))
	if e.log != nil {
		e.log.Debug("Search completed",
			zap.String("seeker_id", seeker.ID),
			zap.Int("scanned", len(jobs)),
			zap.Int("matched", len(hits)),
			zap.Float64("radius_km", radius))
	}

	return Result{Hits: hits, Total: len(jobs), Summary: Summary(len(hits))}
}

// Summary is the human-readable match count shown above search results.
func Summary(matched int) string {
	if matched == 0 {
		return "No jobs match your skills and availability. Try updating your skills or roster."
	}
	return fmt.Sprintf("Found %d job(s) matching your profile", matched)
}

func normalize(skill string) string {
	return strings.ToLower(strings.TrimSpace(skill))
}

func skillSet(skills []string) map[string]bool {
	set := make(map[string]bool, len(skills))
	for _, s := range skills {
		if n := normalize(s); n != "" {
			set[n] = true
		}
	}
	return set
}
