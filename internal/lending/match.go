package lending

import (
	"sort"

	"github.com/erazemk/posoja/internal/geo"
	"github.com/erazemk/posoja/internal/model"
)

// NearbyRadiusKm is the largest distance at which a copy still counts as nearby.
const NearbyRadiusKm = 20.0

// Candidate is a copy ranked by its distance from the borrower.
// DistanceKm is nil when either location is missing or unknown, as (0, 0) is.
type Candidate struct {
	model.Copy
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Match partitions candidate copies into those within NearbyRadiusKm and the rest.
type Match struct {
	Nearby []Candidate `json:"nearby"`
	Far    []Candidate `json:"far"`
}

// MatchCopies ranks copies by distance from from, nearest first. Copies
// without a known distance keep their input order after all ranked ones and
// always land in Far. Every input copy appears exactly once in the result.
func MatchCopies(from *model.Point, copies []model.Copy) Match {
	origin := from != nil && from.Known()
	ranked := make([]Candidate, len(copies))
	for i, c := range copies {
		ranked[i] = Candidate{Copy: c}
		if origin && c.Location != nil && c.Location.Known() {
			d := geo.Distance(*from, *c.Location)
			ranked[i].DistanceKm = &d
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		di, dj := ranked[i].DistanceKm, ranked[j].DistanceKm
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return *di < *dj
		}
	})

	m := Match{Nearby: []Candidate{}, Far: []Candidate{}}
	for _, c := range ranked {
		if c.DistanceKm != nil && *c.DistanceKm <= NearbyRadiusKm {
			m.Nearby = append(m.Nearby, c)
		} else {
			m.Far = append(m.Far, c)
		}
	}
	return m
}
