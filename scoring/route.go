package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/berdachuk/medexpertmatch/core"
)

const earthRadiusKm = 6371.0

// DefaultMaxFacilities is the routing list size when none is configured.
const DefaultMaxFacilities = 5

// RouteConfig weighs the facility suitability terms.
type RouteConfig struct {
	CapacityWeight   float64 `yaml:"capacityWeight"`
	ProximityWeight  float64 `yaml:"proximityWeight"`
	PreferenceWeight float64 `yaml:"preferenceWeight"`
	DistanceScaleKm  float64 `yaml:"distanceScaleKm"` // distance at which proximity halves
}

// DefaultRouteConfig weighs capacity 0.5, proximity 0.3 and type preference 0.2.
func DefaultRouteConfig() RouteConfig {
	return RouteConfig{
		CapacityWeight:   0.5,
		ProximityWeight:  0.3,
		PreferenceWeight: 0.2,
		DistanceScaleKm:  50,
	}
}

// Validate rejects negative or all-zero weights.
func (c RouteConfig) Validate() error {
	if c.CapacityWeight < 0 || c.ProximityWeight < 0 || c.PreferenceWeight < 0 {
		return &FusionConfigError{Field: "route weights", Reason: "must not be negative"}
	}
	if c.CapacityWeight+c.ProximityWeight+c.PreferenceWeight == 0 {
		return &FusionConfigError{Reason: "at least one route weight must be positive"}
	}
	return nil
}

// RouteQuery describes what a case needs from a facility.
type RouteQuery struct {
	RequiredCapabilities []string
	PreferredTypes       []string
	Origin               *core.GeoPoint
	MaxDistanceKm        float64 // 0 means unlimited
}

// FacilityScore is one scored facility.
type FacilityScore struct {
	Facility     core.Facility
	Score        float64
	Capacity     float64
	Proximity    float64
	HasProximity bool
	DistanceKm   float64
	Preferred    bool
	Rank         int
	Rationale    string
}

// CapacityRatio is (capacity - occupancy) / capacity clamped to [0,1].
func CapacityRatio(f *core.Facility) float64 {
	if f.Capacity <= 0 {
		return 0
	}
	return Clamp01(float64(f.Capacity-f.CurrentOccupancy) / float64(f.Capacity))
}

// HaversineKm is the great-circle distance between two points.
func HaversineKm(a, b core.GeoPoint) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLon := (b.Lon - a.Lon) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// ProximityScore maps a distance onto (0,1]; closer is higher.
func ProximityScore(km, scaleKm float64) float64 {
	if scaleKm <= 0 {
		scaleKm = DefaultRouteConfig().DistanceScaleKm
	}
	if km < 0 {
		km = 0
	}
	return Clamp01(1 / (1 + km/scaleKm))
}

// FilterByCapability keeps facilities offering every required capability.
func FilterByCapability(facilities []core.Facility, required []string) []core.Facility {
	out := make([]core.Facility, 0, len(facilities))
	for i := range facilities {
		if facilities[i].HasCapabilities(required) {
			out = append(out, facilities[i])
		}
	}
	return out
}

func preferredType(f *core.Facility, types []string) bool {
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(f.Type)) {
			return true
		}
	}
	return false
}

// ScoreFacilities applies the capability hard filter and the distance limit,
// then scores what remains. Proximity is only used when both the origin and the
// facility have coordinates; otherwise its weight is dropped. The type
// preference term is only used when preferred types are given. An invalid cfg
// returns its *FusionConfigError.
func ScoreFacilities(facilities []core.Facility, q RouteQuery, cfg RouteConfig) ([]FacilityScore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	eligible := FilterByCapability(facilities, q.RequiredCapabilities)

	out := make([]FacilityScore, 0, len(eligible))
	for i := range eligible {
		f := eligible[i]
		fs := FacilityScore{Facility: f, Capacity: CapacityRatio(&f)}

		if q.Origin != nil && f.Location != nil {
			fs.HasProximity = true
			fs.DistanceKm = HaversineKm(*q.Origin, *f.Location)
			if q.MaxDistanceKm > 0 && fs.DistanceKm > q.MaxDistanceKm {
				continue
			}
			fs.Proximity = ProximityScore(fs.DistanceKm, cfg.DistanceScaleKm)
		}
		hasPreference := len(q.PreferredTypes) > 0
		preference := 0.0
		if hasPreference && preferredType(&f, q.PreferredTypes) {
			fs.Preferred = true
			preference = 1
		}

		fs.Score = WeightedMean(
			Term{Value: fs.Capacity, Weight: cfg.CapacityWeight, Present: true},
			Term{Value: fs.Proximity, Weight: cfg.ProximityWeight, Present: fs.HasProximity},
			Term{Value: preference, Weight: cfg.PreferenceWeight, Present: hasPreference},
		)
		fs.Rationale = routeRationale(&fs)
		out = append(out, fs)
	}
	return out, nil
}

func routeRationale(fs *FacilityScore) string {
	parts := []string{fmt.Sprintf("%.0f%% capacity available", fs.Capacity*100)}
	if fs.HasProximity {
		parts = append(parts, fmt.Sprintf("%.1f km away", fs.DistanceKm))
	} else {
		parts = append(parts, "distance unknown")
	}
	if fs.Preferred {
		parts = append(parts, "preferred facility type")
	}
	return TruncateRationale(strings.Join(parts, ", "))
}

// RankFacilities drops scores below minScore, sorts by score then facility id,
// truncates to limit (DefaultMaxFacilities when limit <= 0) and assigns ranks.
func RankFacilities(scores []FacilityScore, limit int, minScore float64) []FacilityScore {
	if limit <= 0 {
		limit = DefaultMaxFacilities
	}
	out := make([]FacilityScore, 0, len(scores))
	for _, s := range scores {
		if s.Score >= minScore {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Facility.ID < out[j].Facility.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
