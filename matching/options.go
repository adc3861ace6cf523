package matching

import (
	"fmt"
	"math"
	"strings"

	"github.com/berdachuk/medexpertmatch/scoring"
)

// MinCandidatePool is the smallest number of doctors fetched per match.
const MinCandidatePool = 20

// MatchOptions tune a single Match call.
type MatchOptions struct {
	// MaxResults caps the ranking. Zero means scoring.DefaultMaxResults.
	MaxResults int `yaml:"maxResults" json:"maxResults"`
	// MinScore drops candidates whose composite score is lower.
	MinScore float64 `yaml:"minScore" json:"minScore"`
	// PreferredSpecialties are mentioned in the rationale; they never filter.
	PreferredSpecialties []string `yaml:"preferredSpecialties" json:"preferredSpecialties"`
	// RequireTelehealth keeps only telehealth-enabled doctors.
	RequireTelehealth bool `yaml:"requireTelehealth" json:"requireTelehealth"`
	// PreferredFacilityIDs keeps only doctors affiliated with one of them.
	PreferredFacilityIDs []string `yaml:"preferredFacilityIds" json:"preferredFacilityIds"`
}

// DefaultMatchOptions returns ten results and no filters beyond specialty.
func DefaultMatchOptions() MatchOptions {
	return MatchOptions{MaxResults: scoring.DefaultMaxResults}
}

// Validate rejects negative limits and scores outside [0,1].
func (o MatchOptions) Validate() error {
	if o.MaxResults < 0 {
		return fmt.Errorf("%w: maxResults %d", ErrInvalidOptions, o.MaxResults)
	}
	if math.IsNaN(o.MinScore) || o.MinScore < 0 || o.MinScore > 1 {
		return fmt.Errorf("%w: minScore %v", ErrInvalidOptions, o.MinScore)
	}
	return nil
}

func (o MatchOptions) limit() int {
	if o.MaxResults <= 0 {
		return scoring.DefaultMaxResults
	}
	return o.MaxResults
}

// PoolSize is the number of doctors fetched before filtering.
func (o MatchOptions) PoolSize() int {
	return max(o.limit()*2, MinCandidatePool)
}

// RoutingOptions tune a single Route call.
type RoutingOptions struct {
	// MaxResults caps the list. Zero means scoring.DefaultMaxFacilities.
	MaxResults int `yaml:"maxResults" json:"maxResults"`
	// MinScore drops facilities whose suitability score is lower.
	MinScore float64 `yaml:"minScore" json:"minScore"`
	// PreferredFacilityTypes enable the type preference term.
	PreferredFacilityTypes []string `yaml:"preferredFacilityTypes" json:"preferredFacilityTypes"`
	// RequiredCapabilities are added to the case's own.
	RequiredCapabilities []string `yaml:"requiredCapabilities" json:"requiredCapabilities"`
	// MaxDistanceKm drops facilities farther away. Zero means unlimited.
	MaxDistanceKm float64 `yaml:"maxDistanceKm" json:"maxDistanceKm"`
}

// DefaultRoutingOptions returns five results and no preferences.
func DefaultRoutingOptions() RoutingOptions {
	return RoutingOptions{MaxResults: scoring.DefaultMaxFacilities}
}

// Validate rejects negative limits and scores outside [0,1].
func (o RoutingOptions) Validate() error {
	if o.MaxResults < 0 {
		return fmt.Errorf("%w: maxResults %d", ErrInvalidOptions, o.MaxResults)
	}
	if math.IsNaN(o.MinScore) || o.MinScore < 0 || o.MinScore > 1 {
		return fmt.Errorf("%w: minScore %v", ErrInvalidOptions, o.MinScore)
	}
	if o.MaxDistanceKm < 0 {
		return fmt.Errorf("%w: maxDistanceKm %v", ErrInvalidOptions, o.MaxDistanceKm)
	}
	return nil
}

// mergeCapabilities joins capability lists, dropping blanks and
// case-insensitive duplicates. First spelling wins.
func mergeCapabilities(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, c := range list {
			c = strings.TrimSpace(c)
			key := strings.ToLower(c)
			if c == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}
