package graph

// Node labels.
const (
	LabelDoctor    = "Doctor"
	LabelCase      = "MedicalCase"
	LabelSpecialty = "MedicalSpecialty"
	LabelICD10     = "ICD10Code"
	LabelProcedure = "Procedure"
	LabelFacility  = "Facility"
)

// Relationship types.
const (
	RelTreated           = "TREATED"
	RelConsultedOn       = "CONSULTED_ON"
	RelSpecializesIn     = "SPECIALIZES_IN"
	RelTreatsCondition   = "TREATS_CONDITION"
	RelHasCondition      = "HAS_CONDITION"
	RelRequiresSpecialty = "REQUIRES_SPECIALTY"
	RelPerformed         = "PERFORMED"
	RelAffiliatedWith    = "AFFILIATED_WITH"
)

// DefaultRelationWeights grade how much each relationship type says about
// expertise. Unlisted types weigh 1.
var DefaultRelationWeights = map[string]float64{
	RelTreated:           1.0,
	RelConsultedOn:       0.8,
	RelHasCondition:      1.0,
	RelRequiresSpecialty: 1.0,
	RelTreatsCondition:   0.9,
	RelPerformed:         0.7,
	RelSpecializesIn:     0.6,
	RelAffiliatedWith:    0.4,
}

// Path is the best connection found between a case and a doctor.
// Hops is zero when no path exists.
type Path struct {
	Hops   int
	Weight float64 // product of relationship weights, in (0,1]
	Via    string  // relationship that reached the doctor
}

// Found reports whether the path connects the two nodes.
func (p Path) Found() bool { return p.Hops > 0 }

// Strength is Weight divided by Hops; 0 when no path exists.
func (p Path) Strength() float64 {
	if p.Hops <= 0 {
		return 0
	}
	w := p.Weight
	if w <= 0 || w > 1 {
		w = 1
	}
	return w / float64(p.Hops)
}

// Better returns whichever path has the higher strength, preferring fewer hops on ties.
func Better(a, b Path) Path {
	sa, sb := a.Strength(), b.Strength()
	switch {
	case sa > sb:
		return a
	case sb > sa:
		return b
	case b.Found() && (!a.Found() || b.Hops < a.Hops):
		return b
	}
	return a
}
