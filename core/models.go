package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content identifier.
// It is used to address derived artifacts such as cached embeddings.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// NormalizeCaseID trims and lowercases a case identifier.
// Case identifiers are compared in this form everywhere.
func NormalizeCaseID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// SameSpecialty reports whether two specialty names refer to the same specialty.
func SameSpecialty(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// UrgencyLevel is the ordered urgency of a case. Higher values are more urgent.
type UrgencyLevel int

const (
	UrgencyLow UrgencyLevel = iota + 1
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

var urgencyNames = map[UrgencyLevel]string{
	UrgencyLow:      "LOW",
	UrgencyMedium:   "MEDIUM",
	UrgencyHigh:     "HIGH",
	UrgencyCritical: "CRITICAL",
}

func (u UrgencyLevel) String() string {
	if name, ok := urgencyNames[u]; ok {
		return name
	}
	return fmt.Sprintf("UrgencyLevel(%d)", int(u))
}

// Ordinal returns the sort position of the level (LOW=1 .. CRITICAL=4, unknown=0).
func (u UrgencyLevel) Ordinal() int {
	if _, ok := urgencyNames[u]; ok {
		return int(u)
	}
	return 0
}

// Weight maps the level onto [0,1]: CRITICAL 1.0, HIGH 0.75, MEDIUM 0.5, LOW 0.25.
func (u UrgencyLevel) Weight() float64 {
	return float64(u.Ordinal()) / float64(UrgencyCritical)
}

// ParseUrgencyLevel parses a level name, ignoring case and surrounding space.
func ParseUrgencyLevel(s string) (UrgencyLevel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for level, n := range urgencyNames {
		if n == name {
			return level, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidUrgency, s)
}

// MarshalText implements encoding.TextMarshaler.
func (u UrgencyLevel) MarshalText() ([]byte, error) {
	if u.Ordinal() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUrgency, int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *UrgencyLevel) UnmarshalText(text []byte) error {
	level, err := ParseUrgencyLevel(string(text))
	if err != nil {
		return err
	}
	*u = level
	return nil
}

// CaseType classifies how a case entered the system.
type CaseType string

const (
	CaseTypeInpatient      CaseType = "INPATIENT"
	CaseTypeSecondOpinion  CaseType = "SECOND_OPINION"
	CaseTypeConsultRequest CaseType = "CONSULT_REQUEST"
)

// ComplexityLevel grades a past case handled by a doctor.
type ComplexityLevel string

const (
	ComplexityLow      ComplexityLevel = "LOW"
	ComplexityMedium   ComplexityLevel = "MEDIUM"
	ComplexityHigh     ComplexityLevel = "HIGH"
	ComplexityCritical ComplexityLevel = "CRITICAL"
)

// Outcome is the recorded result of a past case.
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeImproved    Outcome = "IMPROVED"
	OutcomeStable      Outcome = "STABLE"
	OutcomeComplicated Outcome = "COMPLICATED"
)

// MatchStatus is the lifecycle state of a consultation match.
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "PENDING"
	MatchStatusAccepted MatchStatus = "ACCEPTED"
	MatchStatusDeclined MatchStatus = "DECLINED"
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Case is a medical case awaiting specialist matching.
// It is treated as an immutable value once analysis has completed.
type Case struct {
	ID                   string       `yaml:"id" json:"id"`
	PatientAge           int          `yaml:"patientAge" json:"patientAge"`
	ChiefComplaint       string       `yaml:"chiefComplaint" json:"chiefComplaint"`
	Symptoms             string       `yaml:"symptoms" json:"symptoms"`
	CurrentDiagnosis     string       `yaml:"currentDiagnosis" json:"currentDiagnosis"`
	ICD10Codes           []string     `yaml:"icd10Codes" json:"icd10Codes"`
	SNOMEDCodes          []string     `yaml:"snomedCodes" json:"snomedCodes"`
	Urgency              UrgencyLevel `yaml:"urgency" json:"urgency"`
	RequiredSpecialty    string       `yaml:"requiredSpecialty" json:"requiredSpecialty"`
	CaseType             CaseType     `yaml:"caseType" json:"caseType"`
	AdditionalNotes      string       `yaml:"additionalNotes" json:"additionalNotes"`
	Abstract             string       `yaml:"abstract" json:"abstract"`
	RequiredCapabilities []string     `yaml:"requiredCapabilities" json:"requiredCapabilities"`
	Location             *GeoPoint    `yaml:"location" json:"location,omitempty"`
	SubmittedAt          time.Time    `yaml:"submittedAt" json:"submittedAt"`
}

// SearchText returns the free text of the case used for keyword and
// embedding lookups.
func (c *Case) SearchText() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{c.ChiefComplaint, c.Symptoms, c.CurrentDiagnosis, c.Abstract, c.AdditionalNotes} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Doctor is a candidate specialist. Read-only to the engine.
type Doctor struct {
	ID                string   `yaml:"id" json:"id"`
	Name              string   `yaml:"name" json:"name"`
	Email             string   `yaml:"email" json:"email"`
	Specialties       []string `yaml:"specialties" json:"specialties"`
	Certifications    []string `yaml:"certifications" json:"certifications"`
	FacilityIDs       []string `yaml:"facilityIds" json:"facilityIds"`
	TelehealthEnabled bool     `yaml:"telehealthEnabled" json:"telehealthEnabled"`
	Availability      string   `yaml:"availability" json:"availability"`
}

// HasSpecialty reports whether the doctor practices the given specialty.
func (d *Doctor) HasSpecialty(specialty string) bool {
	for _, s := range d.Specialties {
		if SameSpecialty(s, specialty) {
			return true
		}
	}
	return false
}

// AffiliatedWith reports whether the doctor works at any of the given facilities.
func (d *Doctor) AffiliatedWith(facilityIDs []string) bool {
	for _, want := range facilityIDs {
		for _, have := range d.FacilityIDs {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ExperienceRecord links a doctor to a past case and its outcome.
type ExperienceRecord struct {
	ID                   string          `yaml:"id" json:"id"`
	DoctorID             string          `yaml:"doctorId" json:"doctorId"`
	CaseID               string          `yaml:"caseId" json:"caseId"`
	Specialty            string          `yaml:"specialty" json:"specialty"`
	Procedures           []string        `yaml:"procedures" json:"procedures"`
	Complexity           ComplexityLevel `yaml:"complexity" json:"complexity"`
	Outcome              Outcome         `yaml:"outcome" json:"outcome"`
	Complications        []string        `yaml:"complications" json:"complications"`
	TimeToResolutionDays int             `yaml:"timeToResolutionDays" json:"timeToResolutionDays"`
	Rating               int             `yaml:"rating" json:"rating"` // 1-5, 0 when unrated
	RecordedAt           time.Time       `yaml:"recordedAt" json:"recordedAt"`
}

// Facility is a care site a case can be routed to.
type Facility struct {
	ID               string    `yaml:"id" json:"id"`
	Name             string    `yaml:"name" json:"name"`
	Type             string    `yaml:"type" json:"type"`
	City             string    `yaml:"city" json:"city"`
	State            string    `yaml:"state" json:"state"`
	Country          string    `yaml:"country" json:"country"`
	Location         *GeoPoint `yaml:"location" json:"location,omitempty"`
	Capabilities     []string  `yaml:"capabilities" json:"capabilities"`
	Capacity         int       `yaml:"capacity" json:"capacity"`
	CurrentOccupancy int       `yaml:"currentOccupancy" json:"currentOccupancy"`
}

// HasCapabilities reports whether every required capability is offered.
func (f *Facility) HasCapabilities(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range f.Capabilities {
			if strings.EqualFold(strings.TrimSpace(have), strings.TrimSpace(want)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ConsultationMatch is one ranked doctor for a case.
type ConsultationMatch struct {
	ID        string      `json:"id"`
	CaseID    string      `json:"caseId"`
	DoctorID  string      `json:"doctorId"`
	Score     float64     `json:"matchScore"`
	Rationale string      `json:"matchRationale"`
	Rank      int         `json:"rank"`
	Status    MatchStatus `json:"status"`
	Signals   []string    `json:"signals,omitempty"` // signal kinds that contributed
	CreatedAt time.Time   `json:"createdAt"`
}
