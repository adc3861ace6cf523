// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidateCase validates a Case according to domain rules.
//
// Validation rules:
//   - ID must not be blank
//   - Urgency, when set, must be a known level
//   - CaseType, when set, must be a known type
//   - SubmittedAt must not be in the future
//   - Location, when set, must be within range
//
// NOT validated (populated by case analysis):
//   - RequiredSpecialty, ICD10Codes, Urgency being zero
func ValidateCase(c *Case) error {
	if c == nil {
		return fmt.Errorf("%w: case is nil", ErrInvalidCase)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidCase, ErrEmptyID)
	}
	if c.Urgency != 0 && c.Urgency.Ordinal() == 0 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidCase, ErrInvalidUrgency, int(c.Urgency))
	}
	if err := ValidateCaseType(c.CaseType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCase, err)
	}
	if !c.SubmittedAt.IsZero() && !IsValidTimestamp(c.SubmittedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidCase, ErrInvalidTimestamp)
	}
	if err := ValidateGeoPoint(c.Location); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCase, err)
	}
	return nil
}

// ValidateCaseType accepts the empty value and the known case types.
func ValidateCaseType(t CaseType) error {
	switch t {
	case "", CaseTypeInpatient, CaseTypeSecondOpinion, CaseTypeConsultRequest:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidCaseType, string(t))
}

// ValidateDoctor validates a Doctor.
func ValidateDoctor(d *Doctor) error {
	if d == nil {
		return fmt.Errorf("%w: doctor is nil", ErrInvalidDoctor)
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDoctor, ErrEmptyID)
	}
	return nil
}

// ValidateExperience validates an ExperienceRecord.
func ValidateExperience(r *ExperienceRecord) error {
	if r == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidExperience)
	}
	if strings.TrimSpace(r.DoctorID) == "" {
		return fmt.Errorf("%w: doctor %w", ErrInvalidExperience, ErrEmptyID)
	}
	if r.Rating != 0 && (r.Rating < 1 || r.Rating > 5) {
		return fmt.Errorf("%w: %w: %d", ErrInvalidExperience, ErrInvalidRating, r.Rating)
	}
	if !r.RecordedAt.IsZero() && !IsValidTimestamp(r.RecordedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidExperience, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateFacility validates a Facility.
func ValidateFacility(f *Facility) error {
	if f == nil {
		return fmt.Errorf("%w: facility is nil", ErrInvalidFacility)
	}
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFacility, ErrEmptyID)
	}
	if f.Capacity < 0 || f.CurrentOccupancy < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidFacility, ErrInvalidCapacity)
	}
	if err := ValidateGeoPoint(f.Location); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFacility, err)
	}
	return nil
}

// ValidateMatch validates a ConsultationMatch before persistence.
func ValidateMatch(m *ConsultationMatch) error {
	if m == nil {
		return fmt.Errorf("%w: match is nil", ErrInvalidMatch)
	}
	if strings.TrimSpace(m.CaseID) == "" || strings.TrimSpace(m.DoctorID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMatch, ErrEmptyID)
	}
	if math.IsNaN(m.Score) || m.Score < 0 || m.Score > 1 {
		return fmt.Errorf("%w: %w: %v", ErrInvalidMatch, ErrScoreOutOfRange, m.Score)
	}
	if m.Rank < 1 {
		return fmt.Errorf("%w: %w: %d", ErrInvalidMatch, ErrInvalidRank, m.Rank)
	}
	return nil
}

// ValidateGeoPoint accepts nil and in-range coordinates.
func ValidateGeoPoint(p *GeoPoint) error {
	if p == nil {
		return nil
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, p.Lat, p.Lon)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
