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

import "errors"

// Domain validation errors
var (
	// ErrInvalidCase indicates a Case failed validation.
	ErrInvalidCase = errors.New("invalid case")

	// ErrInvalidDoctor indicates a Doctor failed validation.
	ErrInvalidDoctor = errors.New("invalid doctor")

	// ErrInvalidExperience indicates an ExperienceRecord failed validation.
	ErrInvalidExperience = errors.New("invalid experience record")

	// ErrInvalidFacility indicates a Facility failed validation.
	ErrInvalidFacility = errors.New("invalid facility")

	// ErrInvalidMatch indicates a ConsultationMatch failed validation.
	ErrInvalidMatch = errors.New("invalid consultation match")

	// ErrEmptyID indicates a required identifier is blank.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrInvalidUrgency indicates an unknown urgency level.
	ErrInvalidUrgency = errors.New("invalid urgency level")

	// ErrInvalidCaseType indicates an unknown case type.
	ErrInvalidCaseType = errors.New("invalid case type")

	// ErrInvalidRating indicates a rating outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrInvalidCapacity indicates negative capacity or occupancy figures.
	ErrInvalidCapacity = errors.New("capacity and occupancy cannot be negative")

	// ErrInvalidCoordinates indicates a latitude or longitude out of range.
	ErrInvalidCoordinates = errors.New("coordinates out of range")

	// ErrScoreOutOfRange indicates a match score outside [0,1].
	ErrScoreOutOfRange = errors.New("score must be within [0,1]")

	// ErrInvalidRank indicates a non-positive rank.
	ErrInvalidRank = errors.New("rank must be positive")
)
