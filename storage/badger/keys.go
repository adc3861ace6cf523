package badger

import (
	"fmt"
	"strings"

	"github.com/berdachuk/medexpertmatch/core"
)

// Key prefixes for different data types. Index keys end in a NUL-separated
// suffix so one ID can never be a prefix of another.
const (
	doctorPrefix           = "doc:"
	doctorSpecialtyPrefix  = "docsp:"
	casePrefix             = "case:"
	experiencePrefix       = "exp:"
	experienceDoctorPrefix = "expdoc:"
	facilityPrefix         = "fac:"
	matchPrefix            = "match:"
	vectorPrefix           = "vec:"
)

func makeDoctorKey(id string) []byte {
	return []byte(doctorPrefix + id)
}

func specialtyToken(specialty string) string {
	return strings.ToLower(strings.TrimSpace(specialty))
}

// makeDoctorSpecialtyKey generates a composite key for the specialty index.
// Format: prefix:specialty\x00doctorID
func makeDoctorSpecialtyKey(specialty, doctorID string) []byte {
	return []byte(doctorSpecialtyPrefix + specialtyToken(specialty) + "\x00" + doctorID)
}

func makePartialDoctorSpecialtyKey(specialty string) []byte {
	return []byte(doctorSpecialtyPrefix + specialtyToken(specialty) + "\x00")
}

func makeCaseKey(id string) []byte {
	return []byte(casePrefix + core.NormalizeCaseID(id))
}

func makeExperienceKey(id string) []byte {
	return []byte(experiencePrefix + id)
}

// makeExperienceDoctorKey generates a composite key for the doctor index.
// Format: prefix:doctorID\x00experienceID
func makeExperienceDoctorKey(doctorID, experienceID string) []byte {
	return []byte(experienceDoctorPrefix + doctorID + "\x00" + experienceID)
}

func makePartialExperienceDoctorKey(doctorID string) []byte {
	return []byte(experienceDoctorPrefix + doctorID + "\x00")
}

func makeFacilityKey(id string) []byte {
	return []byte(facilityPrefix + id)
}

// makeMatchKey orders a case's matches by rank.
// Format: prefix:caseID\x00rank:matchID
func makeMatchKey(caseID string, rank int, matchID string) []byte {
	return []byte(fmt.Sprintf("%s%s\x00%06d:%s", matchPrefix, core.NormalizeCaseID(caseID), rank, matchID))
}

func makePartialMatchKey(caseID string) []byte {
	return []byte(matchPrefix + core.NormalizeCaseID(caseID) + "\x00")
}

func makeVectorKey(caseID string) []byte {
	return []byte(vectorPrefix + core.NormalizeCaseID(caseID))
}
