package scoring

import "github.com/berdachuk/medexpertmatch/core"

// FilterBySpecialty is the hard specialty filter applied before any scoring.
// An empty specialty admits every doctor. Input order is preserved.
func FilterBySpecialty(doctors []core.Doctor, specialty string) []core.Doctor {
	out := make([]core.Doctor, 0, len(doctors))
	for i := range doctors {
		if specialty == "" || doctors[i].HasSpecialty(specialty) {
			out = append(out, doctors[i])
		}
	}
	return out
}
