package scoring

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/berdachuk/medexpertmatch/signals"
)

// MaxRationaleLength is the longest rationale produced.
const MaxRationaleLength = 200

// GenericRationale is used when fewer than two signals are notable.
const GenericRationale = "matched on available criteria"

var clauses = map[signals.Kind]string{
	signals.KindEmbedding:  "high case-text similarity",
	signals.KindGraph:      "strong specialty graph link",
	signals.KindLexical:    "strong keyword overlap",
	signals.KindExperience: "favorable historical outcomes",
}

// Rationale explains a candidate's score: the notable signals in descending
// strength, then any signals that were unavailable.
func Rationale(v Vector, threshold float64) string {
	type notable struct {
		kind  signals.Kind
		value float64
	}
	var found []notable
	var missing []string
	for _, k := range signals.AllKinds {
		value, present := v.Get(k)
		if !present {
			missing = append(missing, k.String())
			continue
		}
		if value >= threshold {
			found = append(found, notable{k, value})
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].value > found[j].value
	})

	var b strings.Builder
	if len(found) < 2 {
		b.WriteString(GenericRationale)
	} else {
		for i, n := range found {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(clauses[n.kind])
		}
	}
	if len(missing) > 0 {
		b.WriteString("; ")
		b.WriteString(strings.Join(missing, ", "))
		b.WriteString(" data unavailable")
	}
	return TruncateRationale(b.String())
}

// TruncateRationale shortens s to MaxRationaleLength bytes, cutting at a word
// boundary and marking the cut with "...".
func TruncateRationale(s string) string {
	if len(s) <= MaxRationaleLength {
		return s
	}
	end := MaxRationaleLength - 3
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	cut := s[:end]
	if i := strings.LastIndexAny(cut, " ,;"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;") + "..."
}
