package core

import (
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "chest pain radiating to left arm"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of case text that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IDFromContent(tt.content) != IDFromContent(tt.content) {
				t.Errorf("IDFromContent() produced different IDs for same content")
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent("content1") == IDFromContent("content2") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestUrgencyLevel_Ordering(t *testing.T) {
	levels := []UrgencyLevel{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}
	for i := 1; i < len(levels); i++ {
		if levels[i].Ordinal() <= levels[i-1].Ordinal() {
			t.Errorf("%s should outrank %s", levels[i], levels[i-1])
		}
	}

	weights := map[UrgencyLevel]float64{
		UrgencyCritical: 1.0,
		UrgencyHigh:     0.75,
		UrgencyMedium:   0.5,
		UrgencyLow:      0.25,
		UrgencyLevel(0): 0,
		UrgencyLevel(9): 0,
	}
	for level, want := range weights {
		if got := level.Weight(); got != want {
			t.Errorf("%s.Weight() = %v, want %v", level, got, want)
		}
	}
}

func TestParseUrgencyLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    UrgencyLevel
		wantErr bool
	}{
		{in: "CRITICAL", want: UrgencyCritical},
		{in: " high ", want: UrgencyHigh},
		{in: "Medium", want: UrgencyMedium},
		{in: "low", want: UrgencyLow},
		{in: "urgent", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUrgencyLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidUrgency) {
					t.Errorf("ParseUrgencyLevel(%q) error = %v, want ErrInvalidUrgency", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseUrgencyLevel(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestUrgencyLevel_YAML(t *testing.T) {
	var c Case
	if err := yaml.Unmarshal([]byte("id: c1\nurgency: high\n"), &c); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if c.Urgency != UrgencyHigh {
		t.Errorf("urgency = %v, want HIGH", c.Urgency)
	}
}

func TestNormalizeCaseID(t *testing.T) {
	if got := NormalizeCaseID("  CASE-42 "); got != "case-42" {
		t.Errorf("NormalizeCaseID() = %q, want %q", got, "case-42")
	}
}

func TestDoctor_HasSpecialty(t *testing.T) {
	d := Doctor{ID: "d1", Specialties: []string{"Cardiology", "Internal Medicine"}}

	if !d.HasSpecialty("cardiology") {
		t.Errorf("HasSpecialty should ignore case")
	}
	if !d.HasSpecialty(" Internal Medicine ") {
		t.Errorf("HasSpecialty should ignore surrounding space")
	}
	if d.HasSpecialty("Neurology") {
		t.Errorf("HasSpecialty(Neurology) = true, want false")
	}
}

func TestFacility_HasCapabilities(t *testing.T) {
	f := Facility{ID: "f1", Capabilities: []string{"ICU", "Cath Lab"}}

	if !f.HasCapabilities(nil) {
		t.Errorf("no requirements should always match")
	}
	if !f.HasCapabilities([]string{"icu", "cath lab"}) {
		t.Errorf("capabilities should match case-insensitively")
	}
	if f.HasCapabilities([]string{"ICU", "PET"}) {
		t.Errorf("missing capability should fail the filter")
	}
}

func TestCase_SearchText(t *testing.T) {
	c := Case{ChiefComplaint: "Chest pain", Symptoms: " dyspnea ", Abstract: ""}
	if got := c.SearchText(); got != "Chest pain dyspnea" {
		t.Errorf("SearchText() = %q", got)
	}
}
