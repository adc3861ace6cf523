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

package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/berdachuk/medexpertmatch/core"
)

// Records are encoded as a format version followed by their fields in
// declaration order. Strings and bools use mus ord encoding, numbers use
// mus varint encoding, times are Unix microseconds (0 for the zero time).

const recordVersion = 1

type writer struct {
	bs []byte
}

func (w *writer) grow(n int) []byte {
	w.bs = append(w.bs, make([]byte, n)...)
	return w.bs[len(w.bs)-n:]
}

func (w *writer) int(v int) {
	varint.Int.Marshal(v, w.grow(varint.Int.Size(v)))
}

func (w *writer) int64(v int64) {
	varint.Int64.Marshal(v, w.grow(varint.Int64.Size(v)))
}

func (w *writer) float64(v float64) {
	varint.Float64.Marshal(v, w.grow(varint.Float64.Size(v)))
}

func (w *writer) str(v string) {
	ord.String.Marshal(v, w.grow(ord.String.Size(v)))
}

func (w *writer) bool(v bool) {
	ord.Bool.Marshal(v, w.grow(ord.Bool.Size(v)))
}

func (w *writer) strs(v []string) {
	w.int(len(v))
	for _, s := range v {
		w.str(s)
	}
}

func (w *writer) time(t time.Time) {
	if t.IsZero() {
		w.int64(0)
		return
	}
	w.int64(t.UnixMicro())
}

func (w *writer) geo(p *core.GeoPoint) {
	w.bool(p != nil)
	if p != nil {
		w.float64(p.Lat)
		w.float64(p.Lon)
	}
}

// reader decodes fields in order. The first error sticks and later reads
// return zero values.
type reader struct {
	bs  []byte
	err error
}

func (r *reader) advance(n int, err error) bool {
	if err != nil {
		r.err = err
		return false
	}
	r.bs = r.bs[n:]
	return true
}

func (r *reader) int() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return 0
	}
	return v
}

func (r *reader) int64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return 0
	}
	return v
}

func (r *reader) float64() float64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Float64.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return 0
	}
	return v
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return ""
	}
	return v
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(r.bs)
	if !r.advance(n, err) {
		return false
	}
	return v
}

func (r *reader) strs() []string {
	n := r.int()
	if r.err != nil || n == 0 {
		return nil
	}
	if n < 0 || n > len(r.bs) {
		r.err = ErrTruncatedData
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.str()
	}
	return out
}

func (r *reader) time() time.Time {
	us := r.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (r *reader) geo() *core.GeoPoint {
	if !r.bool() {
		return nil
	}
	return &core.GeoPoint{Lat: r.float64(), Lon: r.float64()}
}

func (r *reader) header(kind string) {
	if len(r.bs) == 0 {
		r.err = ErrTruncatedData
		return
	}
	if v := r.int(); r.err == nil && v != recordVersion {
		r.err = fmt.Errorf("%s: unsupported record version %d", kind, v)
	}
}

func (r *reader) done(kind string) error {
	if r.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, kind, r.err)
	}
	return nil
}

func newWriter() *writer {
	w := &writer{bs: make([]byte, 0, 256)}
	w.int(recordVersion)
	return w
}

// MarshalDoctor serializes a Doctor to bytes.
func MarshalDoctor(d *core.Doctor) []byte {
	w := newWriter()
	w.str(d.ID)
	w.str(d.Name)
	w.str(d.Email)
	w.strs(d.Specialties)
	w.strs(d.Certifications)
	w.strs(d.FacilityIDs)
	w.bool(d.TelehealthEnabled)
	w.str(d.Availability)
	return w.bs
}

// UnmarshalDoctor deserializes a Doctor from bytes.
func UnmarshalDoctor(data []byte) (*core.Doctor, error) {
	r := &reader{bs: data}
	r.header("doctor")
	d := &core.Doctor{
		ID:                r.str(),
		Name:              r.str(),
		Email:             r.str(),
		Specialties:       r.strs(),
		Certifications:    r.strs(),
		FacilityIDs:       r.strs(),
		TelehealthEnabled: r.bool(),
		Availability:      r.str(),
	}
	if err := r.done("doctor"); err != nil {
		return nil, err
	}
	return d, nil
}

// MarshalCase serializes a Case to bytes.
func MarshalCase(c *core.Case) []byte {
	w := newWriter()
	w.str(c.ID)
	w.int(c.PatientAge)
	w.str(c.ChiefComplaint)
	w.str(c.Symptoms)
	w.str(c.CurrentDiagnosis)
	w.strs(c.ICD10Codes)
	w.strs(c.SNOMEDCodes)
	w.int(int(c.Urgency))
	w.str(c.RequiredSpecialty)
	w.str(string(c.CaseType))
	w.str(c.AdditionalNotes)
	w.str(c.Abstract)
	w.strs(c.RequiredCapabilities)
	w.geo(c.Location)
	w.time(c.SubmittedAt)
	return w.bs
}

// UnmarshalCase deserializes a Case from bytes.
func UnmarshalCase(data []byte) (*core.Case, error) {
	r := &reader{bs: data}
	r.header("case")
	c := &core.Case{
		ID:                   r.str(),
		PatientAge:           r.int(),
		ChiefComplaint:       r.str(),
		Symptoms:             r.str(),
		CurrentDiagnosis:     r.str(),
		ICD10Codes:           r.strs(),
		SNOMEDCodes:          r.strs(),
		Urgency:              core.UrgencyLevel(r.int()),
		RequiredSpecialty:    r.str(),
		CaseType:             core.CaseType(r.str()),
		AdditionalNotes:      r.str(),
		Abstract:             r.str(),
		RequiredCapabilities: r.strs(),
		Location:             r.geo(),
		SubmittedAt:          r.time(),
	}
	if err := r.done("case"); err != nil {
		return nil, err
	}
	return c, nil
}

// MarshalExperience serializes an ExperienceRecord to bytes.
func MarshalExperience(e *core.ExperienceRecord) []byte {
	w := newWriter()
	w.str(e.ID)
	w.str(e.DoctorID)
	w.str(e.CaseID)
	w.str(e.Specialty)
	w.strs(e.Procedures)
	w.str(string(e.Complexity))
	w.str(string(e.Outcome))
	w.strs(e.Complications)
	w.int(e.TimeToResolutionDays)
	w.int(e.Rating)
	w.time(e.RecordedAt)
	return w.bs
}

// UnmarshalExperience deserializes an ExperienceRecord from bytes.
func UnmarshalExperience(data []byte) (*core.ExperienceRecord, error) {
	r := &reader{bs: data}
	r.header("experience")
	e := &core.ExperienceRecord{
		ID:                   r.str(),
		DoctorID:             r.str(),
		CaseID:               r.str(),
		Specialty:            r.str(),
		Procedures:           r.strs(),
		Complexity:           core.ComplexityLevel(r.str()),
		Outcome:              core.Outcome(r.str()),
		Complications:        r.strs(),
		TimeToResolutionDays: r.int(),
		Rating:               r.int(),
		RecordedAt:           r.time(),
	}
	if err := r.done("experience"); err != nil {
		return nil, err
	}
	return e, nil
}

// MarshalFacility serializes a Facility to bytes.
func MarshalFacility(f *core.Facility) []byte {
	w := newWriter()
	w.str(f.ID)
	w.str(f.Name)
	w.str(f.Type)
	w.str(f.City)
	w.str(f.State)
	w.str(f.Country)
	w.geo(f.Location)
	w.strs(f.Capabilities)
	w.int(f.Capacity)
	w.int(f.CurrentOccupancy)
	return w.bs
}

// UnmarshalFacility deserializes a Facility from bytes.
func UnmarshalFacility(data []byte) (*core.Facility, error) {
	r := &reader{bs: data}
	r.header("facility")
	f := &core.Facility{
		ID:               r.str(),
		Name:             r.str(),
		Type:             r.str(),
		City:             r.str(),
		State:            r.str(),
		Country:          r.str(),
		Location:         r.geo(),
		Capabilities:     r.strs(),
		Capacity:         r.int(),
		CurrentOccupancy: r.int(),
	}
	if err := r.done("facility"); err != nil {
		return nil, err
	}
	return f, nil
}

// MarshalMatch serializes a ConsultationMatch to bytes.
func MarshalMatch(m *core.ConsultationMatch) []byte {
	w := newWriter()
	w.str(m.ID)
	w.str(m.CaseID)
	w.str(m.DoctorID)
	w.float64(m.Score)
	w.str(m.Rationale)
	w.int(m.Rank)
	w.str(string(m.Status))
	w.strs(m.Signals)
	w.time(m.CreatedAt)
	return w.bs
}

// UnmarshalMatch deserializes a ConsultationMatch from bytes.
func UnmarshalMatch(data []byte) (*core.ConsultationMatch, error) {
	r := &reader{bs: data}
	r.header("match")
	m := &core.ConsultationMatch{
		ID:        r.str(),
		CaseID:    r.str(),
		DoctorID:  r.str(),
		Score:     r.float64(),
		Rationale: r.str(),
		Rank:      r.int(),
		Status:    core.MatchStatus(r.str()),
		Signals:   r.strs(),
		CreatedAt: r.time(),
	}
	if err := r.done("match"); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalVector serializes an embedding as little-endian float32 values.
func MarshalVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// UnmarshalVector deserializes an embedding.
func UnmarshalVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector of %d bytes", ErrTruncatedData, len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
