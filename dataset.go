package medexpertmatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/graph"
	"github.com/berdachuk/medexpertmatch/storage"
)

// LoadDataset reads a YAML seed file.
func LoadDataset(path string) (graph.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return graph.Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset decodes a YAML dataset. Unknown keys are rejected.
func ReadDataset(r io.Reader) (graph.Dataset, error) {
	var ds graph.Dataset
	data, err := io.ReadAll(r)
	if err != nil {
		return ds, fmt.Errorf("read dataset: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ds, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return ds, fmt.Errorf("parse dataset: %w", err)
	}
	return ds, nil
}

// storeDataset validates every entity of ds and then writes them. Cases are
// stored under their normalized IDs. Nothing is written when any entity is
// invalid.
func storeDataset(ctx context.Context, repos *storage.Repositories, ds graph.Dataset) error {
	for i := range ds.Doctors {
		if err := core.ValidateDoctor(&ds.Doctors[i]); err != nil {
			return fmt.Errorf("doctor %d: %w", i, err)
		}
	}
	for i := range ds.Facilities {
		if err := core.ValidateFacility(&ds.Facilities[i]); err != nil {
			return fmt.Errorf("facility %d: %w", i, err)
		}
	}
	for i := range ds.Experiences {
		if err := core.ValidateExperience(&ds.Experiences[i]); err != nil {
			return fmt.Errorf("experience %d: %w", i, err)
		}
	}
	cases := make([]*core.Case, len(ds.Cases))
	for i := range ds.Cases {
		c := ds.Cases[i]
		if err := core.ValidateCase(&c); err != nil {
			return fmt.Errorf("case %d: %w", i, err)
		}
		c.ID = core.NormalizeCaseID(c.ID)
		cases[i] = &c
	}

	if err := repos.Facilities.PutFacilities(ctx, ptrs(ds.Facilities)...); err != nil {
		return fmt.Errorf("store facilities: %w", err)
	}
	if err := repos.Doctors.PutDoctors(ctx, ptrs(ds.Doctors)...); err != nil {
		return fmt.Errorf("store doctors: %w", err)
	}
	if err := repos.Cases.PutCases(ctx, cases...); err != nil {
		return fmt.Errorf("store cases: %w", err)
	}
	if err := repos.Experiences.PutExperiences(ctx, ptrs(ds.Experiences)...); err != nil {
		return fmt.Errorf("store experience: %w", err)
	}
	return nil
}

// datasetFrom reads the current contents of repos.
func datasetFrom(ctx context.Context, repos *storage.Repositories) (graph.Dataset, error) {
	var ds graph.Dataset
	doctors, err := repos.Doctors.ListDoctors(ctx)
	if err != nil {
		return ds, fmt.Errorf("list doctors: %w", err)
	}
	cases, err := repos.Cases.ListCases(ctx)
	if err != nil {
		return ds, fmt.Errorf("list cases: %w", err)
	}
	records, err := repos.Experiences.ListExperiences(ctx)
	if err != nil {
		return ds, fmt.Errorf("list experience: %w", err)
	}
	facilities, err := repos.Facilities.ListFacilities(ctx)
	if err != nil {
		return ds, fmt.Errorf("list facilities: %w", err)
	}
	ds.Doctors = values(doctors)
	ds.Cases = values(cases)
	ds.Experiences = values(records)
	ds.Facilities = values(facilities)
	return ds, nil
}

func ptrs[T any](in []T) []*T {
	out := make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return out
}

func values[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
