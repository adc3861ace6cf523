package graph

import (
	"context"
	"fmt"

	"github.com/berdachuk/medexpertmatch/core"
)

// Dataset is the relational data a graph is built from.
type Dataset struct {
	Doctors     []core.Doctor           `yaml:"doctors"`
	Cases       []core.Case             `yaml:"cases"`
	Experiences []core.ExperienceRecord `yaml:"experiences"`
	Facilities  []core.Facility         `yaml:"facilities"`
}

// Build writes the nodes and edges derived from ds into w.
//
// Doctors link to their specialties and facilities, cases to their conditions
// and required specialty. Each experience record links the doctor to the case
// treated, the procedures performed and the conditions of that case.
func Build(ctx context.Context, w Writer, ds Dataset) error {
	b := &builder{w: w, seen: make(map[nodeKey]bool)}

	for i := range ds.Facilities {
		f := &ds.Facilities[i]
		if err := b.node(ctx, LabelFacility, f.ID, map[string]any{"name": f.Name, "type": f.Type}); err != nil {
			return err
		}
	}

	for i := range ds.Doctors {
		d := &ds.Doctors[i]
		if err := b.node(ctx, LabelDoctor, d.ID, map[string]any{"name": d.Name}); err != nil {
			return err
		}
		for _, s := range d.Specialties {
			if err := b.link(ctx, LabelDoctor, d.ID, RelSpecializesIn, LabelSpecialty, SpecialtyKey(s), s); err != nil {
				return err
			}
		}
		for _, fid := range d.FacilityIDs {
			if err := b.link(ctx, LabelDoctor, d.ID, RelAffiliatedWith, LabelFacility, fid, ""); err != nil {
				return err
			}
		}
	}

	conditions := make(map[string][]string, len(ds.Cases))
	for i := range ds.Cases {
		c := &ds.Cases[i]
		id := core.NormalizeCaseID(c.ID)
		conditions[id] = c.ICD10Codes
		if err := b.node(ctx, LabelCase, id, map[string]any{"urgency": c.Urgency.String()}); err != nil {
			return err
		}
		for _, code := range c.ICD10Codes {
			if err := b.link(ctx, LabelCase, id, RelHasCondition, LabelICD10, ConditionKey(code), code); err != nil {
				return err
			}
		}
		if c.RequiredSpecialty != "" {
			if err := b.link(ctx, LabelCase, id, RelRequiresSpecialty, LabelSpecialty, SpecialtyKey(c.RequiredSpecialty), c.RequiredSpecialty); err != nil {
				return err
			}
		}
	}

	for i := range ds.Experiences {
		r := &ds.Experiences[i]
		if !b.seen[nodeKey{LabelDoctor, r.DoctorID}] {
			return fmt.Errorf("experience %s: %w: doctor %s", r.ID, ErrUnknownNode, r.DoctorID)
		}
		if r.CaseID != "" {
			caseID := core.NormalizeCaseID(r.CaseID)
			if err := b.link(ctx, LabelDoctor, r.DoctorID, RelTreated, LabelCase, caseID, ""); err != nil {
				return err
			}
			for _, code := range conditions[caseID] {
				if err := b.link(ctx, LabelDoctor, r.DoctorID, RelTreatsCondition, LabelICD10, ConditionKey(code), code); err != nil {
					return err
				}
			}
		}
		for _, p := range r.Procedures {
			if err := b.link(ctx, LabelDoctor, r.DoctorID, RelPerformed, LabelProcedure, SpecialtyKey(p), p); err != nil {
				return err
			}
		}
	}
	return nil
}

type builder struct {
	w    Writer
	seen map[nodeKey]bool
}

func (b *builder) node(ctx context.Context, label, id string, props map[string]any) error {
	key := nodeKey{label, id}
	if b.seen[key] {
		return nil
	}
	if err := b.w.UpsertNode(ctx, label, id, props); err != nil {
		return fmt.Errorf("upsert %s %s: %w", label, id, err)
	}
	b.seen[key] = true
	return nil
}

// link creates the target node on demand; name is stored on it when non-empty.
func (b *builder) link(ctx context.Context, fromLabel, fromID, rel, toLabel, toID, name string) error {
	var props map[string]any
	if name != "" {
		props = map[string]any{"name": name}
	}
	if err := b.node(ctx, toLabel, toID, props); err != nil {
		return err
	}
	if err := b.w.UpsertEdge(ctx, fromLabel, fromID, rel, toLabel, toID); err != nil {
		return fmt.Errorf("upsert %s edge %s->%s: %w", rel, fromID, toID, err)
	}
	return nil
}
