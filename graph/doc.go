// Package graph scores relational proximity between a case and candidate doctors.
//
// The property graph holds Doctor, MedicalCase, MedicalSpecialty, ICD10Code,
// Procedure and Facility nodes. For each candidate the best path from the
// case to the doctor is reported as a Path (hop count plus the product of the
// relationship weights along it). A doctor with no path is simply absent from
// the result; that is different from the graph being unavailable.
//
// Two sources are provided: Memory, an in-process adjacency graph searched
// layer by layer, and CypherSource, which runs fixed relationship patterns
// through a Provider such as the Apache AGE client in graph/age.
package graph
