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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/resilience"
	"github.com/berdachuk/medexpertmatch/storage"
)

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of cases embedded per call.
	BatchSize int `yaml:"batchSize"`

	// ReportInterval is how many cases pass between progress lines.
	ReportInterval int `yaml:"reportInterval"`

	// Retry governs each batch's embedding call.
	Retry resilience.Policy `yaml:"retry"`

	// MissingOnly skips cases that already have a stored vector.
	MissingOnly bool `yaml:"missingOnly"`
}

// DefaultConfig returns batches of 100, a report every 100 cases and three
// attempts starting at one second.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Retry:          resilience.Policy{MaxAttempts: 3, BaseDelay: time.Second, Multiplier: 2},
	}
}

// Summary describes a finished run.
type Summary struct {
	Total    int
	Embedded int
	Skipped  int
	Elapsed  time.Duration
}

// Reembedder re-embeds every stored case.
type Reembedder struct {
	cases     storage.CaseRepository
	vectors   storage.VectorIndex
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *CaseIterator
	logger    *slog.Logger
}

// NewReembedder creates a reembedder over repos. progress receives the
// human-readable progress line, typically os.Stderr; nil discards it.
func NewReembedder(repos *storage.Repositories, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repos == nil || repos.Cases == nil {
		return nil, ErrCaseRepositoryRequired
	}
	if repos.Vectors == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		cases:     repos.Cases,
		vectors:   repos.Vectors,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repos.Vectors, embedder, config.Retry),
		iterator:  NewCaseIterator(repos.Cases, config.BatchSize),
		logger:    slog.Default().With("component", "reembedder"),
	}, nil
}

// Run embeds every stored case and reports progress as it goes.
func (r *Reembedder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return sum, fmt.Errorf("counting cases: %w", err)
	}
	sum.Total = total
	if total == 0 {
		fmt.Fprintln(r.progress, "No cases found (0 cases)")
		return sum, nil
	}

	fmt.Fprintf(r.progress, "Re-embedding %d cases (batch size: %d)\n", total, r.iterator.batchSize)
	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(batch []*core.Case) error {
		pending, err := r.pending(ctx, batch)
		if err != nil {
			return err
		}
		res, err := r.processor.Process(ctx, pending)
		sum.Embedded += res.Embedded
		sum.Skipped += res.Skipped + len(batch) - len(pending)
		if err != nil {
			return fmt.Errorf("processing batch at case %s: %w", batch[0].ID, err)
		}
		processed += len(batch)
		tracker.Update(processed)
		return nil
	})
	sum.Elapsed = tracker.Elapsed()
	if err != nil {
		r.logger.Error("reembedding stopped", "embedded", sum.Embedded, "error", err)
		return sum, err
	}

	tracker.Finish()
	fmt.Fprintf(r.progress, "Re-embedding complete: %d embedded, %d skipped in %v\n",
		sum.Embedded, sum.Skipped, sum.Elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete", "total", sum.Total, "embedded", sum.Embedded, "skipped", sum.Skipped)
	return sum, nil
}

// pending drops cases that already carry a vector when MissingOnly is set.
func (r *Reembedder) pending(ctx context.Context, batch []*core.Case) ([]*core.Case, error) {
	if !r.config.MissingOnly {
		return batch, nil
	}
	out := make([]*core.Case, 0, len(batch))
	for _, c := range batch {
		_, ok, err := r.vectors.CaseVector(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("reading vector of case %s: %w", c.ID, err)
		}
		if !ok {
			out = append(out, c)
		}
	}
	return out, nil
}
