// Package matching orchestrates the engine: it resolves the candidate pool,
// applies the hard filters, collects and fuses signals, ranks and persists
// consultation matches. It also hosts the case prioritizer, the facility
// router and the case description generator.
//
// Basic usage:
//
//	collector, _ := signals.NewCollector(
//	    signals.WithEmbeddingSource(embedding),
//	    signals.WithGraphSource(graphSource),
//	    signals.WithLexicalSource(index),
//	    signals.WithExperienceSource(repos.Experiences),
//	)
//	defer collector.Release()
//
//	matcher, err := matching.NewMatcher(repos, collector)
//	if err != nil {
//	    return err
//	}
//	result, err := matcher.MatchByID(ctx, "case-1", matching.DefaultMatchOptions())
package matching
