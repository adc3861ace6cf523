package matching

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/scoring"
	"github.com/berdachuk/medexpertmatch/storage"
)

// RouteResult is the outcome of one Route call.
type RouteResult struct {
	CaseID     string
	Facilities []scoring.FacilityScore
	// NoFacilities is set when no facility passed the capability and
	// distance filters.
	NoFacilities bool
}

// Router ranks facilities for a case.
type Router struct {
	facilities storage.FacilityRepository
	cfg        scoring.RouteConfig
	logger     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router) error

// WithRouteConfig sets the suitability weights.
func WithRouteConfig(cfg scoring.RouteConfig) RouterOption {
	return func(r *Router) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		r.cfg = cfg
		return nil
	}
}

// WithRouterLogger sets a custom logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRouter creates a router over facilities.
func NewRouter(facilities storage.FacilityRepository, opts ...RouterOption) (*Router, error) {
	if facilities == nil {
		return nil, ErrRepositoriesRequired
	}
	r := &Router{facilities: facilities, cfg: scoring.DefaultRouteConfig(), logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "router")
	return r, nil
}

// Route scores every stored facility for c. The case's required
// capabilities and location feed the filters and the proximity term.
func (r *Router) Route(ctx context.Context, c *core.Case, opts RoutingOptions) (*RouteResult, error) {
	if c == nil {
		return nil, ErrCaseRequired
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	stored, err := r.facilities.ListFacilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load facilities: %w", err)
	}
	facilities := make([]core.Facility, 0, len(stored))
	for _, f := range stored {
		if f != nil {
			facilities = append(facilities, *f)
		}
	}

	q := scoring.RouteQuery{
		RequiredCapabilities: mergeCapabilities(c.RequiredCapabilities, opts.RequiredCapabilities),
		PreferredTypes:       opts.PreferredFacilityTypes,
		Origin:               c.Location,
		MaxDistanceKm:        opts.MaxDistanceKm,
	}
	scored, err := scoring.ScoreFacilities(facilities, q, r.cfg)
	if err != nil {
		return nil, err
	}
	ranked := scoring.RankFacilities(scored, opts.MaxResults, opts.MinScore)

	res := &RouteResult{CaseID: core.NormalizeCaseID(c.ID), Facilities: ranked, NoFacilities: len(ranked) == 0}
	r.logger.Debug("case routed", "case", res.CaseID, "facilities", len(facilities), "eligible", len(scored), "ranked", len(ranked))
	return res, nil
}
