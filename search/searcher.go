package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/storage"
)

// Searcher provides hybrid text and semantic search over catalog items.
type Searcher struct {
	catalog  storage.CatalogRepository
	embedder ai.Embedder
	index    storage.VectorIndex
	semantic *SemanticRanker
	config   Config
	monitor  Monitor
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithConfig replaces the ranking constants.
func WithConfig(config Config) Option {
	return func(s *Searcher) error {
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid search config: %w", err)
		}
		s.config = config
		return nil
	}
}

// WithVectorIndex sets the index queried for semantic candidates.
// Default is the catalog repository itself.
func WithVectorIndex(index storage.VectorIndex) Option {
	return func(s *Searcher) error {
		if index != nil {
			s.index = index
		}
		return nil
	}
}

// WithMonitor registers hooks observing every search.
func WithMonitor(monitor Monitor) Option {
	return func(s *Searcher) error {
		if monitor != nil {
			s.monitor = monitor
		}
		return nil
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Searcher) error {
		if tracer != nil {
			s.tracer = tracer
		}
		return nil
	}
}

// NewSearcher creates a new searcher. embedder may be nil, in which case
// every search runs in text mode.
func NewSearcher(catalog storage.CatalogRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}

	s := &Searcher{
		catalog:  catalog,
		embedder: embedder,
		index:    catalog,
		config:   DefaultConfig(),
		monitor:  &noopMonitor{},
		tracer:   otel.Tracer("github.com/poiesic/schedex/search"),
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "search")
	s.semantic = NewSemanticRanker(embedder, s.index, s.config.TopK, s.config.MinSimilarity)
	return s, nil
}

// SemanticAvailable reports whether semantic and hybrid modes can run.
func (s *Searcher) SemanticAvailable() bool {
	return s.semantic != nil
}

// Search ranks items for req and returns one page of results.
func (s *Searcher) Search(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "search.query", trace.WithAttributes(
		attribute.String("search.mode", string(req.Mode)),
		attribute.String("search.sort", string(req.SortBy)),
	))
	defer span.End()
	s.monitor.Start(req.Query, req.Mode)

	ranked, effective, err := s.rank(ctx, req.Query, req.Mode, &req.Filters)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sortCandidates(ranked, req.SortBy)

	page := paginate(ranked, req.Offset, req.Limit)
	results := make([]*Result, len(page))
	for i, c := range page {
		results[i] = c.result(effective)
	}

	resp := &Response{
		Results:        results,
		Total:          len(ranked),
		HasMore:        req.Offset+req.Limit < len(ranked),
		RequestedMode:  req.Mode,
		EffectiveMode:  effective,
		ProcessingTime: time.Since(start),
	}
	span.SetAttributes(attribute.String("search.effective_mode", string(effective)), attribute.Int("search.total", resp.Total))
	s.monitor.Finish(req.Mode, effective, resp.Total, resp.ProcessingTime)
	return resp, nil
}

// SmartSearch ranks items for req and splits them into exact and related
// sections according to the query intent.
func (s *Searcher) SmartSearch(ctx context.Context, req *SmartRequest) (*SmartResponse, error) {
	start := time.Now()
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "search.smart", trace.WithAttributes(
		attribute.String("search.mode", string(req.Mode)),
	))
	defer span.End()
	s.monitor.Start(req.Query, req.Mode)

	class := s.classify(req)
	span.SetAttributes(attribute.String("search.intent", string(class.Intent)))

	var exact *core.CatalogItem
	if class.Intent != IntentTextSearch {
		item, err := s.catalog.GetItem(ctx, class.Number)
		switch {
		case err == nil:
			exact = item
		case !errors.Is(err, storage.ErrNotFound):
			span.RecordError(err)
			return nil, fmt.Errorf("failed to look up item %d: %w", class.Number, err)
		}
	}

	// A bare number ranks related items by the named item's description
	query := class.Text
	if query == "" {
		query = req.Query
		if exact != nil {
			query = exact.Description
		}
	}

	ranked, effective, err := s.rank(ctx, query, req.Mode, &req.Filters)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if exact != nil && req.Filters.Match(exact) {
		ranked = slices.DeleteFunc(ranked, func(c *candidate) bool { return c.item.Number == exact.Number })
		ranked = append(ranked, &candidate{
			item:   exact,
			text:   TextScore{Score: 1, Coverage: 1, NumberMatch: true},
			inText: true,
			score:  1,
		})
	}
	sortCandidates(ranked, req.SortBy)

	results := make([]*Result, len(ranked))
	for i, c := range ranked {
		results[i] = c.result(effective)
	}
	exactMatches, related := Section(results, class, s.config.ExactThreshold, req.Offset, req.Limit)

	resp := &SmartResponse{
		ExactMatches:   exactMatches,
		RelatedMatches: related,
		Total:          len(ranked),
		HasMore:        req.Offset+req.Limit < len(ranked),
		RequestedMode:  req.Mode,
		EffectiveMode:  effective,
		Intent:         class.Intent,
		ItemNumber:     class.Number,
		ProcessingTime: time.Since(start),
	}
	s.monitor.Finish(req.Mode, effective, resp.Total, resp.ProcessingTime)
	return resp, nil
}

// classify applies the explicit item number and text overrides of req.
func (s *Searcher) classify(req *SmartRequest) Classification {
	class := ClassifyIntent(req.Query, req.Intent)
	if req.ItemNumber != 0 && req.Intent != IntentTextSearch {
		class.Number = req.ItemNumber
		if class.Intent == IntentTextSearch {
			class.Intent = IntentItemNumberText
		}
	}
	if text := req.TextQuery; text != "" && class.Intent != IntentTextSearch {
		class.Text = text
		class.Intent = IntentItemNumberText
	}
	if class.Intent == IntentItemNumberText && class.Text == "" {
		class.Intent = IntentExactItemNumber
	}
	return class
}

type semanticOutcome struct {
	scores map[core.ItemNumber]float64
	err    error
}

// rank scores every item matching filters for query and returns the
// blended candidates with the mode that actually ran.
func (s *Searcher) rank(ctx context.Context, query string, requested Mode, filters *Filters) ([]*candidate, Mode, error) {
	effective := ResolveMode(requested, s.SemanticAvailable())
	ranker := NewTextRanker(query)

	var (
		textHits []*candidate
		semantic semanticOutcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if ranker.Empty() {
			return nil
		}
		return s.catalog.ForEachItem(gctx, func(item *core.CatalogItem) error {
			if !filters.Match(item) {
				return nil
			}
			if ts := ranker.Score(item); ts.Score > 0 {
				textHits = append(textHits, &candidate{item: item, text: ts, inText: true})
			}
			return nil
		})
	})
	if effective != ModeText {
		g.Go(func() error {
			semantic = s.rankSemantic(gctx, query)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, effective, fmt.Errorf("text ranking failed: %w", err)
	}
	s.monitor.AfterTextRanking(len(textHits))

	if effective != ModeText {
		s.monitor.AfterSemanticRanking(len(semantic.scores), semantic.err)
		if semantic.err != nil {
			s.logger.Warn("semantic ranking unavailable, using text mode", "err", semantic.err)
			effective = ModeText
		}
	}

	candidates := textHits
	if effective != ModeText {
		var err error
		candidates, err = s.mergeSemantic(ctx, textHits, semantic.scores, filters)
		if err != nil {
			return nil, effective, err
		}
	}

	weights := Weights{
		Text:                s.config.TextWeight,
		Semantic:            s.config.SemanticWeight,
		SingleSourcePenalty: s.config.SingleSourcePenalty,
	}
	return Blend(effective, weights, candidates), effective, nil
}

// rankSemantic runs the semantic ranker within the configured budget. The
// ranker keeps running in the background if the budget expires first.
func (s *Searcher) rankSemantic(ctx context.Context, query string) semanticOutcome {
	ctx, cancel := context.WithTimeout(ctx, s.config.SemanticTimeout)
	defer cancel()

	done := make(chan semanticOutcome, 1)
	go func() {
		scores, err := s.semantic.Rank(ctx, query)
		done <- semanticOutcome{scores: scores, err: err}
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return semanticOutcome{err: fmt.Errorf("%w: %w", ErrSemanticUnavailable, ctx.Err())}
	}
}

// mergeSemantic attaches semantic scores to text hits and loads the items
// only the semantic ranker found.
func (s *Searcher) mergeSemantic(ctx context.Context, textHits []*candidate, scores map[core.ItemNumber]float64, filters *Filters) ([]*candidate, error) {
	byNumber := make(map[core.ItemNumber]*candidate, len(textHits)+len(scores))
	for _, c := range textHits {
		byNumber[c.item.Number] = c
	}

	var missing []core.ItemNumber
	for n, score := range scores {
		if c, ok := byNumber[n]; ok {
			c.semantic = score
			c.inSemantic = true
			continue
		}
		missing = append(missing, n)
	}
	slices.Sort(missing)

	candidates := textHits
	if len(missing) > 0 {
		items, err := s.catalog.GetItems(ctx, missing...)
		if err != nil {
			return nil, fmt.Errorf("failed to load semantic matches: %w", err)
		}
		for _, item := range items {
			// An external index may lag behind the catalog
			if !item.HasEmbedding() || !filters.Match(item) {
				continue
			}
			candidates = append(candidates, &candidate{item: item, semantic: scores[item.Number], inSemantic: true})
		}
	}
	return candidates, nil
}

// FilterOptions lists categories and provider types with item counts, and
// the search modes currently available.
func (s *Searcher) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	counts, err := s.catalog.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count catalog items: %w", err)
	}

	opts := &FilterOptions{AvailableModes: []Mode{ModeText}}
	if s.SemanticAvailable() {
		opts.AvailableModes = append(opts.AvailableModes, ModeSemantic, ModeHybrid)
	}

	for category, n := range counts.ByCategory {
		opts.Categories = append(opts.Categories, FilterCount{Value: category, Count: n})
	}
	slices.SortFunc(opts.Categories, func(a, b FilterCount) int {
		return compareCategories(a.Value, b.Value)
	})

	for _, pt := range core.ProviderTypes {
		if n := counts.ByProviderType[pt]; n > 0 {
			opts.ProviderTypes = append(opts.ProviderTypes, FilterCount{Value: string(pt), Count: n})
		}
	}
	return opts, nil
}

// compareCategories orders numeric categories numerically, before any
// non-numeric ones.
func compareCategories(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return cmp.Compare(a, b)
}
