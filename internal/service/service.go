// Package service wires the resolve, rewrite, compile, and execute stages
// into the public query operations and materialises index documents into
// result types.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/internal/query"
	"github.com/snograph/snoquery/internal/store"
	"github.com/snograph/snoquery/pkg/config"
	"github.com/snograph/snoquery/pkg/errors"
	"github.com/snograph/snoquery/pkg/metrics"
	"github.com/snograph/snoquery/pkg/redis"
)

// ConstraintConverter turns a caller-facing constraint expression into the
// internal query syntax with traversal markers. The default accepts input
// already in the internal syntax.
type ConstraintConverter interface {
	Convert(constraint string) (string, error)
}

type identityConverter struct{}

func (identityConverter) Convert(constraint string) (string, error) {
	return constraint, nil
}

// QueryService answers constraint and free-text queries over one loaded
// release snapshot. The snapshot is immutable, so all methods are safe for
// concurrent use.
type QueryService struct {
	snap      *index.Snapshot
	info      *store.ReleaseInfo
	resolver  *query.Resolver
	executor  *query.Executor
	refsets   *refsetCache
	cache     *pageCache
	converter ConstraintConverter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	defaultLimit int
	maxResults   int
}

// Option configures optional service collaborators.
type Option func(*QueryService)

// WithConverter installs a caller-facing constraint language converter.
func WithConverter(c ConstraintConverter) Option {
	return func(s *QueryService) { s.converter = c }
}

// WithPageCache enables the Redis result page cache.
func WithPageCache(client *redis.Client) Option {
	return func(s *QueryService) {
		release := ""
		if s.info != nil {
			release = s.info.EffectiveTime
		}
		s.cache = newPageCache(client, s.metrics, release)
	}
}

// New creates a QueryService over the snapshot.
func New(snap *index.Snapshot, info *store.ReleaseInfo, cfg config.QueryConfig, m *metrics.Metrics, opts ...Option) *QueryService {
	s := &QueryService{
		snap: snap,
		info: info,
		resolver: query.NewResolver(snap, func(expansion int) {
			m.ResolverExpansion.Observe(float64(expansion))
		}),
		executor:     query.NewExecutor(snap, cfg.MaxClauseCount),
		converter:    identityConverter{},
		metrics:      m,
		logger:       slog.Default().With("component", "query-service"),
		defaultLimit: cfg.DefaultLimit,
		maxResults:   cfg.MaxResults,
	}
	s.refsets = newRefsetCache(snap, m)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs a constraint and/or free-text query and returns one ranked
// page of concepts. An empty constraint with an empty term lists every
// concept. limit 0 applies the configured default; limit -1 removes the
// bound entirely.
func (s *QueryService) Search(ctx context.Context, constraint, term string, offset, limit int) (*ConceptPage, error) {
	offset, limit = s.clampPage(offset, limit)
	compute := func() (*ConceptPage, error) {
		return s.search(ctx, constraint, term, offset, limit)
	}
	if s.cache != nil {
		return s.cache.getOrCompute(ctx, s.cache.key(constraint, term, offset, limit), compute)
	}
	return compute()
}

func (s *QueryService) search(ctx context.Context, constraint, term string, offset, limit int) (*ConceptPage, error) {
	start := time.Now()
	compiled, err := s.compile(ctx, constraint, term)
	if err != nil {
		s.observe("search", start, err, 0)
		return nil, err
	}
	ords, total, err := s.executor.Execute(compiled, offset, limit)
	if err != nil {
		s.observe("search", start, err, 0)
		return nil, err
	}
	items := make([]ConceptResult, 0, len(ords))
	for _, ord := range ords {
		result, err := s.materialise(ord)
		if err != nil {
			s.observe("search", start, err, 0)
			return nil, err
		}
		items = append(items, result)
	}
	s.observe("search", start, nil, total)
	return &ConceptPage{Items: items, Offset: offset, Limit: limit, Total: total}, nil
}

// SearchIDs is the identifier-only variant of Search.
func (s *QueryService) SearchIDs(ctx context.Context, constraint, term string, offset, limit int) (*IDPage, error) {
	start := time.Now()
	offset, limit = s.clampPage(offset, limit)
	compiled, err := s.compile(ctx, constraint, term)
	if err != nil {
		s.observe("search_ids", start, err, 0)
		return nil, err
	}
	ids, total, err := s.executor.ExecuteIDs(compiled, offset, limit)
	if err != nil {
		s.observe("search_ids", start, err, 0)
		return nil, err
	}
	s.observe("search_ids", start, nil, total)
	return &IDPage{IDs: ids, Offset: offset, Limit: limit, Total: total}, nil
}

// ConceptByID returns one concept, or a not-found error.
func (s *QueryService) ConceptByID(ctx context.Context, conceptID string) (*ConceptResult, error) {
	if !index.IDPattern.MatchString(conceptID) {
		return nil, errors.Newf(errors.ErrInvalidInput, 400, "malformed concept id %q", conceptID)
	}
	ords := s.snap.Postings(index.FieldID, conceptID)
	if len(ords) == 0 {
		return nil, errors.ConceptNotFound(conceptID)
	}
	result, err := s.materialise(ords[0])
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ConceptByDescriptionID returns the concept owning the description, or
// (nil, nil) when no concept carries it.
func (s *QueryService) ConceptByDescriptionID(ctx context.Context, descriptionID string) (*ConceptResult, error) {
	ords := s.snap.Postings(index.FieldDescriptionIDs, descriptionID)
	if len(ords) == 0 {
		return nil, nil
	}
	result, err := s.materialise(ords[0])
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Ancestors returns every concept on the transitive is-a closure above the
// concept, ranked.
func (s *QueryService) Ancestors(ctx context.Context, conceptID string, offset, limit int) (*ConceptPage, error) {
	return s.traverse(ctx, query.AncestorOf, conceptID, offset, limit)
}

// Descendants returns every concept whose closure contains the concept,
// ranked.
func (s *QueryService) Descendants(ctx context.Context, conceptID string, offset, limit int) (*ConceptPage, error) {
	return s.traverse(ctx, query.DescendantOf, conceptID, offset, limit)
}

func (s *QueryService) traverse(ctx context.Context, fn query.Function, conceptID string, offset, limit int) (*ConceptPage, error) {
	if !index.IDPattern.MatchString(conceptID) {
		return nil, errors.Newf(errors.ErrInvalidInput, 400, "malformed concept id %q", conceptID)
	}
	// guarantees ConceptNotFound instead of an empty page for unknown ids
	if len(s.snap.Postings(index.FieldID, conceptID)) == 0 {
		return nil, errors.ConceptNotFound(conceptID)
	}
	return s.Search(ctx, fmt.Sprintf("%s(%s)", fn.Name(), conceptID), "", offset, limit)
}

// ReferenceSets pages through the reference sets in the release: the
// descendants of the refset root concept.
func (s *QueryService) ReferenceSets(ctx context.Context, offset, limit int) (*ConceptPage, error) {
	return s.Search(ctx, fmt.Sprintf("%s(%s)", query.DescendantOf.Name(), index.RefsetRootConcept), "", offset, limit)
}

// FlushPageCache drops result pages a previous process cached in Redis,
// returning the number of keys removed. No-op when page caching is
// disabled.
func (s *QueryService) FlushPageCache(ctx context.Context) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.flush(ctx)
}

// ConceptCount returns the number of concepts in the loaded release.
func (s *QueryService) ConceptCount() int {
	return s.snap.ConceptCount()
}

// ReleaseStats returns summary details of the loaded release.
func (s *QueryService) ReleaseStats() Stats {
	stats := Stats{ConceptCount: s.snap.ConceptCount()}
	if s.info != nil {
		stats.EffectiveTime = s.info.EffectiveTime
	}
	return stats
}

// compile runs the full pipeline from caller input to an executable query:
// convert, resolve traversal markers, rewrite exclusions, compile.
func (s *QueryService) compile(ctx context.Context, constraint, term string) (*query.Compiled, error) {
	text := "*"
	if constraint != "" {
		converted, err := s.converter.Convert(constraint)
		if err != nil {
			return nil, &errors.InvalidConstraintError{Expression: constraint, Cause: err}
		}
		resolved, err := s.resolver.Resolve(converted)
		if err != nil {
			return nil, err
		}
		text = query.RewriteNotEqual(resolved)
	}
	if textQuery := freeTextQuery(term); textQuery != "" {
		if constraint != "" {
			text = "(" + text + ") AND (" + textQuery + ")"
		} else {
			text = textQuery
		}
	}
	s.logger.DebugContext(ctx, "compiling query", "query", truncateForLog(text))
	return query.Compile(text, s.snap.Schema())
}

// freeTextQuery builds a per-word prefix disjunction over the fully
// specified name: a concept matches when any word of the input starts a
// word of the name.
func freeTextQuery(term string) string {
	words := index.Analyze(term)
	if len(words) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(words))
	for _, word := range words {
		clauses = append(clauses, index.FieldFSN+":"+word+"*")
	}
	return strings.Join(clauses, " OR ")
}

func (s *QueryService) materialise(ord int32) (ConceptResult, error) {
	doc := s.snap.Doc(ord)
	result := conceptFromDoc(doc)
	members, err := s.refsets.Memberships(doc.Values(index.FieldMemberOf))
	if err != nil {
		return ConceptResult{}, err
	}
	result.Memberships = members
	return result, nil
}

func (s *QueryService) clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit != query.UnlimitedResults && s.maxResults > 0 && limit > s.maxResults {
		limit = s.maxResults
	}
	return offset, limit
}

func (s *QueryService) observe(operation string, start time.Time, err error, total int) {
	s.metrics.QueryLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	switch {
	case err == nil && total == 0:
		s.metrics.QueriesTotal.WithLabelValues("zero_result").Inc()
	case err == nil:
		s.metrics.QueriesTotal.WithLabelValues("ok").Inc()
		s.metrics.QueryResultsCount.Observe(float64(total))
	case errors.Is(err, errors.ErrNotFound):
		s.metrics.QueriesTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, errors.ErrInvalidConstraint) || errors.Is(err, errors.ErrInvalidInput):
		s.metrics.QueriesTotal.WithLabelValues("invalid").Inc()
	default:
		s.metrics.QueriesTotal.WithLabelValues("error").Inc()
	}
}

func truncateForLog(q string) string {
	if len(q) > 200 {
		return q[:200] + "..."
	}
	return q
}
