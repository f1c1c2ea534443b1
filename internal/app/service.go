// Package service wires the pipeline together: sources fill the intake
// queue, the pipeline loop normalizes and detects disruptions, the
// engine decides and acts. The HTTP layer talks only to this package.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kestrelworks/sentinel/internal/adapters/actions"
	"github.com/kestrelworks/sentinel/internal/adapters/audit"
	"github.com/kestrelworks/sentinel/internal/adapters/ingest"
	"github.com/kestrelworks/sentinel/internal/adapters/mq/queue"
	"github.com/kestrelworks/sentinel/internal/adapters/routing"
	"github.com/kestrelworks/sentinel/internal/domain/contextstore"
	"github.com/kestrelworks/sentinel/internal/domain/corridor"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/internal/domain/normalize"
	"github.com/kestrelworks/sentinel/internal/domain/reasoning"
	"github.com/kestrelworks/sentinel/internal/domain/risk"
	"github.com/kestrelworks/sentinel/internal/engine"
	"github.com/kestrelworks/sentinel/internal/engine/safety"
	"github.com/kestrelworks/sentinel/pkg/logger"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueue replaces the intake queue.
func WithQueue(q queue.Queue) Option {
	return func(s *Service) {
		if q != nil {
			s.queue = q
		}
	}
}

// WithNormalizer replaces the event normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithScorer replaces the risk scorer.
func WithScorer(sc *risk.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithContextStore replaces the context store.
func WithContextStore(cs *contextstore.Store) Option {
	return func(s *Service) {
		if cs != nil {
			s.contexts = cs
		}
	}
}

// WithStrategy replaces the reasoning strategy.
func WithStrategy(st reasoning.Strategy) Option {
	return func(s *Service) {
		if st != nil {
			s.strategy = st
		}
	}
}

// WithGate replaces the safety gate.
func WithGate(g *safety.Gate) Option {
	return func(s *Service) {
		if g != nil {
			s.gate = g
		}
	}
}

// WithExecutor replaces the action executor.
func WithExecutor(e actions.Executor) Option {
	return func(s *Service) {
		if e != nil {
			s.executor = e
		}
	}
}

// WithAuditLog replaces the audit trail backend.
func WithAuditLog(l audit.Log) Option {
	return func(s *Service) {
		if l != nil {
			s.trail = l
		}
	}
}

// WithPlanner replaces the routing planner.
func WithPlanner(p routing.Planner) Option {
	return func(s *Service) {
		if p != nil {
			s.planner = p
		}
	}
}

// WithSources sets the event sources started with the service.
func WithSources(sources ...ingest.Source) Option {
	return func(s *Service) {
		s.sources = sources
	}
}

// WithEngineOptions forwards options to the decision engine built on
// Start.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(s *Service) {
		s.engineOpts = opts
	}
}

// Service owns every pipeline component and their lifecycles.
type Service struct {
	mu sync.Mutex

	queue      queue.Queue
	normalizer *normalize.Normalizer
	corridors  *corridor.Index
	scorer     *risk.Scorer
	contexts   *contextstore.Store
	strategy   reasoning.Strategy
	gate       *safety.Gate
	executor   actions.Executor
	trail      audit.Log
	planner    routing.Planner
	gazetteer  *routing.Gazetteer
	registry   *Registry
	engine     *engine.Engine
	sources    []ingest.Source
	engineOpts []engine.Option

	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     logger.Logger
}

// New constructs a Service. Collaborators not overridden by options
// get in-process defaults on Start: in-memory queue and trail, the
// rule-based strategy, the logging-only executor, the static planner.
func New(opts ...Option) *Service {
	s := &Service{
		corridors: corridor.NewIndex(),
		gazetteer: routing.NewGazetteer(),
		registry:  NewRegistry(),
		log:       logger.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds unset defaults and starts the pipeline loop and the
// configured sources. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if s.queue == nil {
		s.queue = queue.NewInMemoryQueue()
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}
	if s.scorer == nil {
		s.scorer = risk.NewScorer()
	}
	if s.contexts == nil {
		s.contexts = contextstore.New()
	}
	if s.strategy == nil {
		s.strategy = reasoning.NewRuleBased()
	}
	if s.gate == nil {
		s.gate = safety.New()
	}
	if s.executor == nil {
		s.executor = actions.NewLogOnly()
	}
	if s.trail == nil {
		s.trail = audit.NewMemoryLog()
	}
	if s.planner == nil {
		s.planner = routing.NewStaticPlanner(0)
	}

	s.engine = engine.New(
		s.contexts,
		s.strategy,
		s.gate,
		s.executor,
		s.trail,
		s.registry,
		s.engineOpts...,
	)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.pipelineLoop(runCtx)

	for _, src := range s.sources {
		s.wg.Add(1)
		go func(src ingest.Source) {
			defer s.wg.Done()
			if err := src.Run(runCtx, s.Ingest); err != nil {
				s.log.Error(runCtx, "event source stopped",
					logger.String("source", src.Name()),
					logger.Error(err))
			}
		}(src)
	}

	s.started = true
	s.log.Info(ctx, "service started",
		logger.Int("sources", len(s.sources)),
		logger.String("executor", s.executor.Name()))
	return nil
}

// Stop tears the pipeline down: sources first, then the queue, then
// the engine, then the trail.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}

	s.cancel()
	_ = s.queue.Close()
	s.wg.Wait()
	s.engine.Stop()
	if err := s.trail.Close(); err != nil {
		s.log.Error(context.Background(), "closing audit trail", logger.Error(err))
	}

	s.started = false
	s.log.Info(context.Background(), "service stopped")
}

// Ingest offers one raw record to the intake queue. Implements
// ingest.Sink; also called by the HTTP intake endpoint.
func (s *Service) Ingest(ctx context.Context, rec model.RawRecord) bool {
	return s.queue.Enqueue(ctx, rec)
}

// pipelineLoop drains the intake queue: normalize, index, detect,
// submit. Rejections are counted and skipped; nothing here crashes the
// loop.
func (s *Service) pipelineLoop(ctx context.Context) {
	defer s.wg.Done()
	for rec := range s.queue.Dequeue(ctx) {
		event, err := s.normalizer.Normalize(ctx, rec)
		if err != nil {
			continue
		}
		s.detect(ctx, event)
	}
}

// detect indexes the event and fans a DisruptionEvent out to every
// route whose corridor contains it.
func (s *Service) detect(ctx context.Context, event model.Event) {
	if !event.HasLocation() {
		s.contexts.Index(ctx, event, "")
		return
	}

	affected := s.corridors.AffectedRoutes(*event.Location)
	if len(affected) == 1 {
		s.contexts.Index(ctx, event, affected[0])
	} else {
		s.contexts.Index(ctx, event, "")
	}

	for _, routeID := range affected {
		shipments := s.registry.ShipmentsForRoute(routeID)
		score := s.scoreRoute(event, shipments)
		metrics.RecordRiskScore(score)

		ids := make([]string, 0, len(shipments))
		for _, sh := range shipments {
			ids = append(ids, sh.ID)
		}

		s.engine.Submit(ctx, model.DisruptionEvent{
			Event:       event,
			RouteID:     routeID,
			ShipmentIDs: ids,
			RiskScore:   score,
		})
	}
}

// scoreRoute takes the worst case over the route's shipments. An empty
// route still scores against the zero shipment so advisory traffic is
// not lost.
func (s *Service) scoreRoute(event model.Event, shipments []model.Shipment) float64 {
	if len(shipments) == 0 {
		return s.scorer.Score(event, model.Shipment{})
	}
	score := 0.0
	for _, sh := range shipments {
		if v := s.scorer.Score(event, sh); v > score {
			score = v
		}
	}
	return score
}

// ActivateRoute plans a polyline between origin and destination and
// registers the corridor. An empty id gets a generated one.
func (s *Service) ActivateRoute(ctx context.Context, id string, origin, destination model.Point, radiusKm float64) (model.Route, error) {
	if id == "" {
		id = uuid.NewString()
	}

	plan, err := s.planner.PlanRoute(ctx, origin, destination)
	if err != nil {
		return model.Route{}, fmt.Errorf("plan route: %w", err)
	}

	route := model.Route{
		ID:             id,
		Waypoints:      plan.Waypoints,
		CorridorRadius: radiusKm,
	}
	if err := s.corridors.Register(route); err != nil {
		return model.Route{}, fmt.Errorf("register corridor: %w", err)
	}

	s.log.Info(ctx, "route activated",
		logger.String("route_id", id),
		logger.Int("waypoints", len(plan.Waypoints)),
		logger.Float64("distance_km", plan.DistanceKm),
		logger.Float64("radius_km", radiusKm))
	return route, nil
}

// DeactivateRoute tears down the corridor registration and the
// decision session. Appended audit records stay.
func (s *Service) DeactivateRoute(routeID string) {
	s.corridors.Unregister(routeID)
	if s.engine != nil {
		s.engine.CloseSession(routeID)
	}
	s.log.Info(context.Background(), "route deactivated", logger.String("route_id", routeID))
}

// Route returns one registered route.
func (s *Service) Route(routeID string) (model.Route, error) {
	return s.corridors.Route(routeID)
}

// Routes returns every registered route.
func (s *Service) Routes() []model.Route {
	return s.corridors.Routes()
}

// ResolveLocation resolves a named place via the gazetteer.
func (s *Service) ResolveLocation(name string) (model.Point, bool) {
	return s.gazetteer.Locate(name)
}

// PutShipment registers or updates a shipment.
func (s *Service) PutShipment(sh model.Shipment) {
	s.registry.Put(sh)
}

// RemoveShipment retires a shipment.
func (s *Service) RemoveShipment(id string) {
	s.registry.Remove(id)
}

// Shipments returns every registered shipment.
func (s *Service) Shipments() []model.Shipment {
	return s.registry.All()
}

// AuditRecords returns the full trail in insertion order.
func (s *Service) AuditRecords(ctx context.Context) ([]model.AuditRecord, error) {
	if s.trail == nil {
		return nil, ErrNotStarted
	}
	return s.trail.Records(ctx)
}

// Stats bundles the operational counters for the stats endpoint.
type Stats struct {
	Engine    engine.Stats    `json:"engine"`
	Normalize normalize.Stats `json:"normalize"`
	QueueLen  int             `json:"queue_len"`
	Routes    int             `json:"routes"`
	Shipments int             `json:"shipments"`
	ContextSz int             `json:"context_store_size"`
	Halted    bool            `json:"halted"`
}

// Stats returns a point-in-time operational snapshot. Zero before
// Start.
func (s *Service) Stats(ctx context.Context) Stats {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return Stats{}
	}

	st := Stats{
		Normalize: s.normalizer.Stats(),
		QueueLen:  s.queue.Len(ctx),
		Routes:    s.corridors.Count(),
		Shipments: len(s.registry.All()),
		ContextSz: s.contexts.Size(),
	}
	if s.engine != nil {
		st.Engine = s.engine.Stats()
		st.Halted = s.engine.Halted()
	}
	return st
}

// Healthy reports whether the pipeline is up and able to act.
func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
