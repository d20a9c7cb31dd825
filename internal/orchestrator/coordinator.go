package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goarea/internal/aggregator"
	"goarea/internal/integrator"
	"goarea/internal/metrics"
	"goarea/internal/models"
)

// Integrator удаленный сервис интегрирования
type Integrator interface {
	Integrate(ctx context.Context, req integrator.Request) (integrator.Response, error)
}

// Sink получает события раундов. Методы вызываются под мьютексом координатора,
// поэтому обращаться из них обратно к Coordinator нельзя.
type Sink interface {
	RoundStarted(round Round)
	RoundSettled(round Round, outcomes []aggregator.Outcome)
}

// Round неизменяемый снимок входных данных одного раунда
type Round struct {
	Seq         uint64
	Functions   []models.FunctionSpec
	Bounds      models.IntervalBounds
	Requested   []models.FunctionSpec
	Fingerprint string
	StartedAt   time.Time
}

func (r Round) RequestedIDs() []string {
	ids := make([]string, len(r.Requested))
	for i, f := range r.Requested {
		ids[i] = f.ID
	}
	return ids
}

// Coordinator выполняет раунды: один вызов сервиса на каждую выбранную функцию,
// все вызовы параллельно, результат фиксируется только после завершения всех.
// Раунд не фиксируется, если после его старта был начат более новый.
type Coordinator struct {
	integrator Integrator
	logger     *zap.Logger
	metrics    *metrics.Collector

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func NewCoordinator(integrator Integrator, logger *zap.Logger, m *metrics.Collector) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		integrator: integrator,
		logger:     logger,
		metrics:    m,
	}
}

// Current номер последнего начатого раунда
func (c *Coordinator) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Run выполняет раунд и возвращает true, если его результаты были зафиксированы
func (c *Coordinator) Run(ctx context.Context, functions []models.FunctionSpec, bounds models.IntervalBounds, sink Sink) bool {
	round, roundCtx, cancel := c.begin(ctx, functions, bounds, sink)
	defer cancel()

	var outcomes []aggregator.Outcome
	if len(round.Requested) > 0 {
		outcomes = c.fanOut(roundCtx, round)
	}
	return c.commit(round, outcomes, sink)
}

// Supersede делает все выполняющиеся раунды устаревшими, не начиная нового
func (c *Coordinator) Supersede() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Coordinator) begin(ctx context.Context, functions []models.FunctionSpec, bounds models.IntervalBounds, sink Sink) (Round, context.Context, context.CancelFunc) {
	functions = models.CloneFunctions(functions)
	var requested []models.FunctionSpec
	for _, f := range functions {
		if f.Requested() {
			requested = append(requested, f)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// предыдущий раунд все равно не будет зафиксирован, его запросы можно оборвать
	if c.cancel != nil {
		c.cancel()
	}
	roundCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++

	round := Round{
		Seq:         c.seq,
		Functions:   functions,
		Bounds:      bounds,
		Requested:   requested,
		Fingerprint: models.Fingerprint(functions, bounds),
		StartedAt:   time.Now(),
	}

	c.logger.Debug("round started", zap.Uint64("round", round.Seq), zap.Int("requested", len(requested)))
	c.metrics.RoundStarted()
	sink.RoundStarted(round)

	return round, roundCtx, cancel
}

func (c *Coordinator) fanOut(ctx context.Context, round Round) []aggregator.Outcome {
	outcomes := make([]aggregator.Outcome, len(round.Requested))

	var g errgroup.Group
	for i, f := range round.Requested {
		i, f := i, f
		g.Go(func() error {
			outcomes[i] = c.call(ctx, f, round.Bounds)
			return nil // ошибки одной функции не должны мешать остальным
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Coordinator) call(ctx context.Context, f models.FunctionSpec, bounds models.IntervalBounds) (out aggregator.Outcome) {
	out.FunctionID = f.ID
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("integrator call panicked", zap.String("function", f.ID), zap.Any("panic", r))
			out = aggregator.Outcome{FunctionID: f.ID, Kind: aggregator.OutcomeTransportError, Message: fmt.Sprint(r)}
		}
		c.metrics.IntegratorCall(out.Kind.String(), time.Since(start))
	}()

	resp, err := c.integrator.Integrate(ctx, integrator.Request{
		Expression: f.Expression,
		LowerLimit: bounds.Lower,
		UpperLimit: bounds.Upper,
	})

	switch {
	case errors.Is(err, integrator.ErrProtocolViolation):
		out.Kind = aggregator.OutcomeProtocolError
		out.Message = err.Error()
	case err != nil:
		out.Kind = aggregator.OutcomeTransportError
		out.Message = err.Error()
		if ctx.Err() == nil {
			c.logger.Warn("integrator transport error", zap.String("function", f.ID),
				zap.String("expression", f.Expression), zap.Error(err))
		}
	case resp.Error != nil:
		out.Kind = aggregator.OutcomeDomainError
		out.Message = *resp.Error
	case resp.Area != nil:
		out.Kind = aggregator.OutcomeArea
		out.Area = *resp.Area
	default:
		out.Kind = aggregator.OutcomeProtocolError
		out.Message = integrator.ErrProtocolViolation.Error()
	}
	return out
}

func (c *Coordinator) commit(round Round, outcomes []aggregator.Outcome, sink Sink) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if round.Seq != c.seq {
		c.logger.Debug("stale round discarded", zap.Uint64("round", round.Seq), zap.Uint64("latest", c.seq))
		c.metrics.RoundSuperseded()
		return false
	}

	sink.RoundSettled(round, outcomes)
	c.metrics.RoundCommitted()
	c.logger.Debug("round committed", zap.Uint64("round", round.Seq),
		zap.Int("outcomes", len(outcomes)), zap.Duration("elapsed", time.Since(round.StartedAt)))
	return true
}
