// Package workbench владеет состоянием сессии: функциями, границами, результатами
// раундов и кривыми для отрисовки.
package workbench

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"goarea/internal/aggregator"
	"goarea/internal/database"
	"goarea/internal/debounce"
	"goarea/internal/metrics"
	"goarea/internal/models"
	"goarea/internal/orchestrator"
	"goarea/internal/plot"
)

var ErrFunctionNotFound = errors.New("function not found")

// DefaultQuiet период тишины между последней правкой и запуском раунда
const DefaultQuiet = 450 * time.Millisecond

var palette = []string{"#009999", "#4bc0c0", "#ff6384", "#ff9f40", "#9966ff", "#36a2eb", "#c9cbcf"}

// Recorder сохраняет зафиксированные раунды
type Recorder interface {
	SaveRound(ctx context.Context, round *database.RoundRecord) error
}

type Options struct {
	Quiet    time.Duration
	Recorder Recorder
	Metrics  *metrics.Collector
	Logger   *zap.Logger
}

type trigger struct {
	functions []models.FunctionSpec
	bounds    models.IntervalBounds
}

type Workbench struct {
	coordinator *orchestrator.Coordinator
	sampler     *plot.Sampler
	recorder    Recorder
	metrics     *metrics.Collector
	logger      *zap.Logger
	debouncer   *debounce.Debouncer[trigger]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup // выполняющиеся раунды вместе с записью истории

	mu        sync.Mutex
	closed    bool
	functions []models.FunctionSpec
	bounds    models.IntervalBounds
	results   map[string]models.FunctionResult
	view      models.GlobalViewState
	curves    []models.Curve
	round     uint64
	colors    int
	unsaved   []database.RoundRecord
}

// New создает пустую сессию. Для сессии по умолчанию используйте NewDefault.
func New(coordinator *orchestrator.Coordinator, sampler *plot.Sampler, opts Options) *Workbench {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Quiet <= 0 {
		opts.Quiet = DefaultQuiet
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workbench{
		coordinator: coordinator,
		sampler:     sampler,
		recorder:    opts.Recorder,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		ctx:         ctx,
		cancel:      cancel,
		results:     make(map[string]models.FunctionResult),
	}
	w.debouncer = debounce.New(opts.Quiet, w.capture, w.forward, opts.Logger)
	w.debouncer.OnSuppressed = w.metrics.TriggerSuppressed
	return w
}

// NewDefault создает сессию с функцией x**2 на отрезке [0, 2]
func NewDefault(coordinator *orchestrator.Coordinator, sampler *plot.Sampler, opts Options) *Workbench {
	w := New(coordinator, sampler, opts)
	w.mu.Lock()
	w.bounds = models.IntervalBounds{Lower: 0, Upper: 2}
	w.functions = append(w.functions, w.newFunctionLocked("x**2", true))
	w.resampleLocked()
	w.mu.Unlock()
	return w
}

func (w *Workbench) newFunctionLocked(expression string, selected bool) models.FunctionSpec {
	spec := models.FunctionSpec{
		ID:         uuid.NewString(),
		Expression: expression,
		Color:      palette[w.colors%len(palette)],
		Selected:   selected,
	}
	w.colors++
	w.results[spec.ID] = models.FunctionResult{FunctionID: spec.ID}
	return spec
}

func (w *Workbench) AddFunction(expression string, selected bool) models.FunctionSpec {
	w.mu.Lock()
	spec := w.newFunctionLocked(expression, selected)
	w.functions = append(w.functions, spec)
	w.resampleLocked()
	w.mu.Unlock()

	w.logger.Debug("function added", zap.String("id", spec.ID), zap.String("expression", expression))
	w.debouncer.Signal()
	return spec
}

func (w *Workbench) RemoveFunction(id string) error {
	w.mu.Lock()
	i := w.indexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return ErrFunctionNotFound
	}
	w.functions = append(w.functions[:i:i], w.functions[i+1:]...)
	delete(w.results, id)
	w.resampleLocked()
	w.mu.Unlock()

	w.logger.Debug("function removed", zap.String("id", id))
	w.debouncer.Signal()
	return nil
}

func (w *Workbench) EditExpression(id, expression string) (models.FunctionSpec, error) {
	return w.update(id, func(f *models.FunctionSpec) { f.Expression = expression })
}

func (w *Workbench) SetSelected(id string, selected bool) (models.FunctionSpec, error) {
	return w.update(id, func(f *models.FunctionSpec) { f.Selected = selected })
}

// UpdateFunction меняет выражение и/или выбор одной правкой; nil поле не меняется
func (w *Workbench) UpdateFunction(id string, expression *string, selected *bool) (models.FunctionSpec, error) {
	return w.update(id, func(f *models.FunctionSpec) {
		if expression != nil {
			f.Expression = *expression
		}
		if selected != nil {
			f.Selected = *selected
		}
	})
}

func (w *Workbench) update(id string, change func(*models.FunctionSpec)) (models.FunctionSpec, error) {
	w.mu.Lock()
	i := w.indexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return models.FunctionSpec{}, ErrFunctionNotFound
	}
	change(&w.functions[i])
	spec := w.functions[i]
	w.resampleLocked()
	w.mu.Unlock()

	w.debouncer.Signal()
	return spec, nil
}

// SetBounds меняет общие границы. Некорректные границы не принимаются:
// сообщение об ошибке появляется сразу, запросов к сервису нет.
func (w *Workbench) SetBounds(bounds models.IntervalBounds) error {
	if err := bounds.Validate(); err != nil {
		w.RejectInput()
		return err
	}

	w.mu.Lock()
	w.bounds = bounds
	w.resampleLocked()
	w.mu.Unlock()

	w.debouncer.Signal()
	return nil
}

// RejectInput показывает ошибку валидации. Выполняющийся раунд считается устаревшим,
// иначе его итог затер бы сообщение; загрузка для него заканчивается.
func (w *Workbench) RejectInput() {
	w.coordinator.Supersede()
	// состояние не изменилось, но результатов для него больше нет
	w.debouncer.Forget()

	w.mu.Lock()
	w.view.GlobalErrorMessage = models.String(models.MissingFieldsMessage)
	w.view.IsLoading = false
	w.mu.Unlock()
}

// Recalculate выполняет раунд немедленно, в обход дебаунсера.
// Возвращает true, если результаты раунда были зафиксированы.
func (w *Workbench) Recalculate(ctx context.Context) bool {
	t, fingerprint := w.capture()
	w.debouncer.Remember(fingerprint)
	return w.run(ctx, t)
}

// Snapshot возвращает независимую копию состояния для отрисовки
func (w *Workbench) Snapshot() models.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	results := make(map[string]models.FunctionResult, len(w.results))
	for id, r := range w.results {
		results[id] = r
	}
	curves := make([]models.Curve, len(w.curves))
	for i, c := range w.curves {
		c.Points = append([]models.PlotPoint(nil), c.Points...)
		curves[i] = c
	}

	return models.Snapshot{
		Functions: models.CloneFunctions(w.functions),
		Bounds:    w.bounds,
		Results:   results,
		View:      w.view,
		Curves:    curves,
		Round:     w.round,
	}
}

// Close останавливает дебаунсер, отменяет выполняющийся раунд и ждет его завершения.
// После Close раунды не запускаются.
func (w *Workbench) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.debouncer.Stop()
	w.coordinator.Supersede()
	w.cancel()
	w.wg.Wait()
}

// RoundStarted сбрасывает результаты перед новым раундом
func (w *Workbench) RoundStarted(round orchestrator.Round) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.results, w.view = aggregator.Pending(w.functions, round.RequestedIDs())
	w.round = round.Seq
	w.resampleLocked()
}

// RoundSettled применяет итоги раунда. Функции, добавленные после старта раунда,
// остаются без результата до следующего раунда.
func (w *Workbench) RoundSettled(round orchestrator.Round, outcomes []aggregator.Outcome) {
	merged, view := aggregator.Merge(round.Functions, outcomes)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.results = make(map[string]models.FunctionResult, len(w.functions))
	for _, f := range w.functions {
		res, ok := merged[f.ID]
		if !ok {
			res = models.FunctionResult{FunctionID: f.ID}
		}
		w.results[f.ID] = res
	}
	w.view = view
	w.resampleLocked()

	if len(outcomes) > 0 {
		w.unsaved = append(w.unsaved, record(round, merged, view))
	}
}

func (w *Workbench) capture() (trigger, string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	t := trigger{functions: models.CloneFunctions(w.functions), bounds: w.bounds}
	return t, models.Fingerprint(t.functions, t.bounds)
}

func (w *Workbench) forward(t trigger) {
	if w.ctx.Err() != nil {
		return
	}
	w.run(w.ctx, t)
}

func (w *Workbench) run(ctx context.Context, t trigger) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return false
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	committed := w.coordinator.Run(ctx, t.functions, t.bounds, w)
	if committed {
		w.saveHistory()
	}
	return committed
}

func (w *Workbench) saveHistory() {
	w.mu.Lock()
	pending := w.unsaved
	w.unsaved = nil
	w.mu.Unlock()

	if w.recorder == nil {
		return
	}
	for i := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.recorder.SaveRound(ctx, &pending[i]); err != nil {
			w.logger.Warn("failed to save round history", zap.Uint64("round", pending[i].Seq), zap.Error(err))
		}
		cancel()
	}
}

func (w *Workbench) resampleLocked() {
	w.curves = w.sampler.Sample(w.functions, w.bounds, w.results)
}

func (w *Workbench) indexLocked(id string) int {
	for i, f := range w.functions {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func record(round orchestrator.Round, results map[string]models.FunctionResult, view models.GlobalViewState) database.RoundRecord {
	rec := database.RoundRecord{
		ID:          uuid.NewString(),
		Seq:         round.Seq,
		Fingerprint: round.Fingerprint,
		Lower:       round.Bounds.Lower,
		Upper:       round.Bounds.Upper,
		TotalArea:   view.TotalArea,
		GlobalError: view.GlobalErrorMessage,
		CreatedAt:   round.StartedAt.Format(database.TimeFormat),
	}
	for _, f := range round.Requested {
		res := results[f.ID]
		rec.Results = append(rec.Results, database.ResultRecord{
			FunctionID: f.ID,
			Expression: strings.TrimSpace(f.Expression),
			Area:       res.Area,
			Error:      res.ErrorMessage,
		})
	}
	return rec
}
