package calculator

import (
	"sync"

	"go.uber.org/zap"
)

const maxCachedPrograms = 256

// Evaluator вычисляет f(x) для строки выражения. Любая ошибка, включая панику,
// превращается в признак "invalid" (ok == false) и наружу не выходит.
type Evaluator struct {
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*Program
}

func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger, cache: make(map[string]*Program)}
}

func (e *Evaluator) Evaluate(expression string, x float64) (value float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("evaluator panic", zap.String("expression", expression), zap.Float64("x", x), zap.Any("panic", r))
			value, ok = 0, false
		}
	}()

	prog, err := e.program(expression)
	if err != nil {
		return 0, false
	}
	v, err := prog.Eval(x)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Check сообщает, разбирается ли выражение вообще
func (e *Evaluator) Check(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *Evaluator) program(expression string) (*Program, error) {
	e.mu.Lock()
	prog, found := e.cache[expression]
	e.mu.Unlock()
	if found {
		return prog, nil
	}

	prog, err := Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if len(e.cache) >= maxCachedPrograms {
		e.cache = make(map[string]*Program)
	}
	e.cache[expression] = prog
	e.mu.Unlock()
	return prog, nil
}
