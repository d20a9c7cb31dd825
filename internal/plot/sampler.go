// Package plot строит точки графиков функций независимо от результатов интегрирования.
package plot

import (
	"fmt"

	"go.uber.org/zap"

	"goarea/internal/models"
)

const (
	DefaultPoints = 101
	MinPoints     = 100
)

// Evaluator вычисляет f(x); ok == false означает недопустимое значение в точке
type Evaluator interface {
	Evaluate(expression string, x float64) (value float64, ok bool)
}

type Sampler struct {
	evaluator Evaluator
	points    int
	logger    *zap.Logger
}

func NewSampler(evaluator Evaluator, points int, logger *zap.Logger) *Sampler {
	if points < MinPoints {
		points = DefaultPoints
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{evaluator: evaluator, points: points, logger: logger}
}

func (s *Sampler) Points() int { return s.points }

// Sample строит кривую для каждой функции. Ошибка в одной кривой не мешает остальным.
func (s *Sampler) Sample(specs []models.FunctionSpec, bounds models.IntervalBounds, results map[string]models.FunctionResult) []models.Curve {
	curves := make([]models.Curve, 0, len(specs))
	for _, spec := range specs {
		curves = append(curves, s.curve(spec, bounds, results[spec.ID]))
	}
	return curves
}

func (s *Sampler) curve(spec models.FunctionSpec, bounds models.IntervalBounds, result models.FunctionResult) (c models.Curve) {
	c = models.Curve{
		FunctionID: spec.ID,
		Expression: spec.Expression,
		Color:      spec.Color,
		Shaded:     spec.Selected && result.Area != nil && result.ErrorMessage == nil,
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("curve sampling failed", zap.String("function", spec.ID), zap.Any("panic", r))
			c.Points = nil
			c.Shaded = false
			c.Error = fmt.Sprintf("Could not render the function graph: %v", r)
		}
	}()

	if bounds.Validate() != nil {
		return c
	}

	c.Points = make([]models.PlotPoint, s.points)
	width := bounds.Upper - bounds.Lower
	for i := range c.Points {
		x := bounds.Lower + float64(i)*width/float64(s.points-1)
		c.Points[i].X = x
		if y, ok := s.evaluator.Evaluate(spec.Expression, x); ok {
			c.Points[i].Y = models.Float(y)
		}
	}
	return c
}
