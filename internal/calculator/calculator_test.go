package calculator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramEval(t *testing.T) {
	tests := []struct {
		name string
		expr string
		x    float64
		want float64
	}{
		{name: "квадрат через **", expr: "x**2", x: 3, want: 9},
		{name: "квадрат через ^", expr: "x^2", x: -2, want: 4},
		{name: "приоритет операций", expr: "2+2*2", x: 0, want: 6},
		{name: "скобки", expr: "(2+2)*2", x: 0, want: 8},
		{name: "унарный минус", expr: "-x^2", x: 3, want: -9},
		{name: "минус в показателе", expr: "2^-x", x: 1, want: 0.5},
		{name: "правоассоциативная степень", expr: "2^3^2", x: 0, want: 512},
		{name: "неявное умножение", expr: "2x", x: 4, want: 8},
		{name: "неявное умножение со скобкой", expr: "2(x+1)", x: 1, want: 4},
		{name: "функции", expr: "sin(x)^2 + cos(x)^2", x: 0.7, want: 1},
		{name: "константы", expr: "cos(pi)", x: 0, want: -1},
		{name: "экспонента в числе", expr: "1.5e2 + x", x: 1, want: 151},
		{name: "константа e", expr: "log(e)", x: 0, want: 1},
		{name: "пробелы", expr: "  x  *  x ", x: 5, want: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := prog.Eval(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "пустое выражение", expr: "   "},
		{name: "незакрытая скобка", expr: "sin(x"},
		{name: "лишняя скобка", expr: "x)"},
		{name: "неизвестная функция", expr: "import_os(x)"},
		{name: "недопустимый символ", expr: "x $ 2"},
		{name: "лишние операторы", expr: "x**2 +++ sin(x"},
		{name: "функция без скобок", expr: "sin x"},
		{name: "оператор без аргумента", expr: "x*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestEvalDivisionByZero(t *testing.T) {
	prog, err := Compile("1/x")
	require.NoError(t, err)

	_, err = prog.Eval(0)
	assert.ErrorIs(t, err, ErrDivisionByZero)

	v, err := prog.Eval(4)
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestEvalNonFinite(t *testing.T) {
	prog, err := Compile("sqrt(x)")
	require.NoError(t, err)

	_, err = prog.Eval(-1)
	assert.ErrorIs(t, err, ErrNonFiniteResult)
}

func TestCalc(t *testing.T) {
	v, err := Calc("pi/2")
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, v, 1e-12)

	_, err = Calc("x+1")
	assert.ErrorIs(t, err, ErrUnexpectedVariable)
}

func TestEvaluator(t *testing.T) {
	e := NewEvaluator(nil)

	v, ok := e.Evaluate("x**2", 2)
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = e.Evaluate("1/x", 0)
	assert.False(t, ok, "division by zero must be invalid")

	_, ok = e.Evaluate("sin(", 1)
	assert.False(t, ok)

	assert.NoError(t, e.Check("x+1"))
	assert.Error(t, e.Check("x+"))
}
