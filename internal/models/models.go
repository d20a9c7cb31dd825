package models

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
)

// ErrInvalidBounds возвращается, если границы интервала не являются конечными числами
var ErrInvalidBounds = errors.New("bounds must be finite numbers")

// MissingFieldsMessage сообщение для пользователя при ошибке валидации ввода
const MissingFieldsMessage = "Please ensure all fields are filled."

// FunctionSpec описывает функцию, заданную пользователем
type FunctionSpec struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
	Color      string `json:"color"`
	Selected   bool   `json:"selected"` // участвует в расчете площади
}

// Requested сообщает, нужно ли запрашивать площадь для функции
func (f FunctionSpec) Requested() bool {
	return f.Selected && strings.TrimSpace(f.Expression) != ""
}

// IntervalBounds общие для всех функций границы интегрирования
type IntervalBounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

func (b IntervalBounds) Validate() error {
	for _, v := range []float64{b.Lower, b.Upper} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidBounds
		}
	}
	return nil
}

// FunctionResult результат расчета для одной функции.
// После завершения раунда заполнено ровно одно из полей Area и ErrorMessage,
// пока запрос выполняется, оба пустые.
type FunctionResult struct {
	FunctionID   string   `json:"function_id"`
	Area         *float64 `json:"area"`
	ErrorMessage *string  `json:"error_message"`
}

// Settled сообщает, завершен ли расчет для функции
func (r FunctionResult) Settled() bool {
	return r.Area != nil || r.ErrorMessage != nil
}

type GlobalViewState struct {
	TotalArea          *float64 `json:"total_area"`
	GlobalErrorMessage *string  `json:"global_error_message"`
	IsLoading          bool     `json:"is_loading"`
}

// PlotPoint точка графика; Y == nil означает разрыв
type PlotPoint struct {
	X float64  `json:"x"`
	Y *float64 `json:"y"`
}

type Curve struct {
	FunctionID string      `json:"function_id"`
	Expression string      `json:"expression"`
	Color      string      `json:"color"`
	Points     []PlotPoint `json:"points"`
	Shaded     bool        `json:"shaded"`
	Error      string      `json:"error,omitempty"`
}

// Snapshot полное состояние для отрисовки
type Snapshot struct {
	Functions []FunctionSpec            `json:"functions"`
	Bounds    IntervalBounds            `json:"bounds"`
	Results   map[string]FunctionResult `json:"results"`
	View      GlobalViewState           `json:"view"`
	Curves    []Curve                   `json:"curves"`
	Round     uint64                    `json:"round"`
}

type fingerprintEntry struct {
	ID         string `json:"id"`
	Expression string `json:"e"`
	Selected   bool   `json:"s"`
}

// Fingerprint сериализует все входные данные, влияющие на расчет и график.
// Одинаковые входные данные всегда дают одинаковую строку. Идентификаторы входят
// в отпечаток: результаты хранятся по ним, а повторно они не выдаются.
func Fingerprint(specs []FunctionSpec, bounds IntervalBounds) string {
	entries := make([]fingerprintEntry, len(specs))
	for i, s := range specs {
		entries[i] = fingerprintEntry{ID: s.ID, Expression: s.Expression, Selected: s.Selected}
	}
	data, _ := json.Marshal(struct {
		Functions []fingerprintEntry `json:"f"`
		Lower     float64            `json:"l"`
		Upper     float64            `json:"u"`
	}{entries, bounds.Lower, bounds.Upper})
	return string(data)
}

// CloneFunctions возвращает независимую копию списка функций
func CloneFunctions(specs []FunctionSpec) []FunctionSpec {
	out := make([]FunctionSpec, len(specs))
	copy(out, specs)
	return out
}

func Float(v float64) *float64 { return &v }

func String(v string) *string { return &v }
