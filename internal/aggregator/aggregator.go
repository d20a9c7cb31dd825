// Package aggregator сводит результаты одного раунда в состояние для отрисовки.
// Функции пакета чистые: не знают ни о таймерах, ни о сети.
package aggregator

import (
	"fmt"

	"goarea/internal/models"
)

type OutcomeKind int

const (
	OutcomeArea OutcomeKind = iota
	OutcomeDomainError
	OutcomeTransportError
	OutcomeProtocolError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeArea:
		return "area"
	case OutcomeDomainError:
		return "domain_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeProtocolError:
		return "protocol_error"
	default:
		return "unknown"
	}
}

const (
	TransportErrorMessage = "Could not connect to the integration service."
	ProtocolErrorMessage  = "The integration service returned an unexpected response."
)

// Outcome итог одного вызова сервиса интегрирования
type Outcome struct {
	FunctionID string
	Kind       OutcomeKind
	Area       float64
	Message    string // текст доменной ошибки
}

func (o Outcome) errorMessage() string {
	switch o.Kind {
	case OutcomeDomainError:
		return o.Message
	case OutcomeTransportError:
		return TransportErrorMessage
	default:
		return ProtocolErrorMessage
	}
}

// Pending состояние в начале раунда: у запрошенных функций результатов нет,
// идет загрузка, если запрошена хотя бы одна функция.
func Pending(specs []models.FunctionSpec, requested []string) (map[string]models.FunctionResult, models.GlobalViewState) {
	results := make(map[string]models.FunctionResult, len(specs))
	for _, s := range specs {
		results[s.ID] = models.FunctionResult{FunctionID: s.ID}
	}
	return results, models.GlobalViewState{IsLoading: len(requested) > 0}
}

// Merge раскладывает итоги по функциям и считает общее состояние.
// Запрошенными считаются функции, для которых есть итог.
func Merge(specs []models.FunctionSpec, outcomes []Outcome) (map[string]models.FunctionResult, models.GlobalViewState) {
	byID := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.FunctionID] = o
	}

	results := make(map[string]models.FunctionResult, len(specs))
	var view models.GlobalViewState
	total := 0.0
	failed := false

	for _, s := range specs {
		res := models.FunctionResult{FunctionID: s.ID}
		o, requested := byID[s.ID]
		if !requested {
			results[s.ID] = res
			continue
		}

		if o.Kind == OutcomeArea {
			res.Area = models.Float(o.Area)
			total += o.Area
		} else {
			msg := o.errorMessage()
			res.ErrorMessage = models.String(msg)
			failed = true
			if view.GlobalErrorMessage == nil {
				view.GlobalErrorMessage = models.String(fmt.Sprintf("Error in f(x) = %s: %s", s.Expression, msg))
			}
		}
		results[s.ID] = res
	}

	// частичная сумма вводит в заблуждение
	if len(outcomes) > 0 && !failed {
		view.TotalArea = models.Float(total)
	}
	return results, view
}
