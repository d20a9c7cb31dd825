package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goarea/internal/models"
)

func specs() []models.FunctionSpec {
	return []models.FunctionSpec{
		{ID: "f1", Expression: "x**2", Selected: true},
		{ID: "f2", Expression: "1/x", Selected: true},
		{ID: "f3", Expression: "sin(x)", Selected: false},
	}
}

func TestMergeAllSucceeded(t *testing.T) {
	results, view := Merge(specs(), []Outcome{
		{FunctionID: "f2", Kind: OutcomeArea, Area: 1.5},
		{FunctionID: "f1", Kind: OutcomeArea, Area: 2.0},
	})

	require.NotNil(t, view.TotalArea)
	assert.InDelta(t, 3.5, *view.TotalArea, 1e-12)
	assert.Nil(t, view.GlobalErrorMessage)
	assert.False(t, view.IsLoading)

	require.NotNil(t, results["f1"].Area)
	assert.Equal(t, 2.0, *results["f1"].Area)
	assert.Nil(t, results["f1"].ErrorMessage)

	// невыбранная функция остается пустой
	assert.Nil(t, results["f3"].Area)
	assert.Nil(t, results["f3"].ErrorMessage)
}

func TestMergeAnyFailureDropsTotal(t *testing.T) {
	results, view := Merge(specs(), []Outcome{
		{FunctionID: "f1", Kind: OutcomeArea, Area: 2.0},
		{FunctionID: "f2", Kind: OutcomeDomainError, Message: "The integral resulted in an infinite value."},
	})

	assert.Nil(t, view.TotalArea, "partial totals are forbidden")
	require.NotNil(t, view.GlobalErrorMessage)
	assert.Contains(t, *view.GlobalErrorMessage, "1/x")
	assert.Contains(t, *view.GlobalErrorMessage, "infinite value")

	require.NotNil(t, results["f1"].Area)
	require.NotNil(t, results["f2"].ErrorMessage)
	assert.Nil(t, results["f2"].Area)
}

func TestMergeFirstErrorInDeclarationOrderWins(t *testing.T) {
	// порядок прихода итогов не важен
	_, view := Merge(specs(), []Outcome{
		{FunctionID: "f2", Kind: OutcomeTransportError},
		{FunctionID: "f1", Kind: OutcomeProtocolError},
	})

	require.NotNil(t, view.GlobalErrorMessage)
	assert.Equal(t, "Error in f(x) = x**2: "+ProtocolErrorMessage, *view.GlobalErrorMessage)
}

func TestMergeTransportErrorUsesGenericMessage(t *testing.T) {
	results, _ := Merge(specs(), []Outcome{{FunctionID: "f1", Kind: OutcomeTransportError, Message: "dial tcp: refused"}})
	require.NotNil(t, results["f1"].ErrorMessage)
	assert.Equal(t, TransportErrorMessage, *results["f1"].ErrorMessage)
}

func TestMergeNothingRequested(t *testing.T) {
	results, view := Merge(specs(), nil)

	assert.Nil(t, view.TotalArea)
	assert.Nil(t, view.GlobalErrorMessage)
	assert.False(t, view.IsLoading)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Settled())
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	outcomes := []Outcome{
		{FunctionID: "f1", Kind: OutcomeArea, Area: 2.0},
		{FunctionID: "f2", Kind: OutcomeDomainError, Message: "bad"},
	}
	r1, v1 := Merge(specs(), outcomes)
	r2, v2 := Merge(specs(), outcomes)
	assert.Equal(t, r1, r2)
	assert.Equal(t, v1, v2)
}

func TestPending(t *testing.T) {
	results, view := Pending(specs(), []string{"f1", "f2"})
	assert.True(t, view.IsLoading)
	assert.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Settled())
	}

	_, view = Pending(specs(), nil)
	assert.False(t, view.IsLoading)
}
