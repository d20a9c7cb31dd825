package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goarea/internal/auth"
	"goarea/internal/integrator"
	"goarea/internal/integrator/integratortest"
	"goarea/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestIntegrateCommand(t *testing.T) {
	srv := integratortest.NewServer(func(req integrator.Request) integratortest.Reply {
		if req.Expression == "log(x)" {
			return integratortest.DomainError("Function is not defined on the interval")
		}
		return integratortest.Area(2.667)
	})
	defer srv.Close()

	out, err := execute(t, "integrate", "--url", srv.Endpoint(), "-e", "x**2", "--lower", "0", "--upper", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Interval: [0, 2]")
	assert.Contains(t, out, "area = 2.667")
	assert.Contains(t, out, "Total area: 2.667")

	out, err = execute(t, "integrate", "--url", srv.Endpoint(), "-e", "x**2", "-e", "log(x)", "--upper", "pi", "--json")
	require.NoError(t, err)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.InDelta(t, 3.14159, snap.Bounds.Upper, 1e-4)
	assert.Nil(t, snap.View.TotalArea)
	require.NotNil(t, snap.View.GlobalErrorMessage)
	assert.True(t, strings.HasPrefix(*snap.View.GlobalErrorMessage, "Error in f(x) = log(x)"))

	calls := srv.Calls()
	require.Len(t, calls, 3)
}

func TestIntegrateCommandErrors(t *testing.T) {
	_, err := execute(t, "integrate", "--lower", "0")
	require.Error(t, err, "expr is required")

	_, err = execute(t, "integrate", "-e", "x", "--lower", "1/0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lower limit")
}

func TestTokenCommand(t *testing.T) {
	out, err := execute(t, "token", "--secret", "s3cret", "--subject", "tester")
	require.NoError(t, err)

	a, err := auth.New("s3cret")
	require.NoError(t, err)
	claims, err := a.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "tester", claims.Subject)

	_, err = execute(t, "token")
	require.Error(t, err)
}
