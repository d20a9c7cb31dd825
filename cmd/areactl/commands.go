package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goarea/internal/auth"
	"goarea/internal/calculator"
	"goarea/internal/grpc"
	"goarea/internal/integrator"
	"goarea/internal/models"
	"goarea/internal/orchestrator"
	"goarea/internal/plot"
	"goarea/internal/workbench"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "areactl",
		Short:         "Area workbench command line tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newIntegrateCmd(), newHealthCmd(), newTokenCmd())
	return root
}

type integrateFlags struct {
	expressions []string
	lower       string
	upper       string
	url         string
	timeout     time.Duration
	asJSON      bool
	verbose     bool
}

func newIntegrateCmd() *cobra.Command {
	var f integrateFlags

	cmd := &cobra.Command{
		Use:   "integrate",
		Short: "Run one calculation round against the remote integrator",
		Example: `  areactl integrate --expr "x**2" --expr "sin(x)" --lower 0 --upper pi`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntegrate(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringArrayVarP(&f.expressions, "expr", "e", nil, "function expression, repeatable")
	cmd.Flags().StringVar(&f.lower, "lower", "0", "lower limit, constant expression")
	cmd.Flags().StringVar(&f.upper, "upper", "1", "upper limit, constant expression")
	cmd.Flags().StringVar(&f.url, "url", "http://localhost:8000/integrate", "integrator endpoint")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 30*time.Second, "per call timeout, 0 disables")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the snapshot as JSON")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.MarkFlagRequired("expr")
	return cmd
}

func runIntegrate(ctx context.Context, out io.Writer, f integrateFlags) error {
	lower, err := calculator.Calc(f.lower)
	if err != nil {
		return fmt.Errorf("lower limit: %w", err)
	}
	upper, err := calculator.Calc(f.upper)
	if err != nil {
		return fmt.Errorf("upper limit: %w", err)
	}

	logger := zap.NewNop()
	if f.verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	cfg := integrator.DefaultConfig(f.url)
	cfg.Timeout = f.timeout
	client := integrator.NewClient(cfg, nil, logger)

	bench := workbench.New(
		orchestrator.NewCoordinator(client, logger, nil),
		plot.NewSampler(calculator.NewEvaluator(logger), plot.DefaultPoints, logger),
		workbench.Options{Logger: logger},
	)
	defer bench.Close()

	if err := bench.SetBounds(models.IntervalBounds{Lower: lower, Upper: upper}); err != nil {
		return err
	}
	for _, expr := range f.expressions {
		bench.AddFunction(expr, true)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	bench.Recalculate(ctx)
	snap := bench.Snapshot()

	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	printSnapshot(out, snap)
	return nil
}

func printSnapshot(out io.Writer, snap models.Snapshot) {
	fmt.Fprintf(out, "Interval: [%g, %g]\n", snap.Bounds.Lower, snap.Bounds.Upper)
	for _, fn := range snap.Functions {
		res := snap.Results[fn.ID]
		switch {
		case res.Area != nil:
			fmt.Fprintf(out, "  f(x) = %-20s area = %.6g\n", fn.Expression, *res.Area)
		case res.ErrorMessage != nil:
			fmt.Fprintf(out, "  f(x) = %-20s error: %s\n", fn.Expression, *res.ErrorMessage)
		default:
			fmt.Fprintf(out, "  f(x) = %-20s skipped\n", fn.Expression)
		}
	}
	if snap.View.TotalArea != nil {
		fmt.Fprintf(out, "Total area: %.6g\n", *snap.View.TotalArea)
	}
	if snap.View.GlobalErrorMessage != nil {
		fmt.Fprintf(out, "%s\n", *snap.View.GlobalErrorMessage)
	}
}

func newHealthCmd() *cobra.Command {
	var (
		addr    string
		service string
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the workbench gRPC health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			client, err := grpc.NewHealthClient(ctx, addr)
			if err != nil {
				return err
			}
			defer client.Close()

			status, err := client.Check(ctx, service)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8081", "gRPC address")
	cmd.Flags().StringVar(&service, "service", grpc.IntegratorService, "service name, empty for the whole server")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the workbench API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret is required")
			}
			a, err := auth.New(secret)
			if err != nil {
				return err
			}
			token, err := a.GenerateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "JWT secret shared with the workbench (JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "areactl", "token subject")
	return cmd
}
