package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/petadopt/adoption-analytics/internal/analytics"
	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
)

type openFunc func(ctx context.Context, configPath string) (*analytics.Reporter, *analytics.Reconciler, func(), error)

type cli struct {
	open       openFunc
	out        io.Writer
	configPath string

	reporter   *analytics.Reporter
	reconciler *analytics.Reconciler
	closeFn    func()
}

func newRootCmd(open openFunc, out io.Writer) *cobra.Command {
	c := &cli{open: open, out: out}

	root := &cobra.Command{
		Use:   "reportctl",
		Short: "Run adoption analytics reports from the command line",
		Long: `reportctl runs one report against the pet, requests and history stores
and prints the JSON body its /analytics endpoint would return.

Examples:
  # Count users with an approved request for an adopted pet
  reportctl users-with-adoptions

  # Show the first 10 pet histories
  reportctl pet-histories --limit 10`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			c.reporter, c.reconciler, c.closeFn, err = c.open(cmd.Context(), c.configPath)
			return err
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "configs/development.yaml", "path to config file")

	for _, rc := range c.reports() {
		root.AddCommand(c.reportCmd(rc))
	}
	root.AddCommand(c.petHistoriesCmd())
	return root
}

// report is one subcommand: the HTTP path it mirrors and how to build the
// body.
type report struct {
	name  string
	short string
	body  func(ctx context.Context) (any, error)
}

func (c *cli) reports() []report {
	return []report{
		{"pets-by-species", "Count pets per species", func(ctx context.Context) (any, error) {
			return c.reporter.PetsBySpecies(ctx)
		}},
		{"adopted-by-center", "Count adopted pets per adoption center", func(ctx context.Context) (any, error) {
			return c.reporter.AdoptedByCenter(ctx)
		}},
		{"requests-status", "Count pets per adoption status", func(ctx context.Context) (any, error) {
			return c.reporter.RequestsStatus(ctx)
		}},
		{"vaccination-status", "Share of pets with at least one vaccine", func(ctx context.Context) (any, error) {
			return c.reporter.VaccinationStatus(ctx)
		}},
		{"mongodb-health", "Check the pet history collection", func(ctx context.Context) (any, error) {
			return c.reporter.DocumentStoreHealth(ctx), nil
		}},
		{"users-with-adoptions", "Count users holding an approved request for an adopted pet", func(ctx context.Context) (any, error) {
			res, err := c.reconciler.UsersWithAdoptions(ctx)
			if err != nil {
				return nil, err
			}
			return res.Body(), nil
		}},
		{"full-adoption-report", "Join adoptions, approved requests and pet histories", func(ctx context.Context) (any, error) {
			res, err := c.reconciler.FullAdoptionReport(ctx)
			if err != nil {
				return nil, err
			}
			return res.Body(), nil
		}},
	}
}

func (c *cli) reportCmd(rc report) *cobra.Command {
	return &cobra.Command{
		Use:   rc.name,
		Short: rc.short,
		Args:  cobra.NoArgs,
		RunE: c.run(func(ctx context.Context) error {
			body, err := rc.body(ctx)
			if err != nil {
				return c.fail(err)
			}
			return c.print(body)
		}),
	}
}

func (c *cli) petHistoriesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pet-histories",
		Short: "List pet history documents",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = c.run(func(ctx context.Context) error {
		if cmd.Flags().Changed("limit") && limit < 1 {
			return fmt.Errorf("--limit must be positive, got %d", limit)
		}
		res, err := c.reporter.PetHistories(ctx, limit)
		if err != nil {
			return c.fail(err)
		}
		return c.print(analytics.PetHistoriesBody(res))
	})
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of histories (default query.defaultHistoryLimit)")
	return cmd
}

// run adapts fn to a cobra RunE and releases the stores once it returns.
func (c *cli) run(fn func(ctx context.Context) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if c.closeFn != nil {
				c.closeFn()
			}
		}()
		return fn(cmd.Context())
	}
}

func (c *cli) print(body any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(body)
}

// fail prints the error body the HTTP API would send and returns err so the
// process exits non-zero.
func (c *cli) fail(err error) error {
	body := map[string]any{"error": err.Error()}
	if store := apperrors.FailedStore(err); store != "" {
		body["store"] = store
	}
	if printErr := c.print(body); printErr != nil {
		return printErr
	}
	return err
}
