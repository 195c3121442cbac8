package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-debt-summary/batch"
	"github.com/goliatone/go-debt-summary/debt"
	"github.com/goliatone/go-debt-summary/pkg/di"
	"github.com/goliatone/go-debt-summary/store"
)

type opener func() (*di.Container, error)

// withContainer opens a container for the duration of one command.
func withContainer(open opener, fn func(c *di.Container) error) error {
	c, err := open()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

type passView struct {
	Outcome           string    `json:"outcome"`
	StartedAt         time.Time `json:"started_at"`
	Duration          string    `json:"duration"`
	ComputedAt        time.Time `json:"computed_at"`
	Users             int       `json:"users"`
	Debts             int       `json:"debts"`
	UsersWritten      int       `json:"users_written"`
	UserWriteFailures int       `json:"user_write_failures"`
	Attempts          int       `json:"attempts"`
	Error             string    `json:"error,omitempty"`
}

func newPassView(res batch.PassResult) passView {
	v := passView{
		Outcome:           res.Outcome,
		StartedAt:         res.StartedAt,
		Duration:          res.Duration().String(),
		ComputedAt:        res.ComputedAt,
		Users:             res.Users,
		Debts:             res.Debts,
		UsersWritten:      res.UsersWritten,
		UserWriteFailures: res.UserWriteFailures,
		Attempts:          res.Attempts,
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func newBatchCmd(open opener) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Batch aggregation",
	}
	batchCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run a single aggregation pass and populate the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(open, func(c *di.Container) error {
				res, err := c.Aggregator().RunOnce(cmd.Context())
				if werr := writeJSON(cmd.OutOrStdout(), newPassView(res)); werr != nil {
					return werr
				}
				return err
			})
		},
	})
	return batchCmd
}

func newSummaryCmd(open opener) *cobra.Command {
	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Read debt summaries",
	}

	var force bool
	userCmd := &cobra.Command{
		Use:   "user <user-id>",
		Short: "Print a user's debt summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withContainer(open, func(c *di.Container) error {
				sum, err := c.Service().GetUserSummary(cmd.Context(), id, force)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	userCmd.Flags().BoolVar(&force, "force", false, "Recompute from the store and skip the cache")

	systemCmd := &cobra.Command{
		Use:   "system",
		Short: "Print the cached system-wide summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(open, func(c *di.Container) error {
				sum, err := c.Service().GetSystemSummary(cmd.Context(), false)
				if errors.Is(err, debt.ErrUnavailable) {
					return fmt.Errorf("%w: run `batch run` or wait for the next scheduled pass", err)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sum)
			})
		},
	}

	summaryCmd.AddCommand(userCmd, systemCmd)
	return summaryCmd
}

type pageView struct {
	debt.Page
	TotalPages      int  `json:"total_pages"`
	HasPreviousPage bool `json:"has_previous_page"`
	HasNextPage     bool `json:"has_next_page"`
}

func newDebtsCmd(open opener) *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "debts <user-id>",
		Short: "List one page of a user's debts, newest due date first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withContainer(open, func(c *di.Container) error {
				p, err := c.Service().GetUserDebtsPage(cmd.Context(), id, page, size)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), pageView{
					Page:            p,
					TotalPages:      p.TotalPages(),
					HasPreviousPage: p.HasPreviousPage(),
					HasNextPage:     p.HasNextPage(),
				})
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&size, "size", 10, "Page size")
	return cmd
}

func newInvalidateCmd(open opener) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "invalidate [user-id]",
		Short: "Drop cached summaries for a user, or every summary with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				return withContainer(open, func(c *di.Container) error {
					return c.Invalidator().InvalidateAll(cmd.Context())
				})
			}
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withContainer(open, func(c *di.Container) error {
				c.Invalidator().OnDebtChanged(cmd.Context(), id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Drop the system entry and every user entry")
	return cmd
}

func newSchemaCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the users and debts tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(open, func(c *di.Container) error {
				if c.DB() == nil {
					return errors.New("schema: no database configured")
				}
				if err := store.CreateSchema(cmd.Context(), c.DB()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
				return nil
			})
		},
	}
}
