package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sakif/foodtrack/internal/calendar"
	"github.com/sakif/foodtrack/internal/export"
	"github.com/sakif/foodtrack/internal/repository"
	"github.com/sakif/foodtrack/internal/service"
)

func newUsersCmd(c *cli) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Inspect accounts",
	}

	var opts repository.ListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			page, err := c.services.Auth.AllUsers(cmd.Context(), opts.Normalize())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tADMIN\tCREATED")
			for _, u := range page {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
					u.ID, u.Username, u.Email, u.IsAdmin, calendar.FormatISO(u.CreatedAt))
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&opts.Limit, "limit", 20, "page size (max 100)")
	list.Flags().IntVar(&opts.Offset, "offset", 0, "accounts to skip")

	users.AddCommand(list)
	return users
}

func newExportCmd(c *cli) *cobra.Command {
	var username, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's latest cycle as a PDF",
		Long: `Writes the user's latest cycle as a PDF report. The cycle is read as-is:
a finished cycle is exported, not rolled over.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.services.Auth.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			cycle, err := c.services.Cycles.Latest(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			today := c.services.Cycles.Today()
			if out == "" {
				out = export.FileName(cycle.Number, user.Username, today)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			err = export.WritePDF(f, export.Report{
				User:        *user,
				Cycle:       *cycle,
				CurrentDay:  service.StatusOn(cycle, today).CurrentDay,
				GeneratedOn: today,
			})
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(out)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote cycle #%d for %s to %s\n", cycle.Number, user.Username, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username (required)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default: the download file name)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newRemindCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run the reminder sweep once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.services.Sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users: %d, reminded: %d, failed: %d\n",
				res.Users, res.Notified, res.Failed)
			return nil
		},
	}
}

func newRestartCmd(c *cli) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Delete all of a user's cycles and start again at cycle #1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user, err := c.services.Auth.GetUserByUsername(cmd.Context(), username)
			if err != nil {
				return err
			}
			cycle, err := c.services.Cycles.RestartFromCycle1(cmd.Context(), user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s restarted at cycle #%d from %s\n",
				user.Username, cycle.Number, calendar.FormatISO(cycle.StartDate))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}
