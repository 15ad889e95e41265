package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/diary/migrations"
	"github.com/dmitrymomot/diary/pkg/config"
	"github.com/dmitrymomot/diary/pkg/pg"
	"github.com/dmitrymomot/diary/pkg/sanitizer"
	"github.com/dmitrymomot/diary/pkg/subscription"
	"github.com/dmitrymomot/diary/pkg/validator"
)

// withApp wires the application for a one-shot command and closes it after.
func withApp(fn func(ctx context.Context, a *app, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, a, cmd.OutOrStdout())
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var cfg appConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}
			var pgCfg pg.Config
			if err := config.Load(&pgCfg); err != nil {
				return err
			}

			pool, err := pg.Connect(ctx, pgCfg)
			if err != nil {
				return err
			}
			defer pool.Close()
			return pg.Migrate(ctx, pool, migrations.FS, pgCfg, newLogger(cfg))
		},
	}
}

func newSeedPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-plans",
		Short: "Validate the plan catalog and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg appConfig
			if err := config.Load(&cfg); err != nil {
				return err
			}
			catalog, err := loadCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return printPlans(cmd.OutOrStdout(), catalog.All())
		},
	}
}

func printPlans(out io.Writer, plans []subscription.Plan) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPRICE\tDURATION\tENTRIES\tREMINDERS\tACTIVE")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\t%s\t%t\n",
			p.ID, p.Name, p.Type, p.Price.StringFixed(2), p.Currency, p.DurationLabel(),
			limitLabel(p.MaxEntries), limitLabel(p.MaxReminders), p.Active)
	}
	return tw.Flush()
}

func limitLabel(n int64) string {
	if n == subscription.Unlimited {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func userFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "user", "", "user ID (UUID)")
}

func parseUser(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(sanitizer.Trim(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: %w", raw, err)
	}
	return id, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSubscription(out io.Writer, sub *subscription.Subscription) error {
	return printJSON(out, map[string]any{
		"user_id":    sub.UserID,
		"plan_id":    sub.PlanID,
		"status":     sub.Status,
		"start_date": sub.StartDate,
		"end_date":   sub.EndDate,
		"auto_renew": sub.AutoRenew,
	})
}

func newProvisionUserCmd() *cobra.Command {
	var user, email string
	cmd := &cobra.Command{
		Use:   "provision-user",
		Short: "Create the free subscription and usage counter for a user",
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			id, err := parseUser(user)
			if err != nil {
				return err
			}
			email = sanitizer.TrimToLower(email)
			if err := validator.Apply(validator.Email("email", email)); err != nil {
				return err
			}

			sub, err := a.subs.ProvisionUser(ctx, id)
			if err != nil {
				return err
			}
			if email != "" {
				if err := a.contacts.SetEmail(ctx, id, email); err != nil {
					return err
				}
			}
			return printSubscription(out, sub)
		}),
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&email, "email", "", "address for payment reminders")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newAssignPlanCmd() *cobra.Command {
	var user, plan string
	cmd := &cobra.Command{
		Use:   "assign-plan",
		Short: "Move a user onto a plan, starting now",
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			id, err := parseUser(user)
			if err != nil {
				return err
			}
			sub, err := a.subs.AssignPlan(ctx, id, plan)
			if err != nil {
				return err
			}
			return printSubscription(out, sub)
		}),
	}
	userFlag(cmd, &user)
	cmd.Flags().StringVar(&plan, "plan", "", "plan ID from the catalog")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func newCheckSubscriptionsCmd() *cobra.Command {
	var grace int
	cmd := &cobra.Command{
		Use:   "check-subscriptions",
		Short: "Expire lapsed subscriptions and downgrade those past the grace period",
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			j, err := a.jobs()
			if err != nil {
				return err
			}
			res, err := j.Sweep(ctx, grace)
			if perr := printJSON(out, res); perr != nil {
				return perr
			}
			return err
		}),
	}
	cmd.Flags().IntVar(&grace, "grace-period", 3, "days an expired subscription keeps its plan before downgrade")
	return cmd
}

func newSendRemindersCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "send-reminders",
		Short: "Deliver due payment reminders",
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			j, err := a.jobs()
			if err != nil {
				return err
			}
			res, err := j.Dispatch(ctx, dryRun)
			if err != nil {
				return err
			}
			if dryRun {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "USER\tTYPE\tSCHEDULED\tSUBJECT")
				for _, n := range res.Notices {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.Reminder.UserID, n.Reminder.Type,
						n.Reminder.ScheduledAt.Format("2006-01-02 15:04"), n.Subject())
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return printJSON(out, res)
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list due reminders without sending them")
	return cmd
}

func newResetUsageCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "reset-usage",
		Short: "Reset usage counters for one user, or stale counters for everyone",
		RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
			if user != "" {
				id, err := parseUser(user)
				if err != nil {
					return err
				}
				if err := a.subs.ResetUsage(ctx, id); err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "usage reset for %s\n", id)
				return err
			}

			j, err := a.jobs()
			if err != nil {
				return err
			}
			n, err := j.ResetUsage(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "reset %d usage counters\n", n)
			return err
		}),
	}
	userFlag(cmd, &user)
	return cmd
}
