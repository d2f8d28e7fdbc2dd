package main

import (
	"context"
	"fmt"
	"time"

	"water_billing_service/internal/app"
	"water_billing_service/internal/domain/licence"
	idb "water_billing_service/internal/infra/database"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if args[0] == "down" {
				if err := idb.RollbackMigrations(db, steps); err != nil {
					return err
				}
				fmt.Printf("Rolled back %d migration(s)\n", steps)
				return nil
			}
			if err := idb.RunMigrations(db); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (down only)")

	return cmd
}

func reconcileCmd() *cobra.Command {
	var eventID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check the delivery status of notifications still sending",
		Long: `Ask Notify for the status of every notification still sending and
update the stored status and event counts.

Examples:
  billing reconcile
  billing reconcile --event 6f1c2d8e-3b0a-4f9e-9b3c-0d6a2f1e7c55`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := buildServices(cfg, false)
			if err != nil {
				return err
			}
			defer s.db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var summary app.ReconcileSummary
			if eventID != "" {
				summary, err = s.statuses.ReconcileEvent(ctx, eventID)
			} else {
				summary, err = s.statuses.Reconcile(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Events: %d, checked: %d, updated: %d, skipped: %d\n",
				summary.Events, summary.Checked, summary.Updated, summary.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "event", "", "only reconcile this notice event")

	return cmd
}

func importLicenceCmd() *cobra.Command {
	var licenceID, expired, lapsed, revoked string

	cmd := &cobra.Command{
		Use:   "import-licence",
		Short: "Apply imported end dates to a licence and update its supplementary flags",
		Long: `Apply end dates received from the licence import. Dates use the
format YYYY-MM-DD; an omitted date clears the stored one.

Examples:
  billing import-licence --id 1d5c0e0c-... --revoked 2024-03-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			imported, err := parseEndDates(expired, lapsed, revoked)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := buildServices(cfg, false)
			if err != nil {
				return err
			}
			defer s.db.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := s.imports.ImportLicence(ctx, licenceID, imported); err != nil {
				return err
			}

			l, err := s.licenceRepo.GetByID(ctx, licenceID)
			if err != nil {
				return err
			}
			fmt.Printf("Licence %s imported. Pre-SROC supplementary: %t, SROC supplementary: %t\n",
				l.LicenceRef, bool(l.IncludeInPresrocBilling), l.IncludeInSrocBilling)
			return nil
		},
	}

	cmd.Flags().StringVar(&licenceID, "id", "", "licence id")
	cmd.Flags().StringVar(&expired, "expired", "", "expired date")
	cmd.Flags().StringVar(&lapsed, "lapsed", "", "lapsed date")
	cmd.Flags().StringVar(&revoked, "revoked", "", "revoked date")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func parseEndDates(expired, lapsed, revoked string) (licence.ImportedEndDates, error) {
	var dates licence.ImportedEndDates
	for _, d := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{
		{"expired", expired, &dates.ExpiredDate},
		{"lapsed", lapsed, &dates.LapsedDate},
		{"revoked", revoked, &dates.RevokedDate},
	} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", d.raw)
		if err != nil {
			return dates, fmt.Errorf("invalid --%s date %q: %w", d.name, d.raw, err)
		}
		*d.dst = &t
	}
	return dates, nil
}
