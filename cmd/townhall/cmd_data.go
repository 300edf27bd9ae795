package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"townhall/internal/civic"
	"townhall/internal/civicapi"
	"townhall/internal/store"
)

// migrateCmd creates or upgrades the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s at schema version %d\n", st.Path(), st.SchemaVersion())
		return nil
	},
}

var importInfile string

// importRepsCmd loads US representatives from the Civic Information API
var importRepsCmd = &cobra.Command{
	Use:   "import-reps [ocd_id...]",
	Short: "Import US representatives from the Google Civic Information API",
	Long: `Looks up the lower-house representative of each Open Civic Data
division and stores its division, office and official. Contact details are
only recorded for officials that did not exist yet.

Example:
  townhall import-reps ocd-division/country:us/state:ky/cd:5
  townhall import-reps --infile districts.txt`,
	RunE: runImportReps,
}

func init() {
	importRepsCmd.Flags().StringVar(&importInfile, "infile", "", "File with one division id per line (replaces arguments)")
}

func runImportReps(cmd *cobra.Command, args []string) error {
	ids := args
	if importInfile != "" {
		f, err := os.Open(importInfile)
		if err != nil {
			return fmt.Errorf("failed to open infile: %w", err)
		}
		defer f.Close()
		if ids, err = civicapi.ReadDivisionIDs(f); err != nil {
			return err
		}
	}
	ids = civicapi.Dedupe(ids)
	if len(ids) == 0 {
		return errors.New("no division ids given")
	}
	if err := cfg.RequireCivicKey(); err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	client := civicapi.NewClient(cfg.Civic.BaseURL, cfg.Civic.APIKey, cfg.GetCivicTimeout())
	summary, err := civicapi.NewImporter(client, st, cfg.Civic.Concurrency).Import(cmd.Context(), ids)

	out := cmd.OutOrStdout()
	for _, r := range summary.Results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(out, "%s %s: %v\n", styles.Error.Render("FAIL"), r.OCDID, r.Err)
		case r.Created:
			fmt.Fprintf(out, "%s %s: %s\n", styles.Success.Render("NEW "), r.OCDID, r.Official)
		case r.Official != "":
			fmt.Fprintf(out, "%s %s: %s\n", styles.Muted.Render("OK  "), r.OCDID, r.Official)
		}
	}
	fmt.Fprintf(out, "%d divisions, %d new officials, %d failed\n",
		len(ids), summary.Created(), len(summary.Failed()))
	return err
}

var usersStaff bool

// usersCmd manages volunteer accounts
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create EMAIL",
	Short: "Create a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		u := &civic.User{Email: args[0], IsStaff: usersStaff, IsActive: true}
		if err := st.CreateUser(cmd.Context(), u); err != nil {
			if errors.Is(err, store.ErrEmailTaken) {
				return fmt.Errorf("a user with email %s already exists", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %d <%s>\n", u.ID, u.Email)
		return nil
	},
}

func init() {
	usersCreateCmd.Flags().BoolVar(&usersStaff, "staff", false, "Mark the user as staff")
	usersCmd.AddCommand(usersCreateCmd)
}
