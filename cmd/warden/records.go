package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"irondiscipline/warden/pkg/cli"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

var recordsFlags struct {
	output string
	force  bool
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect persisted confinement records",
	Long: `Inspect and repair the confinement records of the configured store.

These commands work on the store directly. Run them against a stopped
server, or use the admin API of a running one.`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List confinement records",
	Long: `List every persisted confinement record.

Examples:
  warden records list
  warden records list --output csv > confined.csv`,
	Args: cobra.NoArgs,
	RunE: listRecords,
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <subject-id>",
	Short: "Show one confinement record",
	Args:  cobra.ExactArgs(1),
	RunE:  showRecord,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <subject-id>...",
	Short: "Delete confinement records",
	Long: `Delete confinement records without releasing the subjects.

The stored possessions are lost: the subject keeps whatever it carries
while confined. Use this only for records that cannot be released, and
pass --force to confirm.`,
	Args: cobra.MinimumNArgs(1),
	RunE: deleteRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsShowCmd, recordsDeleteCmd)

	recordsCmd.PersistentFlags().StringVarP(&recordsFlags.output, "output", "o", "text", "output format: text, json, csv")
	recordsDeleteCmd.Flags().BoolVar(&recordsFlags.force, "force", false, "confirm deleting records without restoring possessions")
}

// detailTable renders record details as rows.
type detailTable []store.Detail

func (t detailTable) Header() []string {
	return []string{"SUBJECT", "NAME", "REASON", "CONFINED AT", "BY", "SNAPSHOT", "RELEASE PENDING"}
}

func (t detailTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, d := range t {
		by := "-"
		if d.ConfinedBy != nil {
			by = d.ConfinedBy.String()
		}
		rows = append(rows, []string{
			d.SubjectID.String(),
			d.DisplayName,
			d.Reason,
			d.ConfinedAt.UTC().Format(time.RFC3339),
			by,
			fmt.Sprint(d.HasSnapshot),
			fmt.Sprint(d.ReleasePending),
		})
	}
	return rows
}

// openStore opens the configured store without retries; the operator sees
// failures immediately.
func openStore(cmd *cobra.Command) (store.Backend, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg.Store.Retry.Enabled = false

	logger := slog.New(slog.DiscardHandler)
	backend, err := store.Open(cmd.Context(), cfg.Store, logger, nil)
	if err != nil {
		return nil, cli.NewCommandError("records", fmt.Errorf("failed to open store: %w", err))
	}
	return backend, nil
}

func listRecords(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(recordsFlags.output)
	if err != nil {
		return err
	}
	backend, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	ctx := cmd.Context()
	ids, err := backend.ListConfinedIDs(ctx)
	if err != nil {
		return cli.NewCommandError("records list", err)
	}

	table := make(detailTable, 0, len(ids))
	for _, id := range ids {
		rec, err := backend.Get(ctx, id)
		if err != nil {
			return cli.NewCommandError("records list", err)
		}
		if rec != nil {
			table = append(table, rec.Detail())
		}
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func showRecord(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(recordsFlags.output)
	if err != nil {
		return err
	}
	id, err := subject.ParseID(args[0])
	if err != nil {
		return err
	}
	backend, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	rec, err := backend.Get(cmd.Context(), id)
	if err != nil {
		return cli.NewCommandError("records show", err)
	}
	if rec == nil {
		return cli.NewCommandError("records show", fmt.Errorf("no record for subject %s", id))
	}

	if format == cli.FormatText {
		return printRecord(cmd, rec)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), detailTable{rec.Detail()})
}

func printRecord(cmd *cobra.Command, rec *store.Record) error {
	d := rec.Detail()
	row := detailTable{d}.Rows()[0]

	var b strings.Builder
	for i, h := range (detailTable{}).Header() {
		fmt.Fprintf(&b, "%-16s %s\n", strings.ToLower(h)+":", row[i])
	}
	if d.OriginalLocation != "" {
		fmt.Fprintf(&b, "%-16s %s\n", "origin:", d.OriginalLocation)
	}
	if rec.ReleaseRequestedAt != nil {
		fmt.Fprintf(&b, "%-16s %s\n", "release started:", rec.ReleaseRequestedAt.UTC().Format(time.RFC3339))
	}
	if rec.RestoredAt != nil {
		fmt.Fprintf(&b, "%-16s %s\n", "restored:", rec.RestoredAt.UTC().Format(time.RFC3339))
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func deleteRecords(cmd *cobra.Command, args []string) error {
	if !recordsFlags.force {
		return fmt.Errorf("refusing to delete records without --force")
	}

	ids := make([]subject.ID, 0, len(args))
	for _, arg := range args {
		id, err := subject.ParseID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	backend, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer backend.Close()

	return deleteAll(cmd.Context(), backend, ids, cli.NewTally(cmd.ErrOrStderr(), "deleted", len(ids)))
}

func deleteAll(ctx context.Context, backend store.Backend, ids []subject.ID, tally *cli.Tally) error {
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			tally.Fail(id.String(), err)
			continue
		}
		if err := backend.Delete(ctx, id); err != nil {
			tally.Fail(id.String(), err)
			continue
		}
		tally.Succeed()
	}
	return cli.NewCommandError("records delete", tally.Close())
}
