/*
Package cli provides helpers shared by the warden commands.

Output Formatting:

Command results are printed as text tables, JSON or CSV. Values that
implement Table are rendered row by row; anything else is printed with %v
or encoded as JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, records); err != nil {
		return err
	}

Progress Reporting:

Bulk operations over many records report progress on stderr and keep going
past individual failures:

	tally := cli.NewTally(os.Stderr, "deleted", len(ids))
	for _, id := range ids {
		if err := backend.Delete(ctx, id); err != nil {
			tally.Fail(id.String(), err)
			continue
		}
		tally.Succeed()
	}
	return tally.Close()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Errors:

ConfigError and CommandError carry the exit code the process ends with;
see ExitCode.
*/
package cli
