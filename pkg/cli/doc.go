/*
Package cli provides command-line helpers for the recordguard command.

Output Formatting:

Results print as text, JSON or CSV. Types that implement Table render as
aligned columns in text mode and as rows in CSV mode:

	format, err := cli.ParseFormat(outputFlag)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, results); err != nil {
		return err
	}

Progress Reporting:

Batch validation reports progress on stderr:

	progress := cli.NewBatchProgress(os.Stderr)
	progress.Start(len(records))
	progress.Advance(valid, invalid) // once per batch
	progress.Finish()

Exit Codes:

ExitCode maps command errors to process exit codes. A run that completes
but rejects records exits with ExitInvalid (2).

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
