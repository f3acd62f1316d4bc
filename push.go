package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brideal/dealsync/internal/sheet"
	"github.com/brideal/dealsync/internal/sync"
)

func newPushCmd() *cobra.Command {
	var sheetName string

	cmd := &cobra.Command{
		Use:   "push <csv-file>",
		Short: "Append rows from a CSV file to the shared spreadsheet",
		Long: `Read a CSV file (first row is the header) and append its rows to the
configured workbook. The batch is saved locally before any network traffic;
if every update strategy fails, the saved copy is reported so the rows can
be pushed again later.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd.Context(), args[0], sheetName)
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "target worksheet (defaults to config, then the workbook's first sheet)")

	return cmd
}

func runPush(ctx context.Context, csvPath, sheetName string) error {
	logger := buildLogger()

	batch, err := readCSVBatch(csvPath)
	if err != nil {
		return err
	}

	batch.TargetSheet = resolvedCfg.Sync.TargetSheet
	if sheetName != "" {
		batch.TargetSheet = sheetName
	}

	coord, cleanup, err := newCoordinator(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	outcome, err := coord.UpdateRemote(ctx, batch)
	if err != nil {
		var failed *sync.AllFailedError
		if errors.As(err, &failed) {
			fmt.Fprintf(os.Stderr, "The rows are saved locally at %s and can be pushed again.\n", failed.BackupPath)
		}

		return err
	}

	if flagJSON {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"rows":    len(batch.Rows),
			"outcome": outcome,
		})
	}

	fmt.Printf("Appended %d row(s) (%s)\n", len(batch.Rows), outcome)

	return nil
}

// readCSVBatch parses a CSV file into a batch. The first row is the header;
// every data row must have the same number of fields.
func readCSVBatch(path string) (*sheet.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: file is empty, expected a header row", path)
	}

	columns := rows[0]
	records := make([]map[string]sheet.Cell, 0, len(rows)-1)

	for _, row := range rows[1:] {
		record := make(map[string]sheet.Cell, len(columns))
		for i, col := range columns {
			record[col] = row[i]
		}

		records = append(records, record)
	}

	batch, err := sheet.NewBatch(columns, records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return batch, nil
}
