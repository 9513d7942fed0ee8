// refdata manages the reference dataset behind the prediction service.
//
// Usage:
//
//	refdata import --csv data/reference.csv --db data/reference.db
//	refdata defaults --csv data/reference.csv
//	refdata evaluate --csv data/holdout.csv --model models/logistic_regression.json
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"diabetesrisk/ml"
	"diabetesrisk/pipeline"
)

func main() {
	app := &cli.App{
		Name:  "refdata",
		Usage: "Import, inspect and evaluate diabetes risk reference data",
		Commands: []*cli.Command{
			importCommand(),
			defaultsCommand(),
			evaluateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Copy a reference CSV into the SQLite store",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Usage: "Path to the reference CSV", Required: true},
			&cli.StringFlag{Name: "db", Usage: "Path to the SQLite database", Required: true},
			&cli.BoolFlag{Name: "replace", Usage: "Delete existing rows before importing"},
			&cli.BoolFlag{Name: "wal", Usage: "Open the database in WAL mode"},
		},
		Action: func(c *cli.Context) error {
			dataset, err := pipeline.ReadCSVFile(c.String("csv"))
			if err != nil {
				return err
			}

			cleaner := pipeline.NewDataCleaner()
			cleaned, issues := cleaner.Clean(dataset)
			for _, issue := range issues {
				fmt.Fprintf(c.App.ErrWriter, "row %d: %s: %s\n", issue.Row, issue.Type, issue.Message)
			}

			store, err := pipeline.OpenReferenceStore(pipeline.StorageConfig{
				DBPath:    c.String("db"),
				EnableWAL: c.Bool("wal"),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := c.Context
			if c.Bool("replace") {
				if err := store.Clear(ctx); err != nil {
					return err
				}
			}
			n, err := store.SaveRows(ctx, cleaned)
			if err != nil {
				return err
			}
			total, err := store.Count(ctx)
			if err != nil {
				return err
			}

			stats := cleaner.GetStats()
			fmt.Fprintf(c.App.Writer, "imported %d rows (%d rejected), %d rows in store\n", n, stats.Rejected, total)
			return nil
		},
	}
}

func defaultsCommand() *cli.Command {
	return &cli.Command{
		Name:  "defaults",
		Usage: "Print the default table computed from the reference data",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Usage: "Path to the reference CSV"},
			&cli.StringFlag{Name: "db", Usage: "Path to the SQLite database"},
		},
		Action: func(c *cli.Context) error {
			source, err := sourceFromFlags(c)
			if err != nil {
				return err
			}
			dataset, err := source.Load(c.Context)
			if err != nil {
				return err
			}
			cleaned, _ := pipeline.NewDataCleaner().Clean(dataset)
			table, err := ml.BuildDefaultTable(cleaned)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, table.Values())
		},
	}
}

func evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Score a labeled CSV and report accuracy, precision and recall",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "csv", Usage: "Path to the labeled CSV", Required: true},
			&cli.StringFlag{Name: "label", Value: "Diabetes_binary", Usage: "Name of the label column"},
			&cli.StringFlag{Name: "reference", Usage: "Reference CSV for defaults (defaults to --csv)"},
			&cli.StringFlag{Name: "model", Usage: "Path to the model artifact", Required: true},
			&cli.StringFlag{Name: "model-type", Value: ml.ModelLogisticRegression, Usage: "Model type"},
		},
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("csv"))
			if err != nil {
				return err
			}
			defer f.Close()
			dataset, labels, err := pipeline.ReadLabeledCSV(f, c.String("label"))
			if err != nil {
				return err
			}

			reference := c.String("reference")
			if reference == "" {
				reference = c.String("csv")
			}
			source, err := pipeline.NewSource(pipeline.SourceCSV, reference)
			if err != nil {
				return err
			}
			build := pipeline.NewBuilder(source, pipeline.BuilderConfig{
				ModelType: c.String("model-type"),
				ModelPath: c.String("model"),
			}, nil)
			predictor, err := build(c.Context)
			if err != nil {
				return err
			}

			result, err := ml.Evaluate(predictor, dataset, labels)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, result)
		},
	}
}

func sourceFromFlags(c *cli.Context) (pipeline.Source, error) {
	csvPath, dbPath := c.String("csv"), c.String("db")
	switch {
	case csvPath != "" && dbPath != "":
		return nil, errors.New("use either --csv or --db, not both")
	case csvPath != "":
		return pipeline.NewSource(pipeline.SourceCSV, csvPath)
	case dbPath != "":
		return pipeline.NewSource(pipeline.SourceSQLite, dbPath)
	default:
		return nil, errors.New("one of --csv or --db is required")
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
