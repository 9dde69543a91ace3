package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"plumbing_backend/internal/bootstrap"
	"plumbing_backend/internal/customerlookup/importer"

	"github.com/spf13/cobra"
)

func importCustomersCmd() *cobra.Command {
	var mappingPath, archived string
	var list bool
	cmd := &cobra.Command{
		Use:   "import-customers [file.xlsx]",
		Short: "Load a customer spreadsheet into the lookup cache",
		Long: `Parse an XLSX customer export and upsert every valid row.

Examples:
  plumbctl import-customers customers.xlsx
  plumbctl import-customers customers.xlsx --mapping columns.yaml
  plumbctl import-customers --list
  plumbctl import-customers --archived customer-imports/2026/03/04/customers_1a2b3c4d.xlsx`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
					objs, err := c.CustomerLookup.Importer().ListArchived(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(objs)
				})
			}
			if (len(args) == 0) == (archived == "") {
				return fmt.Errorf("pass either a file or --archived")
			}

			mapping := importer.DefaultMapping()
			if mappingPath != "" {
				f, err := os.Open(mappingPath)
				if err != nil {
					return fmt.Errorf("open mapping: %w", err)
				}
				mapping, err = importer.LoadMapping(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}

			return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
				var (
					res *importer.Result
					err error
				)
				if archived != "" {
					res, err = c.CustomerLookup.Importer().ImportArchived(cmd.Context(), archived, mapping)
				} else {
					f, openErr := os.Open(args[0])
					if openErr != nil {
						return fmt.Errorf("open workbook: %w", openErr)
					}
					defer func() { _ = f.Close() }()
					res, err = c.CustomerLookup.Importer().Import(cmd.Context(), filepath.Base(args[0]), f, mapping)
				}
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "YAML column mapping")
	cmd.Flags().BoolVar(&list, "list", false, "list archived imports")
	cmd.Flags().StringVar(&archived, "archived", "", "re-import a previously archived object key")
	return cmd
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
