package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gateprov/gateprov/internal/entity"
)

func newValidateCommand() *cobra.Command {
	var draftPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a draft file without touching the network",
		Example: `  # Validate a draft
  gateprov validate -f access-point.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := loadDraft(draftPath)
			if err != nil {
				return err
			}

			report := entity.Validate(draft)
			printReport(report)
			if !report.Valid {
				return fmt.Errorf("draft failed validation")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&draftPath, "file", "f", "", "draft YAML file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func printReport(report entity.Report) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	for _, e := range report.Errors {
		fmt.Printf("error: %s\n", e)
	}
	for _, w := range report.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if report.Valid {
		fmt.Println("draft is valid")
	}
}
