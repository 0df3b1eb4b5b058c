package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/alexanderramin/bookable/internal/cli/formatter"
	"github.com/alexanderramin/bookable/internal/domain"
	"github.com/alexanderramin/bookable/internal/normalize"
	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert form files between nested and normalized shapes",
	}

	cmd.AddCommand(
		newConvertNormalizeCmd(),
		newConvertNestedCmd(),
		newConvertCheckCmd(),
	)

	return cmd
}

func newConvertNormalizeCmd() *cobra.Command {
	var randomIDs bool

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Flatten a nested form file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f domain.FormConfig
			if err := readJSONArg(cmd, args[0], &f); err != nil {
				return err
			}
			if f.ServiceTree == nil {
				return fmt.Errorf("%s has no serviceTree", args[0])
			}
			idFn := normalize.StableQuestionIDs
			if randomIDs {
				idFn = normalize.RandomQuestionIDs
			}
			return writeJSON(cmd.OutOrStdout(), normalize.FromForm(&f, normalize.WithQuestionIDs(idFn)))
		},
	}

	cmd.Flags().BoolVar(&randomIDs, "random-ids", false, "Give question wrappers fresh uuids instead of service/question ids")
	return cmd
}

func newConvertNestedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nested FILE",
		Short: "Rebuild the nested form from a normalized file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc domain.NormalizedDocument
			if err := readJSONArg(cmd, args[0], &doc); err != nil {
				return err
			}
			f, err := normalize.ToForm(&doc)
			if err != nil {
				return fmt.Errorf("rebuilding tree: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), f)
		},
	}
}

func newConvertCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Check a normalized file's references (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc domain.NormalizedDocument
			if err := readJSONArg(cmd, args[0], &doc); err != nil {
				return err
			}
			report := normalize.CheckIntegrity(&doc)
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatIntegrity(report))
			if !report.IsValid {
				return fmt.Errorf("%s failed the integrity check", args[0])
			}
			return nil
		},
	}
}

func readJSONArg(cmd *cobra.Command, path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
