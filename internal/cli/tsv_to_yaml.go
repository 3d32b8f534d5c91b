package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var tsvToYamlCmd = &cobra.Command{
	Use:   "tsv-to-yaml FILE",
	Short: "Convert a tabular file's rows into a multi-document YAML stream on stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return onyoerr.Wrap(onyoerr.NoSuchAsset, "tsv-to-yaml", args[0], err)
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.Comma = '\t'
		r.LazyQuotes = true

		header, err := r.Read()
		if err != nil {
			return onyoerr.Wrap(onyoerr.MalformedDocument, "tsv-to-yaml", args[0], err)
		}

		first := true
		for {
			row, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return onyoerr.Wrap(onyoerr.MalformedDocument, "tsv-to-yaml", args[0], err)
			}

			doc := yamldoc.Empty()
			set := map[string]any{}
			for i, col := range header {
				if i < len(row) && row[i] != "" {
					set[col] = row[i]
				}
			}
			doc, err = yamldoc.ApplyPatch(doc, yamldoc.Patch{Set: set, CreateIntermediate: true, ReplaceScalar: true})
			if err != nil {
				return err
			}

			data, err := yamldoc.Dump(doc)
			if err != nil {
				return err
			}
			if !first {
				fmt.Println("---")
			}
			first = false
			fmt.Print(string(data))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tsvToYamlCmd)
}
