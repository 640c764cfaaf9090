package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/cadence/internal/classifier"
	"github.com/jonesrussell/north-cloud/cadence/internal/cleaner"
	"github.com/jonesrussell/north-cloud/cadence/internal/domain"
)

// readInput reads args[0], or stdin when there is no argument or it is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var r io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(b), nil
}

func newCleanCommand() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "clean [file]",
		Short: "Clean raw text or HTML and print the result with its quality score",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			res := cleaner.CleanPlatform(raw, platform)
			fmt.Fprintf(cmd.ErrOrStderr(), "quality_score=%d\n", res.QualityScore)
			fmt.Fprintln(cmd.OutOrStdout(), res.CleanedText)
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "source platform, e.g. civicplus, nixle, pdf")
	return cmd
}

func newClassifyCommand() *cobra.Command {
	var platform, url, title, hint string

	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify a document and print the decision as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			doc, err := domain.NewRawDocument(url, "adhoc", hint, title, text, nil, nil)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(classifier.New().Decide(doc, domain.ParsePlatform(platform)))
		},
	}
	cmd.Flags().StringVar(&platform, "platform", "", "source platform")
	cmd.Flags().StringVar(&url, "url", "", "document URL")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&hint, "hint", "", "fetcher document type hint")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
