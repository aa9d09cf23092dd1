package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/intelligence/analyzer"
	"github.com/loanlens/loanlens/internal/intelligence/docparse"
	"github.com/loanlens/loanlens/pkg/types/common"
)

type analyzeOptions struct {
	backend string
	baseURL string
	model   string
	pretty  bool
}

// newAnalyzeCommand analyzes a local PDF without any infrastructure and
// prints the result bundle as JSON. The LLM backend is used when a base URL
// and the LOANLENS_ANALYZER_API_KEY variable are present; otherwise the
// heuristic analyzer runs.
func newAnalyzeCommand(opts *rootOptions) *cobra.Command {
	a := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <file.pdf>",
		Short: "Analyze a local loan document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, a, args[0])
		},
	}
	cmd.Flags().StringVar(&a.backend, "backend", config.DefaultAnalyzerBackend, "analysis backend (llm|heuristic|auto)")
	cmd.Flags().StringVar(&a.baseURL, "base-url", "", "LLM API base URL")
	cmd.Flags().StringVar(&a.model, "model", "", "LLM model name")
	cmd.Flags().BoolVar(&a.pretty, "pretty", false, "indent the JSON output")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *rootOptions, a *analyzeOptions, path string) error {
	log := offlineLogger(opts)

	ex, err := extractFile(cmd, path)
	if err != nil {
		return err
	}

	engine := analyzer.New(config.AnalyzerConfig{
		Backend:       a.backend,
		BaseURL:       a.baseURL,
		APIKey:        os.Getenv("LOANLENS_ANALYZER_API_KEY"),
		Model:         a.model,
		Timeout:       config.DefaultAnalyzerTimeout,
		MaxInputChars: config.DefaultAnalyzerMaxChars,
		MaxRetries:    config.DefaultAnalyzerRetries,
		RetryBackoff:  config.DefaultAnalyzerBackoff,
	}, log)

	bundle, err := engine.Analyze(cmd.Context(), common.NewDocumentID(), ex)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if a.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(bundle)
}

// extractFile runs the PDF extractor against a local file.
func extractFile(cmd *cobra.Command, path string) (*docparse.Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	ex, err := docparse.NewExtractor().Extract(cmd.Context(), f)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", path, err)
	}
	return ex, nil
}
