package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Pland4r/project-ai/internal/analysis"
	"github.com/Pland4r/project-ai/internal/llm"
	"github.com/Pland4r/project-ai/internal/models"
	"github.com/Pland4r/project-ai/internal/service"
	"github.com/Pland4r/project-ai/internal/table"
)

var (
	ceiling     float64
	withSummary bool
	outputPath  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Print the metrics payload for a file as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var cleanCmd = &cobra.Command{
	Use:   "clean FILE",
	Short: "Write the cleaned table as CSV",
	Long: `clean writes the normalized table with canonical headers. Aggregate
tables are reconciled so that total_users = active_users + churned_users
holds on every row.`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, cleanCmd} {
		c.Flags().Float64Var(&ceiling, "ceiling", 0, "Largest trusted count (default from config)")
	}
	analyzeCmd.Flags().BoolVar(&withSummary, "summary", false, "Ask the configured provider for a written summary")
	cleanCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
}

func newPipeline() *analysis.Pipeline {
	c := ceiling
	if c == 0 && cfg != nil {
		c = cfg.Cleaning.Ceiling
	}
	return analysis.NewPipeline(analysis.Options{Ceiling: c}, logger)
}

func runPipeline(path string) (*table.RawTable, *analysis.Result, error) {
	raw, err := table.Load(path, table.DefaultOptions())
	if err != nil {
		return nil, nil, err
	}
	res := newPipeline().Run(raw)
	for _, w := range res.Warnings {
		logger.Warn(w, zap.String("file", path))
	}
	return raw, res, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	raw, res, err := runPipeline(args[0])
	if err != nil {
		return err
	}

	summary := ""
	if withSummary {
		summarizer, err := llm.FromConfig(cfg.Summary)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmdContext(cmd), cfg.Summary.Timeout())
		defer cancel()
		summary = llm.SummaryOrPlaceholder(ctx, summarizer, res.Snapshot)
	}

	resp := models.NewAnalyzeResponse(res, summary,
		service.NewQualityProfiler().ProfileAllColumns(raw),
		service.NewTrendAnalyzer().Analyze(res.Daily),
	)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func runClean(cmd *cobra.Command, args []string) error {
	_, res, err := runPipeline(args[0])
	if err != nil {
		return err
	}

	columns, records := res.Cleaned.Export()
	if outputPath != "" {
		err = writeCSVFile(outputPath, columns, records)
	} else {
		err = table.WriteCSV(cmd.OutOrStdout(), columns, records)
	}
	if err != nil {
		return err
	}
	logger.Info("cleaned",
		zap.String("schema", string(res.Variant)),
		zap.Int("rows_in", res.Report.RowsIn),
		zap.Int("rows_out", res.Report.RowsOut),
		zap.Int("rows_reconciled", res.Report.RowsReconciled),
	)
	return nil
}

// writeCSVFile reports write and close failures so a truncated file is
// never silently left behind
func writeCSVFile(path string, columns []string, records [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := table.WriteCSV(f, columns, records); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
