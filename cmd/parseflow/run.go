package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/docvision/parseflow/internal/models"
	"github.com/docvision/parseflow/internal/services"
)

func newRunCmd() *cobra.Command {
	var (
		outputFormat string
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "run <object-key>",
		Short: "Split, process, and combine one uploaded document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), args[0], outputFormat, concurrency)
		},
	}
	cmd.Flags().StringVarP(&outputFormat, "format", "f", models.FormatMarkdown, "output format: json, markdown, html, or txt")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "maximum pages processed in parallel")
	return cmd
}

// runPipeline is the workflow stand-in: split once, fan out page processing
// up to the concurrency limit, then combine. A failed page never aborts the
// run; its result reference still goes to the combiner, which records it as
// a load error.
func runPipeline(ctx context.Context, inputKey, outputFormat string, concurrency int) error {
	splitter, err := services.NewSplitter(ctx)
	if err != nil {
		return fmt.Errorf("splitter init: %w", err)
	}
	processor, err := services.NewProcessor(ctx)
	if err != nil {
		return fmt.Errorf("processor init: %w", err)
	}
	combiner, err := services.NewCombiner(ctx)
	if err != nil {
		return fmt.Errorf("combiner init: %w", err)
	}

	split, err := splitter.Process(ctx, &models.SplitDocumentRequest{
		InputKey:     inputKey,
		OutputFormat: outputFormat,
	})
	if err != nil {
		return fmt.Errorf("split: %w", err)
	}
	slog.Info("Document decomposed.", "runId", split.RunID, "pages", len(split.Pages))

	resultURIs := make([]string, len(split.Pages))
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, page := range split.Pages {
		eg.Go(func() error {
			res, err := processor.Process(gctx, &models.ProcessPageRequest{
				RunID:            split.RunID,
				PageNumber:       page.PageNumber,
				ImageURI:         page.ImageURI,
				TextURI:          page.TextURI,
				OutputFormat:     split.OutputFormat,
				OriginalBaseName: split.OriginalBaseName,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("Page failed, the combiner will record it.", "page", page.PageNumber, "error", err)
				resultURIs[i] = expectedResultURI(processor, split, page.PageNumber)
				return nil
			}
			resultURIs[i] = res.ResultURI
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("process pages: %w", err)
	}

	combined, err := combiner.Process(ctx, &models.CombineResultsRequest{
		RunID:            split.RunID,
		ResultURIs:       resultURIs,
		OriginalURI:      split.OriginalURI,
		OriginalBaseName: split.OriginalBaseName,
		OutputFormat:     split.OutputFormat,
	})
	if err != nil {
		return fmt.Errorf("combine: %w", err)
	}

	fmt.Printf("Run %s finished: %s\n", combined.RunID, combined.Status)
	fmt.Printf("Pages: %d/%d aggregated, %d load errors\n",
		combined.Summary.SuccessfulPages, combined.Summary.TotalPagesInput, combined.Summary.LoadErrorCount)
	for format, uri := range combined.Outputs {
		fmt.Printf("  %s: %s\n", format, uri)
	}
	return nil
}

// expectedResultURI mirrors the processor's result naming, so a failed
// page still hands the combiner the reference it would have written.
func expectedResultURI(processor *services.ProcessorFunction, split *models.SplitDocumentResponse, page int) string {
	return processor.ResultURIFor(split.RunID, split.OriginalBaseName, page)
}
