package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/case-study-search/internal/core/domain"
)

func newEnsureIndexesCmd(state *cliState) *cobra.Command {
	var dimension int
	cmd := &cobra.Command{
		Use:   "ensure-indexes",
		Short: "Create the full-text, vector and identity indexes if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if dimension <= 0 {
				dimension = app.Config.EmbedDim
			}
			if err := app.Indexes.EnsureIndexes(cmd.Context(), dimension); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexes ready (dimension %d)\n", dimension)
			return nil
		},
	}
	cmd.Flags().IntVar(&dimension, "dimension", 0, "vector dimension (defaults to EMBED_DIM)")
	return cmd
}

func newIngestCmd(state *cliState) *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>",
		Short: "Upsert chunk records from a JSON Lines file",
		Long: `Each line holds one chunk record with case_id, title, url, chunk_id,
text, order, char_start, char_end and an optional embedding. Records without
an embedding are embedded before they are written. With --async the records
are published to the NATS subject for the worker instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			records, err := readChunkRecords(f)
			if err != nil {
				return err
			}

			app, err := state.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if async {
				if err := app.ConnectQueue(nil); err != nil {
					return err
				}
				for i, rec := range records {
					if err := app.Publisher.Enqueue(cmd.Context(), rec); err != nil {
						return fmt.Errorf("record %d (chunk %q): %w", i, rec.ChunkID, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d records\n", len(records))
				return nil
			}

			n, err := app.Ingest.UpsertChunks(cmd.Context(), records)
			fmt.Fprintf(cmd.OutOrStdout(), "upserted %d of %d records\n", n, len(records))
			return err
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "publish records to NATS instead of writing directly")
	return cmd
}

func newAskCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the corpus or the web fallback",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := state.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			answer, err := app.Answer.Ask(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeAnswer(cmd.OutOrStdout(), answer)
		},
	}
}

func newResolveCmd(state *cliState) *cobra.Command {
	var caseID, chunkID string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the reconstructed full document of a case study",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := state.app(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			doc, err := app.Resolve.Resolve(cmd.Context(), caseID, chunkID)
			if err != nil {
				return err
			}
			if doc == nil {
				return domain.WrapError(domain.ErrCaseStudyNotFound, "resolve",
					fmt.Errorf("case_id=%q chunk_id=%q", caseID, chunkID))
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&caseID, "case-id", "", "case study identifier")
	cmd.Flags().StringVar(&chunkID, "chunk-id", "", "identifier of any chunk of the case study")
	cmd.MarkFlagsOneRequired("case-id", "chunk-id")
	return cmd
}

func writeAnswer(w io.Writer, answer *domain.Answer) error {
	fmt.Fprintf(w, "%s\n\n", answer.Text)
	if answer.CitationURL != "" {
		fmt.Fprintf(w, "Source: %s\n", answer.CitationURL)
	}
	fmt.Fprintf(w, "outcome=%s best_score=%.3f\n", answer.Outcome, answer.BestScore)
	for i, ev := range answer.Evidence {
		fmt.Fprintf(w, "[%d] %s (%s, chunk %s, %.3f)\n    %s\n", i+1, ev.Title, ev.CaseID, ev.ChunkID, ev.Score, ev.Snippet)
	}
	return nil
}
