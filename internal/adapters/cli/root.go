// Package cli runs the ingestion pipelines from the command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

// Services are the pipelines a command runs against.
type Services struct {
	Files ports.FileIngestor
	Feeds ports.FeedIngestor
	Jobs  ports.JobReader
}

// Opener builds Services lazily so that --help never dials external systems.
// The returned func releases them.
type Opener func(ctx context.Context) (Services, func(), error)

// ErrJobFailed is returned after a failed job report has been printed.
var ErrJobFailed = errors.New("job failed")

func NewRootCommand(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "ingestctl",
		Short:         "Ingest documents and feeds into the knowledge graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newFileCommand(open), newRSSCommand(open), newJobCommand(open))
	return root
}

func newFileCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>",
		Short: "Upload a .md, .mdx or .txt file and write its graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			return withServices(cmd, open, func(ctx context.Context, svc Services) error {
				report, err := svc.Files.ProcessFile(ctx, domain.FileUpload{
					Document: domain.NewRawDocument(content, filepath.Base(args[0])),
				})
				return printReport(cmd.OutOrStdout(), report, err)
			})
		},
	}
}

func newRSSCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "rss <url>",
		Short: "Fetch an RSS/Atom feed and write its graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc Services) error {
				report, err := svc.Feeds.ProcessFeed(ctx, args[0])
				return printReport(cmd.OutOrStdout(), report, err)
			})
		},
	}
}

func newJobCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show a stored job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, open, func(ctx context.Context, svc Services) error {
				job, err := svc.Jobs.GetJob(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), job)
			})
		},
	}
}

func withServices(cmd *cobra.Command, open Opener, fn func(context.Context, Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, release, err := open(ctx)
	if err != nil {
		return err
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, svc)
}

// printReport writes the report even for failed jobs so partial steps are visible.
func printReport[R any](w io.Writer, report *R, jobErr error) error {
	if report != nil {
		if err := writeJSON(w, report); err != nil {
			return err
		}
	}
	if jobErr != nil {
		return fmt.Errorf("%w: %w", ErrJobFailed, jobErr)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
