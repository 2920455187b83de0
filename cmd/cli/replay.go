package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/iho/txconsumer/internal/app"
	"github.com/iho/txconsumer/internal/usecase"
)

// maxLineSize bounds a single message body.
const maxLineSize = 1 << 20

func (c *cli) replayCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "replay [file...]",
		Short: "Process JSON-lines message bodies through the dispatcher",
		Long: `Reads one message body per line from the given files, or from stdin when
no file is given, and processes them in batches exactly like the queue consumer.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := readMessages(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := replay(ctx, a.Dispatcher, msgs, batchSize)
				if err := printReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if n := len(report.Retryable()); n > 0 {
					return fmt.Errorf("%d message(s) failed with storage errors and can be replayed", n)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 10, "Messages per dispatcher batch")

	return cmd
}

func readMessages(stdin io.Reader, files []string) ([]usecase.Message, error) {
	if len(files) == 0 {
		return scanMessages(stdin, "stdin")
	}

	var msgs []usecase.Message
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		fileMsgs, err := scanMessages(f, name)
		f.Close()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, fileMsgs...)
	}
	return msgs, nil
}

func scanMessages(r io.Reader, source string) ([]usecase.Message, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var msgs []usecase.Message
	line := 0
	for scanner.Scan() {
		line++
		body := bytes.TrimSpace(scanner.Bytes())
		if len(body) == 0 {
			continue
		}
		msgs = append(msgs, usecase.Message{
			ID:   fmt.Sprintf("%s:%d", source, line),
			Body: append([]byte(nil), body...),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	return msgs, nil
}

type batchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []usecase.Message) *usecase.BatchReport
}

func replay(ctx context.Context, p batchProcessor, msgs []usecase.Message, batchSize int) *usecase.BatchReport {
	if batchSize <= 0 {
		batchSize = len(msgs)
	}

	total := &usecase.BatchReport{}
	for start := 0; start < len(msgs); start += batchSize {
		end := min(start+batchSize, len(msgs))
		report := p.ProcessBatch(ctx, msgs[start:end])
		total.Results = append(total.Results, report.Results...)
		total.Committed += report.Committed
		total.Rejected += report.Rejected
	}
	return total
}

func printReport(w io.Writer, report *usecase.BatchReport) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Message", "Object", "Type", "State", "Reason"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, r := range report.Results {
		table.Append([]string{
			truncate(r.MessageID, 24),
			truncate(r.ObjectKey, 32),
			string(r.TransactionType),
			string(r.State),
			truncate(r.Reason(), 60),
		})
	}
	table.Render()

	_, err := fmt.Fprintf(w, "\ncommitted: %d  rejected: %d\n", report.Committed, report.Rejected)
	return err
}
