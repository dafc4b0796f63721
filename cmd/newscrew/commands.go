package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"NewsCrew/sdk/go/newscrew"
)

func newDigestCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "digest <topic>",
		Short: "Search, summarise and write up the latest news on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			text, err := client.Digest(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

func newContentCmd(opts *cliOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "content <subject>",
		Short: "Queue a content pack (article plus social posts) and wait for it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait+opts.timeout)
			defer cancel()
			submitted, err := client.SubmitTask(ctx, newscrew.TaskSubmission{
				Kind:    "content_pack",
				Subject: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "queued task %s\n", submitted.ID)
			done, err := waitTask(ctx, client, submitted.ID, wait)
			if err != nil {
				return err
			}
			if done.Status == "failed" {
				return fmt.Errorf("task %s failed: %s", done.ID, done.LastError)
			}
			printContent(cmd.OutOrStdout(), done.Result)
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Minute, "how long to wait for the task to finish")
	return cmd
}

// waitTask 反复长轮询任务，直到任务结束或 wait 用尽。
func waitTask(ctx context.Context, client *newscrew.Client, id string, wait time.Duration) (*newscrew.Task, error) {
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining > time.Minute {
			remaining = time.Minute
		}
		current, err := client.GetTask(ctx, id, remaining)
		if err != nil {
			return nil, err
		}
		if current.Finished() {
			return current, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("task %s still %s after %s", id, current.Status, wait)
		}
		// 服务端不支持等待时避免空转。
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func newTaskCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Submit and inspect asynchronous tasks",
	}

	var (
		kind  string
		id    string
		input []string
	)
	submit := &cobra.Command{
		Use:   "submit <subject>",
		Short: "Queue a news_digest, content_pack or post task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseInput(input)
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			submitted, err := client.SubmitTask(ctx, newscrew.TaskSubmission{
				ID:      id,
				Kind:    kind,
				Subject: strings.Join(args, " "),
				Input:   fields,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), submitted)
		},
	}
	submit.Flags().StringVar(&kind, "kind", "content_pack", "task kind: news_digest, content_pack or post")
	submit.Flags().StringVar(&id, "id", "", "caller supplied task id for idempotent submission")
	submit.Flags().StringArrayVar(&input, "input", nil, "extra key=value input, e.g. --input platform=LinkedIn")

	var wait time.Duration
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a task, optionally waiting for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), wait+opts.timeout)
			defer cancel()
			current, err := client.GetTask(ctx, args[0], wait)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), current)
		},
	}
	get.Flags().DurationVar(&wait, "wait", 0, "let the server hold the request until the task finishes")

	cmd.AddCommand(submit, get)
	return cmd
}

func parseInput(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

func newIngestCmd(opts *cliOptions) *cobra.Command {
	var (
		id    string
		title string
		file  string
	)
	cmd := &cobra.Command{
		Use:   "ingest [url]",
		Short: "Add a web page (by URL) or a local text file to the document store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := newscrew.Document{ID: id, Title: title}
			switch {
			case file != "":
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				doc.Text = string(raw)
			case len(args) == 1:
				doc.URL = args[0]
			default:
				return fmt.Errorf("either a url argument or --file is required")
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			stored, err := client.IngestDocument(ctx, doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "document id (generated when empty)")
	cmd.Flags().StringVar(&title, "title", "", "document title")
	cmd.Flags().StringVar(&file, "file", "", "read document text from a local file")
	return cmd
}

func newAskCmd(opts *cliOptions) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the document store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			answer, err := client.Ask(ctx, strings.Join(args, " "), topK)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Answer)
			for _, src := range answer.Sources {
				fmt.Fprintf(out, "  [%.3f] %s %s\n", src.Score, src.ID, src.URL)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 1, "number of documents used as context")
	return cmd
}

func newRefineCmd(opts *cliOptions) *cobra.Command {
	var (
		instruction string
		file        string
	)
	cmd := &cobra.Command{
		Use:   "refine [content]",
		Short: "Rewrite content following an instruction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				content = string(raw)
			}
			if strings.TrimSpace(content) == "" || strings.TrimSpace(instruction) == "" {
				return fmt.Errorf("content and --instruction are required")
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			refined, err := client.Refine(ctx, content, instruction)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), refined)
			return nil
		},
	}
	cmd.Flags().StringVarP(&instruction, "instruction", "i", "", "how the content should change")
	cmd.Flags().StringVar(&file, "file", "", "read content from a local file")
	return cmd
}
