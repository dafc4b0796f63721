package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsCrew/sdk/go/newscrew"
)

const defaultServer = "http://localhost:8080"

type cliOptions struct {
	server  string
	token   string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	root := &cobra.Command{
		Use:           "newscrew",
		Short:         "Command line client for the NewsCrew content studio",
		Long:          "newscrew talks to a running newscrewd: it builds news digests, queues content packs, refines copy and queries the document store.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
			if !cmd.Flags().Changed("server") {
				if v := strings.TrimSpace(os.Getenv("NEWSCREW_SERVER")); v != "" {
					opts.server = v
				}
			}
			if opts.token == "" {
				opts.token = strings.TrimSpace(os.Getenv("NEWSCREW_TOKEN"))
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "NewsCrew API base URL (env NEWSCREW_SERVER)")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "bearer token (env NEWSCREW_TOKEN)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", newscrew.DefaultHTTPTimeout, "request timeout")

	root.AddCommand(
		newDigestCmd(opts),
		newContentCmd(opts),
		newTaskCmd(opts),
		newIngestCmd(opts),
		newAskCmd(opts),
		newRefineCmd(opts),
	)
	return root
}

func (o *cliOptions) client() (*newscrew.Client, error) {
	client, err := newscrew.NewClient(strings.TrimRight(o.server, "/"), nil)
	if err != nil {
		return nil, err
	}
	client.SetAccessToken(o.token)
	return client, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printContent 以可读形式输出文章与各平台帖子。
func printContent(w io.Writer, result *newscrew.TaskResult) {
	if result == nil {
		return
	}
	if result.Degraded != "" {
		fmt.Fprintf(w, "(degraded: %s)\n\n", result.Degraded)
	}
	if result.Article != "" {
		fmt.Fprintln(w, result.Article)
	} else if result.Output != "" {
		fmt.Fprintln(w, result.Output)
	}
	for _, post := range result.Posts {
		fmt.Fprintf(w, "\n--- %s ---\n%s\n", post.Platform, post.Content)
	}
}
