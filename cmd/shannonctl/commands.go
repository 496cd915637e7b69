package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/shannon/internal/client"
	"github.com/phrazzld/shannon/internal/domain"
	"github.com/phrazzld/shannon/internal/platform/logger"
	"github.com/phrazzld/shannon/internal/task"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration keys, also readable as SHANNON_SERVER_URL, SHANNON_TOKEN, ...
const (
	keyServer   = "server_url"
	keyToken    = "token"
	keyInterval = "poll_interval"
	keyDebug    = "debug"
)

// cli carries state shared by every subcommand.
type cli struct {
	v      *viper.Viper
	out    io.Writer
	errOut io.Writer
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "shannonctl",
		Short:         "Control a Shannon memory server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "Shannon server address")
	flags.String("token", "", "bearer token minted with shannon -issue-token")
	flags.Duration("interval", task.DefaultPollInterval, "how often to poll task status")
	flags.Bool("debug", false, "log HTTP retries to stderr")

	for key, flag := range map[string]string{
		keyServer:   "server",
		keyToken:    "token",
		keyInterval: "interval",
		keyDebug:    "debug",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}
	c.v.SetEnvPrefix("SHANNON")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	root.AddCommand(c.newSyncCommand(), c.newStatusCommand(), c.newStatsCommand())
	return root
}

func (c *cli) client() (*client.Client, error) {
	level := "error"
	if c.v.GetBool(keyDebug) {
		level = "debug"
	}
	l, err := logger.Setup(logger.LoggerConfig{Level: level, Output: c.errOut})
	if err != nil {
		return nil, err
	}

	return client.New(client.Config{
		BaseURL: c.v.GetString(keyServer),
		Token:   c.v.GetString(keyToken),
	}, l)
}

func (c *cli) newSyncCommand() *cobra.Command {
	var (
		params task.GmailSyncParams
		detach bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync recent Gmail messages into memory",
		Long: "Starts a Gmail sync with the given OAuth access token and follows it " +
			"until it completes, printing progress along the way.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if params.AccessToken == "" {
				return errors.New("--gmail-token is required")
			}

			cl, err := c.client()
			if err != nil {
				return err
			}

			id, err := cl.SyncGmail(cmd.Context(), params)
			if err != nil {
				return fmt.Errorf("failed to start sync: %w", err)
			}
			fmt.Fprintf(c.out, "started sync task %s\n", id)

			if detach {
				return nil
			}
			return c.follow(cmd, cl, id)
		},
	}

	f := cmd.Flags()
	f.StringVar(&params.AccessToken, "gmail-token", "", "Gmail OAuth access token")
	f.IntVar(&params.MaxMessages, "max", task.DefaultSyncMaxMessages, "maximum number of messages to sync")
	f.StringVar(&params.Query, "query", "", "Gmail search query, e.g. newer_than:7d")
	f.StringSliceVar(&params.LabelIDs, "label", nil, "restrict to label IDs (repeatable)")
	f.BoolVar(&detach, "detach", false, "return after the task is submitted")

	return cmd
}

func (c *cli) newStatusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the status of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid task id %q: %w", args[0], err)
			}

			cl, err := c.client()
			if err != nil {
				return err
			}

			if watch {
				return c.follow(cmd, cl, id)
			}

			t, err := cl.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			c.printTask(t)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the task finishes")
	return cmd
}

func (c *cli) newStatsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show workspace memory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}

			stats, err := cl.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			c.printStats(stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// follow polls the task until it is terminal, printing each change.
func (c *cli) follow(cmd *cobra.Command, cl *client.Client, id uuid.UUID) error {
	var last task.Task
	poller := task.NewPoller(cl, task.PollerConfig{
		Interval: c.v.GetDuration(keyInterval),
		OnUpdate: func(t task.Task) {
			if t.Status != last.Status || t.Progress != last.Progress {
				fmt.Fprintf(c.out, "%-9s %3d%%\n", t.Status, t.Progress)
			}
			last = t
		},
	})

	final, err := poller.Poll(cmd.Context(), id)
	if err != nil {
		return err
	}

	c.printTask(final)
	return final.Err()
}

func (c *cli) printTask(t task.Task) {
	fmt.Fprintf(c.out, "task:     %s\n", t.ID)
	fmt.Fprintf(c.out, "type:     %s\n", t.Type)
	fmt.Fprintf(c.out, "status:   %s\n", t.Status)
	fmt.Fprintf(c.out, "progress: %d%%\n", t.Progress)
	if t.FinishedAt != nil {
		fmt.Fprintf(c.out, "elapsed:  %s\n", t.FinishedAt.Sub(t.CreatedAt).Round(time.Millisecond))
	}

	switch t.Status {
	case task.StatusFailed:
		fmt.Fprintf(c.out, "error:    %s\n", t.Error)
	case task.StatusCompleted:
		if t.Type != task.TypeGmailSync {
			fmt.Fprintf(c.out, "result:   %s\n", t.Result)
			return
		}
		var r task.GmailSyncResult
		if err := t.DecodeResult(&r); err != nil {
			fmt.Fprintf(c.errOut, "undecodable sync result: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "emails:   %d processed, %d skipped\n", r.EmailsProcessed, r.EmailsSkipped)
		fmt.Fprintf(c.out, "memories: %d episodic, %d semantic, %d procedural\n",
			r.EpisodicCount, r.SemanticCount, r.ProceduralCount)
	}
}

func (c *cli) printStats(s *domain.WorkspaceStats) {
	fmt.Fprintf(c.out, "episodes:        %d\n", s.Episodic.Episodes)
	fmt.Fprintf(c.out, "facts:           %d\n", s.Semantic.Facts)
	fmt.Fprintf(c.out, "patterns:        %d\n", s.Procedural.Patterns)
	fmt.Fprintf(c.out, "tokens:          %d\n", s.TotalTokens)
	fmt.Fprintf(c.out, "emails synced:   %d\n", s.GmailIntegration.TotalEmailsProcessed)
	if s.GmailIntegration.LastSyncAt != nil {
		fmt.Fprintf(c.out, "last sync:       %s\n", s.GmailIntegration.LastSyncAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(c.out, "last sync:       never")
	}
}
