package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hackquest/hackquest/pkg/logging"
	"github.com/hackquest/hackquest/pkg/quests"
	"github.com/hackquest/hackquest/pkg/session"
)

var version = "dev" // Will be set during build

func main() {
	if err := newRootCmd(afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds the state shared by all commands of one invocation
type cli struct {
	fs          afero.Fs
	cfgFile     string
	showVersion bool
	team        string
	pin         string

	config *Config
	orch   *session.Orchestrator
}

// userError is a failure of a session transaction, shown as its user message
type userError struct {
	err error
}

func (e *userError) Error() string { return session.UserMessage(e.err) }
func (e *userError) Unwrap() error { return e.err }

func newRootCmd(fs afero.Fs) *cobra.Command {
	c := &cli{fs: fs}

	root := &cobra.Command{
		Use:           "hackquest",
		Short:         "HackQuest team progression",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `HackQuest - hackathon teams progress through four quests

Teams log in with a team name and PIN (unknown teams are registered on first
login), submit one artifact per quest and earn 100 XP per completed quest.

Configuration is an optional YAML file; every key can be overridden with a
HACKQUEST_* environment variable, for example HACKQUEST_STORE_BACKEND=sheets:

store:
  backend: xlsx            # memory, xlsx or sheets
  xlsx_path: teams.xlsx
  spreadsheet_id: ""
  sheet_name: Teams
  credentials_file: service-account.json
  requests_per_minute: 60
retry:
  max_attempts: 3
  base_delay: 1s
  timeout: 10s
metrics:
  sink: none               # none, datadog or prometheus
  datadog_api_key: ""
  pushgateway_url: ""
  timeout: 5s
logging:
  level: warn
  path: ""
  access_path: ""`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "HackQuest %s\n", version)
				return nil
			}
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "path to config file")
	root.Flags().BoolVarP(&c.showVersion, "version", "v", false, "show version information")

	root.AddCommand(
		c.questsCmd(),
		c.loginCmd(),
		c.statusCmd(),
		c.submitCmd(),
		c.adminCmd(),
	)
	return root
}

func (c *cli) setup() error {
	path := c.cfgFile
	if path != "" && !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = abs
	}

	config, err := LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := logging.ParseLevel(config.Logging.Level)
	if err := logging.Initialize(&logging.Config{
		Level:         level,
		AppLogPath:    config.Logging.Path,
		AccessLogPath: config.Logging.AccessPath,
		MaxSize:       config.Logging.MaxSize,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	c.config = config
	return nil
}

func (c *cli) orchestrator(ctx context.Context) (*session.Orchestrator, error) {
	if c.orch != nil {
		return c.orch, nil
	}
	orch, err := newOrchestrator(ctx, c.config, c.fs)
	if err != nil {
		return nil, err
	}
	c.orch = orch
	return orch, nil
}

func (c *cli) login(ctx context.Context) (*session.Orchestrator, session.Session, error) {
	orch, err := c.orchestrator(ctx)
	if err != nil {
		return nil, session.Session{}, err
	}
	s, err := orch.Login(ctx, c.team, c.pin)
	if err != nil {
		return nil, session.Session{}, &userError{err}
	}
	return orch, s, nil
}

func (c *cli) teamFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.team, "team", "", "team name")
	cmd.Flags().StringVar(&c.pin, "pin", "", "team PIN")
	_ = cmd.MarkFlagRequired("team")
	_ = cmd.MarkFlagRequired("pin")
}

func (c *cli) questsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quests",
		Short: "List the quests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, q := range quests.Catalog {
				fmt.Fprintf(out, "Quest %d: %s\n  %s (+%d XP)\n", q.Number, q.Title, q.Description, q.XPReward)
			}
			return nil
		},
	}
}

func (c *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in, registering the team if it is new",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := c.login(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! Stage %d, %d XP, level %d\n", s.TeamName, s.Stage, s.XP, s.Level)
			return nil
		},
	}
	c.teamFlags(cmd)
	return cmd
}

func (c *cli) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the team's progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := c.login(cmd.Context())
			if err != nil {
				return err
			}
			printOverview(cmd.OutOrStdout(), session.View(s))
			return nil
		},
	}
	c.teamFlags(cmd)
	return cmd
}

func (c *cli) submitCmd() *cobra.Command {
	var (
		quest    int
		artifact string
		file     string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit the artifact for a quest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := afero.ReadFile(c.fs, file)
				if err != nil {
					return fmt.Errorf("failed to read artifact file: %w", err)
				}
				artifact = strings.TrimRight(string(data), "\r\n")
			}

			orch, s, err := c.login(cmd.Context())
			if err != nil {
				return err
			}
			next, outcome, err := orch.SubmitQuest(cmd.Context(), s, quest, artifact)
			if err != nil {
				return &userError{err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Quest %d completed! +%d XP (stage %d, %d XP, level %d)\n",
				outcome.Quest, outcome.XPReward, next.Stage, next.XP, next.Level)
			return nil
		},
	}
	c.teamFlags(cmd)
	cmd.Flags().IntVar(&quest, "quest", 0, "quest number (1-4)")
	cmd.Flags().StringVar(&artifact, "artifact", "", "artifact text or link")
	cmd.Flags().StringVar(&file, "file", "", "read the artifact from a file")
	_ = cmd.MarkFlagRequired("quest")
	cmd.MarkFlagsOneRequired("artifact", "file")
	cmd.MarkFlagsMutuallyExclusive("artifact", "file")
	return cmd
}

func (c *cli) adminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Administrator operations",
	}

	var team, newPIN string
	recoverPIN := &cobra.Command{
		Use:   "recover-pin",
		Short: "Replace a team's PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := c.orchestrator(cmd.Context())
			if err != nil {
				return err
			}
			ok, err := orch.RecoverPIN(cmd.Context(), team, newPIN)
			if err != nil {
				return &userError{err}
			}
			if !ok {
				return fmt.Errorf("team %q not found", team)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PIN for %s updated\n", team)
			return nil
		},
	}
	recoverPIN.Flags().StringVar(&team, "team", "", "team name")
	recoverPIN.Flags().StringVar(&newPIN, "new-pin", "", "new PIN")
	_ = recoverPIN.MarkFlagRequired("team")
	_ = recoverPIN.MarkFlagRequired("new-pin")

	admin.AddCommand(recoverPIN)
	return admin
}

func printOverview(out io.Writer, o session.Overview) {
	fmt.Fprintf(out, "%s: stage %d, %d/%d XP, level %d\n", o.TeamName, o.Stage, o.XP, o.TotalXP, o.Level)
	for _, q := range o.Quests {
		state := "locked"
		switch {
		case q.Completed:
			state = "completed"
		case q.Unlocked:
			state = "open"
		}
		fmt.Fprintf(out, "  [%s] Quest %d: %s\n", state, q.Number, q.Title)
		if q.Artifact != "" {
			fmt.Fprintf(out, "      %s\n", q.Artifact)
		}
	}
}
