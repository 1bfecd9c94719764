package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ghp-go/internal/app"
	"ghp-go/internal/config"
	"ghp-go/internal/ghp"
	"ghp-go/internal/secret"
	"ghp-go/internal/tracker"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ghp",
	Short: "Preserve Gerrit review history in a git archive",
}

// loadConfig reads the config file. An explicit --config path must exist;
// the default path is optional and falls back to built-in defaults so the
// tool works from flags alone.
func loadConfig(flagPath string) (*config.Config, error) {
	if flagPath != "" {
		return config.ReadFromFile(flagPath)
	}

	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("resolving default paths: %w", err)
	}

	if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
		return config.NewConfig(paths.Base), nil
	}
	return config.ReadFromFile(paths.Config)
}

// resolvePassword picks the Gerrit credential: flag first, then the
// encrypted secret store, then an interactive prompt. Anonymous when no
// username is in play.
func resolvePassword(cfg *config.Config, opts *app.Options) error {
	if opts.Password != "" {
		return nil
	}
	username := opts.Username
	if username == "" {
		username = cfg.Gerrit.Username
	}
	if username == "" {
		return nil
	}

	store, err := secret.NewStoreFromConfig(cfg.Secrets)
	if err != nil {
		return err
	}
	if store != nil && store.IsConfigured() {
		passphrase, err := secret.PromptPassword("Secret store passphrase")
		if err != nil {
			return err
		}
		password, err := store.Password(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking stored password: %w", err)
		}
		opts.Password = password
		return nil
	}

	password, err := secret.PromptPassword(fmt.Sprintf("Gerrit HTTP password for %s", username))
	if err != nil {
		return err
	}
	opts.Password = password
	return nil
}

func optionsFromFlags(cmd *cobra.Command) app.Options {
	var opts app.Options
	opts.GerritURL, _ = cmd.Flags().GetString("gerrit-url")
	opts.Username, _ = cmd.Flags().GetString("username")
	opts.Password, _ = cmd.Flags().GetString("password")
	opts.Query, _ = cmd.Flags().GetString("query")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.OutputDir, _ = cmd.Flags().GetString("output-dir")
	opts.RepoPath, _ = cmd.Flags().GetString("repo-path")
	opts.Branch, _ = cmd.Flags().GetString("branch")
	opts.ExportOnly, _ = cmd.Flags().GetBool("export-only")
	opts.NoVerifySSL, _ = cmd.Flags().GetBool("no-verify-ssl")
	return opts
}

func addPreserveFlags(cmd *cobra.Command) {
	cmd.Flags().String("gerrit-url", "", "Gerrit server URL (e.g. https://gerrit.example.com)")
	cmd.Flags().String("username", "", "Gerrit username for authenticated access")
	cmd.Flags().String("password", "", "Gerrit HTTP password (prompted when omitted)")
	cmd.Flags().String("query", "", "Gerrit change query (default status:merged)")
	cmd.Flags().Int("limit", 0, "Maximum number of changes to archive")
	cmd.Flags().String("output-dir", "", "Directory for export-only mode")
	cmd.Flags().String("repo-path", "", "Path of the archive git repository")
	cmd.Flags().String("branch", "", "Archive branch name")
	cmd.Flags().Bool("no-verify-ssl", false, "Skip TLS certificate verification")
	cmd.Flags().String("config", "", "Config file path")
}

func runPreserve(cmd *cobra.Command, exportOnly bool) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	opts := optionsFromFlags(cmd)
	if exportOnly {
		opts.ExportOnly = true
	}
	if err := resolvePassword(cfg, &opts); err != nil {
		return err
	}

	a, err := app.NewApp(cfg, opts)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, runErr := a.Preserve(ctx)
	if run != nil {
		printRun(run)
	}
	return runErr
}

func printRun(run *ghp.SyncRun) {
	fmt.Println(run.Summary())
	for _, f := range run.Failures {
		fmt.Printf("  failed change %d: %s\n", f.Number, f.Reason)
	}
	if run.CommitID != "" {
		fmt.Printf("  commit %s\n", run.CommitID)
	}
}

var preserveCmd = &cobra.Command{
	Use:   "preserve",
	Short: "Fetch changes from Gerrit and commit them into the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreserve(cmd, false)
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export changes to a plain directory without git history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreserve(cmd, true)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		t, err := tracker.NewTrackerFromConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening tracker: %w", err)
		}
		defer t.Close()

		runs, err := t.Runs(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("%s  %s  %s  processed=%d skipped=%d failed=%d\n",
				run.StartedAt.Format("2006-01-02 15:04:05"),
				string(run.Phase),
				duration,
				run.Processed,
				run.Skipped,
				len(run.Failures),
			)
		}
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}

		cfg := config.NewConfig(paths.Base)
		if err := config.Init(paths.Config, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.Config)
		fmt.Printf("Base Dir: %s\n", paths.Base)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("resolving default paths: %w", err)
		}

		cfg, err := config.ReadFromFile(paths.Config)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.Config)
		fmt.Printf("Gerrit URL:  %s\n", cfg.Gerrit.URL)
		fmt.Printf("Query:       %s\n", cfg.Archive.Query)
		fmt.Printf("Repo Path:   %s\n", cfg.Archive.RepoPath)
		fmt.Printf("Branch:      %s\n", cfg.Archive.Branch)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		return nil
	},
}

var configSetPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Store the Gerrit password in the encrypted secret store",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		store, err := secret.NewStoreFromConfig(cfg.Secrets)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("secret store disabled in config (secrets.type = none)")
		}

		if !store.IsConfigured() {
			passphrase, err := secret.PromptPassword("New secret store passphrase")
			if err != nil {
				return err
			}
			confirm, err := secret.PromptPassword("Confirm passphrase")
			if err != nil {
				return err
			}
			if passphrase != confirm {
				return fmt.Errorf("passphrases do not match")
			}
			if err := store.Setup(passphrase); err != nil {
				return fmt.Errorf("setting up secret store: %w", err)
			}
		}

		password, err := secret.PromptPassword("Gerrit HTTP password")
		if err != nil {
			return err
		}
		if err := store.SetPassword(password); err != nil {
			return fmt.Errorf("storing password: %w", err)
		}

		fmt.Println("Password stored.")
		return nil
	},
}

func init() {
	addPreserveFlags(preserveCmd)
	preserveCmd.Flags().Bool("export-only", false, "Write artifacts without a git repository")
	addPreserveFlags(exportCmd)

	runsCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	runsCmd.Flags().String("config", "", "Config file path")

	configSetPasswordCmd.Flags().String("config", "", "Config file path")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetPasswordCmd)

	rootCmd.AddCommand(preserveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
}
