package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mactime-go/internal/app"
	"mactime-go/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mactime: %v\n", err)
		os.Exit(app.ExitCode(err))
	}
}

// loadConfig reads the config file on top of the defaults. The --config flag
// overrides MACTIME_CONFIG_PATH.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	if err := app.LoadEnvFile(); err != nil {
		return nil, "", err
	}

	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	path := defaults["config_path"]
	if override, _ := cmd.Flags().GetString("config"); override != "" {
		path = override
	}

	cfg, err := config.ReadFromFile(path, config.NewConfig(defaults["base_dir"]))
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, path, nil
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("bodyfile") {
		cfg.Input.Path, _ = flags.GetString("bodyfile")
	}
	if flags.Changed("strict") {
		cfg.Input.Strict, _ = flags.GetBool("strict")
	}
	if flags.Changed("from-timezone") {
		cfg.Time.From, _ = flags.GetString("from-timezone")
	}
	if flags.Changed("to-timezone") {
		cfg.Time.To, _ = flags.GetString("to-timezone")
	}
	if flags.Changed("output") {
		cfg.Output.Path, _ = flags.GetString("output")
	}
	if flags.Changed("keep-name-collisions") {
		cfg.Output.KeepNameCollisions, _ = flags.GetBool("keep-name-collisions")
	}

	// -d wins over -j.
	if json, _ := flags.GetBool("json"); json {
		cfg.Output.Format = "json"
	}
	if csv, _ := flags.GetBool("csv"); csv {
		cfg.Output.Format = "csv"
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}

	verbose, _ := flags.GetCount("verbose")
	quiet, _ := flags.GetBool("quiet")
	if verbose > 0 || quiet {
		level, err := app.ParseLevel(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("%w: %w", app.ErrConfig, err)
		}
		cfg.Log.Level = app.LevelName(app.AdjustLevel(level, verbose, quiet))
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// readPassphrase prompts on the terminal without echo. Without a terminal the
// passphrase is the first line of stdin.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:   "mactime",
	Short: "Build a MACB timeline from a bodyfile",
	Long: `mactime reads a bodyfile (as written by fls or similar tools), correlates
the modified, accessed, changed and born timestamps of every record and
prints one timeline entry per distinct timestamp, sorted by time and name.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTimeline(cmd)
	},
}

func runTimeline(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := app.NewMactimeApp(ctx, cfg, app.Env{})
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	_, err = a.Run(ctx)
	return err
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		path := defaults["config_path"]
		if override, _ := cmd.Flags().GetString("config"); override != "" {
			path = override
		}

		if err := config.Init(path, config.NewConfig(defaults["base_dir"])); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("# Configuration from %s\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair encrypted timelines are written to",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		if term.IsTerminal(int(os.Stdin.Fd())) {
			confirm, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return errors.New("passphrases do not match")
			}
		}

		if err := app.InitKeys(cfg.Encryption, passphrase); err != nil {
			return err
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt an encrypted timeline to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		w := bufio.NewWriter(os.Stdout)
		if err := app.Decrypt(cfg.Encryption, passphrase, f, w); err != nil {
			return err
		}
		return w.Flush()
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Access uploaded timelines",
}

var vaultGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Write a timeline stored in the vault to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signalContext(cmd)
		defer stop()

		w := bufio.NewWriter(os.Stdout)
		if err := app.FetchArtifact(ctx, cfg.Vault, args[0], w); err != nil {
			return err
		}
		return w.Flush()
	},
}

// addRunFlags registers the flags of a timeline run on cmd.
func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("bodyfile", "b", "-", "bodyfile to read, - for stdin")
	flags.StringP("format", "F", "txt", "output format: txt, csv, json or sqlite")
	flags.BoolP("csv", "d", false, "output as csv (same as --format csv, wins over -j)")
	flags.BoolP("json", "j", false, "output as json lines (same as --format json)")
	flags.StringP("from-timezone", "f", "UTC", "time zone the bodyfile was recorded in")
	flags.StringP("to-timezone", "t", "UTC", "time zone to render timestamps in")
	flags.StringP("output", "o", "-", "output file, - for stdout")
	flags.Bool("strict", false, "abort on the first malformed line")
	flags.Bool("keep-name-collisions", false, "keep every entry when names collide at the same timestamp")
	flags.CountP("verbose", "v", "more diagnostics, repeat for debug output")
	flags.BoolP("quiet", "q", false, "only report errors")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default $MACTIME_CONFIG_PATH or ~/.config/mactime.toml)")

	addRunFlags(rootCmd)

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// vault subcommands
	vaultCmd.AddCommand(vaultGetCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(vaultCmd)
}
