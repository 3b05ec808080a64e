package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"photons/internal/app"
	"photons/internal/config"
	"photons/internal/encryption"
	"photons/internal/photons"
	"photons/internal/vault"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// loadConfig reads the config file named by the application defaults.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults.ConfigPath, nil
}

// newApp creates a PhotonsApp for target. The caller must defer app.Close().
func newApp(cfg *config.Config, target, command string) (*app.PhotonsApp, error) {
	a, err := app.NewPhotonsApp(cfg, target, command, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "photons",
	Short:        "Import photos into a date-organized library without duplicates",
	SilenceUsage: true,
}

// import command
var importCmd = &cobra.Command{
	Use:   "import SOURCE TARGET",
	Short: "Import files from SOURCE into the library at TARGET",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		ext, _ := cmd.Flags().GetString("ext")
		if ext == "" {
			ext = cfg.Import.Extension
		}
		if cmd.Flags().Changed("follow-symlinks") {
			cfg.Import.FollowSymlinks, _ = cmd.Flags().GetBool("follow-symlinks")
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cfg, args[1], "import")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		summary, err := a.Import(args[0], photons.ImportOptions{Extension: ext, DryRun: dryRun})
		if summary != nil {
			printSummary(summary, dryRun)
		}
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		return nil
	},
}

// closeApp closes a and reports its error unless the command already failed.
func closeApp(a *app.PhotonsApp, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

func shortHash(h string) string {
	const n = 12
	if len(h) <= n {
		return h
	}
	return h[:n]
}

func printSummary(s *photons.ImportSummary, dryRun bool) {
	if dryRun {
		fmt.Printf("Dry run: %d file(s) would be imported\n", s.Planned)
	} else {
		fmt.Printf("Imported %d file(s) (%s)", s.Imported, humanize.Bytes(uint64(s.BytesCopied)))
		if s.Reimported > 0 {
			fmt.Printf(", %d reimported", s.Reimported)
		}
		fmt.Println()
	}
	fmt.Printf("Skipped %d duplicate(s), ignored %d file(s), %d failure(s)\n", s.Skipped, s.Ignored, s.Failed)
	if s.Failed > 0 {
		fmt.Println("See the log for the failed files.")
	}
}

// records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect and administer import records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list TARGET",
	Short: "List the records of a library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, args[0], "records list")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		records, err := a.Records()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records.")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, r := range records {
			enabled := "yes"
			if !r.ImportEnabled {
				enabled = "no"
			}
			rows = append(rows, []string{
				r.ID,
				r.RelativePath(),
				humanize.Bytes(uint64(r.OriginalLength)),
				shortHash(r.OriginalHash),
				enabled,
				r.ImportedAt.Local().Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Println(renderTable(os.Stdout,
			[]string{"ID", "Path", "Size", "Hash", "Enabled", "Imported"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight},
		))
		return nil
	},
}

func setImportEnabled(enabled bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, args[0], cmd.CommandPath())
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		if err := a.SetImportEnabled(args[1], enabled); err != nil {
			return err
		}
		state := "enabled"
		if !enabled {
			state = "disabled"
		}
		fmt.Printf("Record %s %s\n", args[1], state)
		return nil
	}
}

var recordsEnableCmd = &cobra.Command{
	Use:   "enable TARGET ID",
	Short: "Make a record block re-imports of its content again",
	Args:  cobra.ExactArgs(2),
	RunE:  setImportEnabled(true),
}

var recordsDisableCmd = &cobra.Command{
	Use:   "disable TARGET ID",
	Short: "Allow the content of a record to be imported again",
	Args:  cobra.ExactArgs(2),
	RunE:  setImportEnabled(false),
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history TARGET",
	Short: "View import history of a library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, args[0], "history")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No imports recorded.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			status := r.Status
			if r.DryRun {
				status += " (dry run)"
			}
			rows = append(rows, []string{
				"#" + strconv.FormatInt(r.ID, 10),
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Duration().Truncate(time.Millisecond).String(),
				r.SourceRoot,
				status,
				strconv.Itoa(r.Summary.Imported),
				strconv.Itoa(r.Summary.Skipped),
				strconv.Itoa(r.Summary.Failed),
				humanize.Bytes(uint64(r.Summary.BytesCopied)),
			})
		}
		fmt.Println(renderTable(os.Stdout,
			[]string{"Run", "Started", "Took", "Source", "Status", "Imported", "Skipped", "Failed", "Copied"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
		))
		return nil
	},
}

// tree command
var treeCmd = &cobra.Command{
	Use:   "tree TARGET",
	Short: "Show the recorded files of a library as a tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, args[0], "tree")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		records, err := a.Records()
		if err != nil {
			return err
		}
		tree := newRecordTree(a.Target())
		for _, r := range records {
			tree.Insert(r)
		}
		fmt.Print(tree.Render())
		return nil
	},
}

// store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Back up and restore the record store of a library",
}

var storeBackupCmd = &cobra.Command{
	Use:   "backup TARGET",
	Short: "Push a snapshot of the record store to the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, args[0], "store backup")
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		version, err := a.BackupStore()
		if err != nil {
			return err
		}
		fmt.Printf("Stored snapshot %s at version %d\n", a.StoreKey(), version)
		return nil
	},
}

var storeRestoreCmd = &cobra.Command{
	Use:   "restore TARGET",
	Short: "Restore the record store of a library from the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromKey, _ := cmd.Flags().GetString("from-key")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		var passphrase string
		if cfg.Encryption.Type == "age" {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		if err := app.RestoreStore(cfg, args[0], fromKey, passphrase, app.Options{Verbose: verbose}); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		target, _ := filepath.Abs(args[0])
		fmt.Printf("Record store restored into %s\n", target)
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Base Dir:         %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:          %s\n", cfg.LogDir)
		fmt.Printf("Extension:        %s\n", cfg.Import.Extension)
		fmt.Printf("Follow Symlinks:  %t\n", cfg.Import.FollowSymlinks)
		fmt.Printf("Placement:        %s (fallback %s)\n", cfg.Placement.Layout, cfg.Placement.Fallback)
		fmt.Printf("Database:         %s %s\n", cfg.Database.Type, cfg.Database.FileName)
		fmt.Printf("Encryption:       %s\n", cfg.Encryption.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:            %s (%s)\n", v.Name, v.Type)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Printf("\nConfiguration problems:\n%v\n", err)
		}
		return nil
	},
}

var configVaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vaults",
}

var configVaultCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that every configured vault is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Vaults) == 0 {
			fmt.Println("No vaults configured.")
			return nil
		}

		var failed bool
		for _, vc := range cfg.Vaults {
			v, err := vault.NewVaultFromConfig(vc)
			if err == nil {
				err = v.ValidateSetup()
			}
			if err != nil {
				failed = true
				fmt.Printf("%s: %v\n", vc.Name, err)
				continue
			}
			fmt.Printf("%s: ok\n", vc.Name)
		}
		if failed {
			return fmt.Errorf("vault check failed")
		}
		return nil
	},
}

var configEncryptionCmd = &cobra.Command{
	Use:   "encryption",
	Short: "Manage snapshot encryption",
}

var configEncryptionInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate an age key pair and encrypt store snapshots with it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		cfg.Encryption.Type = "age"
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if enc.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Encryption.PublicKeyPath)
		}

		passphrase, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug output on the console")

	// import
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("ext", "", "File extension to import (default from config)")
	importCmd.Flags().Bool("follow-symlinks", false, "Follow symbolic links in SOURCE")
	importCmd.Flags().Bool("dry-run", false, "Show what would be imported without copying")

	// records subcommands
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsEnableCmd)
	recordsCmd.AddCommand(recordsDisableCmd)

	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	rootCmd.AddCommand(treeCmd)

	// store subcommands
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeBackupCmd)
	storeCmd.AddCommand(storeRestoreCmd)
	storeRestoreCmd.Flags().String("from-key", "", "Snapshot key to restore when the library moved")

	// config subcommands
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configVaultCmd)
	configVaultCmd.AddCommand(configVaultCheckCmd)
	configCmd.AddCommand(configEncryptionCmd)
	configEncryptionCmd.AddCommand(configEncryptionInitCmd)
}
