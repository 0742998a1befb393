package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every command that touches storage.
type globalFlags struct {
	configPath string
	internal   string
	sdCard     string
	otg        string
	logLevel   string
	yes        bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "safops",
		Short: "Storage-aware file operations",
		Long: `safops copies, moves, deletes and renames files across internal storage,
a removable SD card and OTG devices. Removable storage is only written through a
document tree the user grants access to, the way a mobile platform requires.`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML file persisting grants and settings (default: $SAFOPS_CONFIG_PATH, else in memory)")
	pf.StringVar(&flags.internal, "internal", "", "internal storage root (default: home directory)")
	pf.StringVar(&flags.sdCard, "sd", "", "SD card root (default: detected from the environment)")
	pf.StringVar(&flags.otg, "otg", "", "directory served as the OTG device")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: trace, debug, info, warn, error (default: $SAFOPS_LOG_LEVEL)")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "grant storage access without prompting")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLsCmd(flags))
	rootCmd.AddCommand(newSizeCmd(flags))
	rootCmd.AddCommand(newDeleteCmd(flags))
	rootCmd.AddCommand(newCopyCmd(flags))
	rootCmd.AddCommand(newMoveCmd(flags))
	rootCmd.AddCommand(newRenameCmd(flags))
	rootCmd.AddCommand(newMkdirCmd(flags))

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  `Print the version number of safops`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "safops version %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
