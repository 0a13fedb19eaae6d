package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/genctl/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(exitGeneric)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "genctl",
		Short: "Run the CAN network and sensor config generators before a build",
		Long: "genctl resolves the generator checkouts next to the current project and runs\n" +
			"the CAN network autogen followed by the sensor config autogen.",
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		PersistentPreRunE: configureLogging,
		RunE:              runRun,
	}

	root.PersistentFlags().String("workdir", "", "Project directory (defaults to the current directory)")
	root.PersistentFlags().String("config", "", "Config file (defaults to <workdir>/genctl.toml when present)")
	root.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	root.PersistentFlags().Bool("quiet", false, "Only log errors")
	root.PersistentFlags().Bool("no-color", false, "Disable colored log output")
	addRunFlags(root)

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("genctl version %s\n", version))

	root.AddCommand(newRunCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newInitCmd())
	return root
}

func configureLogging(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")
	noColor, _ := cmd.Flags().GetBool("no-color")

	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	cfg.Out = cmd.ErrOrStderr()
	cfg.NoColor = noColor
	switch {
	case quiet:
		cfg.Level = zerolog.ErrorLevel
	case verbose:
		cfg.Level = zerolog.DebugLevel
	}
	logging.ConfigureWith(cfg)
	return nil
}
