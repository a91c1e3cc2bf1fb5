package cli

import (
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "config/config.yaml"

var (
	port       string
	configPath string
)

// Execute runs the arith-live command tree.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cmd := &cobra.Command{
		Use:          "arith-live",
		Short:        "Host live arithmetic quiz sessions over websocket and polling",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&port, "port", "", "HTTP listen port; beats server.port and PORT")
	flags.StringVar(&configPath, "config", cfgPath, "YAML file with server, redis, postgres, sessions and log sections")
	cmd.AddCommand(NewStartCmd(&configPath, &port), NewMigrateCmd(&configPath))
	return cmd
}
