package cmd

import "github.com/spf13/cobra"

type rootOptions struct {
	configFile string
	envFile    string
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tempvc",
		Short:         "tempvc: join-to-create temporary voice channels for Discord",
		Long:          "tempvc watches trigger voice channels on a Discord server, spawns a numbered temporary channel for whoever joins one, and deletes it once it has stayed empty for a grace period.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/tempvc/config.toml)")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Dotenv file merged into the environment when present")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(opts),
		newStatusCmd(opts),
		newTemplatesCmd(opts),
		newTokenCmd(opts),
	)

	return rootCmd
}
