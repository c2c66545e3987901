package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/frpdeck/internal/auth"
)

func main() {
	root := buildRoot(os.Stdout)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds the persistent flags shared by every subcommand.
type GlobalFlags struct {
	ConfigPath string
	APIFlags
}

func buildRoot(out io.Writer) *cobra.Command {
	global := &GlobalFlags{}
	c := command{out: out, global: global}

	root := &cobra.Command{
		Use:   "frpdeck",
		Short: "Control panel for frpc tunnel clients",
		Long: `frpdeck keeps a set of frp server profiles, renders them into frpc
configuration files and supervises one frpc process per profile.

Examples:
  frpdeck serve --config frpdeck.toml   # run the daemon
  frpdeck start home                     # render and start profile "home"
  frpdeck status                         # every profile
  frpdeck logs home
  frpdeck status --api-url=https://nas:7800/api --ca-cert ca.pem`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	pf := root.PersistentFlags()
	pf.StringVar(&global.ConfigPath, "config", "", "path to TOML config file")
	pf.StringVar(&global.APIUrl, "api-url", "", "daemon API URL (default from config, else "+defaultAPIURL+")")
	pf.DurationVar(&global.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	pf.StringVar(&global.CACert, "ca-cert", "", "PEM CA bundle for an HTTPS daemon")
	pf.BoolVar(&global.Insecure, "insecure", false, "skip TLS certificate verification")
	pf.StringVar(&global.Token, "token", os.Getenv("FRPDECK_API_TOKEN"), "bearer token for an authenticated daemon")
	pf.StringVar(&global.User, "user", "", "basic auth user")
	pf.StringVar(&global.Password, "password", os.Getenv("FRPDECK_API_PASSWORD"), "basic auth password")

	root.AddCommand(
		createServeCommand(global),
		createStartCommand(c),
		createStopCommand(c),
		createStatusCommand(c),
		createLogsCommand(c),
		createRenderCommand(c),
		createProfilesCommand(c),
		createExportCommand(c),
		createImportCommand(c),
		createHashPasswordCommand(out),
	)
	return root
}

func createHashPasswordCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for [[server.auth.users]] password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, h)
			return nil
		},
	}
}

func createServeCommand(global *GlobalFlags) *cobra.Command {
	f := &ServeFlags{}
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the frpdeck daemon",
		Long: `Run the daemon: HTTP API, frpc supervision, health checks and metrics.
Configuration comes from the TOML file and FRPDECK_* environment variables.

Examples:
  frpdeck serve frpdeck.toml
  frpdeck serve --config frpdeck.toml --daemonize --pidfile /run/frpdeck.pid`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.ConfigPath = global.ConfigPath
			if len(args) > 0 {
				f.ConfigPath = args[0]
			}
			return runServe(cmd.Context(), *f)
		},
	}
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&f.PidFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon output when daemonized")
	return cmd
}

func createStartCommand(c command) *cobra.Command {
	var noRender bool
	cmd := &cobra.Command{
		Use:   "start <profile>",
		Short: "Render a profile and start its frpc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(cmd.Context(), args[0], noRender)
		},
	}
	cmd.Flags().BoolVar(&noRender, "no-render", false, "start from the config file already on disk")
	return cmd
}

func createStopCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <profile>",
		Short: "Kill a profile's frpc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(cmd.Context(), args[0])
		},
	}
}

func createStatusCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "status [profile]",
		Short: "Show the status of one or all profiles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return c.Status(cmd.Context(), id)
		},
	}
}

func createLogsCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "logs <profile>",
		Short: "Print the captured frpc output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logs(cmd.Context(), args[0])
		},
	}
}

func createRenderCommand(c command) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "render <profile>",
		Short: "Print the frpc configuration for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Render(cmd.Context(), args[0], write)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write the file on the daemon host and print its path")
	return cmd
}

func createProfilesCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Profiles(cmd.Context())
		},
	}
}

func createExportCommand(c command) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored profile set to a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Export(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "destination JSON file (required)")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
	return cmd
}

func createImportCommand(c command) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the stored profile set with a JSON file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Import(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "source JSON file (required)")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
	return cmd
}
