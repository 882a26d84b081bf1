package commands

import (
	"github.com/spf13/cobra"

	"github.com/gateprov/gateprov/internal/infrastructure/config"
	"github.com/gateprov/gateprov/internal/server"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the provisioning HTTP service",
		Long: `Run the provisioning HTTP service.

The service exposes workflow runs, draft validation, registry inspection,
health, and Prometheus metrics. Configuration comes from environment
variables; flags override the registry path and listen port.`,
		Example: `  # Serve with the default registry file
  gateprov serve

  # Serve a specific registry on a specific port
  gateprov serve -r /etc/gateprov/instances.yaml -p 9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadOrDefault()
			cfg.Registry.Path = registryPath
			if port != "" {
				cfg.Server.Port = port
			}
			if verbose {
				cfg.Logging.Development = true
			}

			srv, err := server.NewServer(cfg)
			if err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			select {
			case <-cmd.Context().Done():
				return srv.Close()
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides environment)")

	return cmd
}
