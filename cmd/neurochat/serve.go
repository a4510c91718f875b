package main

import (
	"github.com/spf13/cobra"

	"github.com/go-go-golems/neurochat/pkg/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	var dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development stand-in for the NeuroChat backend",
		Long: `Run a local server implementing the NeuroChat wire contract with a canned
responder, so the client can be exercised offline end to end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := server.NewServer(server.Settings{Addr: addr, DBPath: dbPath}, nil)
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "neurochat-dev.db", "sqlite database path")
	return cmd
}
