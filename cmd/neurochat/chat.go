package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/neurochat/pkg/chat"
	"github.com/go-go-golems/neurochat/pkg/chat/reveal"
	"github.com/go-go-golems/neurochat/pkg/ui"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat screen",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			api, _, err := flags.apiClient(cfg)
			if err != nil {
				return err
			}

			coord := chat.NewCoordinator(api, log.Logger,
				chat.WithExchangeTimeout(cfg.RequestTimeout.Std()),
				chat.WithAnimator(&reveal.Animator{
					CharInterval:  cfg.RevealInterval.Std(),
					BlinkInterval: cfg.BlinkInterval.Std(),
				}),
			)
			defer func() { _ = coord.Close() }()

			ctx := cmd.Context()
			if sessionID != "" {
				if err := coord.OpenSession(ctx, sessionID); err != nil {
					return err
				}
			}

			model, err := ui.NewModel(ctx, coord)
			if err != nil {
				return errors.Wrap(err, "build chat UI")
			}
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil {
				return errors.Wrap(err, "run chat UI")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "open a specific session on startup")
	return cmd
}
