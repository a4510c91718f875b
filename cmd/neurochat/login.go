package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var register bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			api, _, err := flags.apiClient(cfg)
			if err != nil {
				return err
			}

			ui := &input.UI{Writer: os.Stdout, Reader: os.Stdin}
			username, err := ui.Ask("Username", &input.Options{Required: true, Loop: true})
			if err != nil {
				return errors.Wrap(err, "read username")
			}
			password, err := ui.Ask("Password", &input.Options{Required: true, Mask: true, Loop: true})
			if err != nil {
				return errors.Wrap(err, "read password")
			}

			ctx := cmd.Context()
			if register {
				email, err := ui.Ask("Email", &input.Options{Required: true, Loop: true})
				if err != nil {
					return errors.Wrap(err, "read email")
				}
				if err := api.Register(ctx, username, email, password); err != nil {
					return err
				}
				fmt.Println("account created")
			}

			if err := api.Login(ctx, username, password); err != nil {
				return err
			}
			fmt.Println("logged in")
			return nil
		},
	}
	cmd.Flags().BoolVar(&register, "register", false, "create an account before logging in")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			tokens, err := flags.tokenStore(cfg)
			if err != nil {
				return err
			}
			if err := tokens.Clear(); err != nil {
				return err
			}
			fmt.Println("logged out")
			return nil
		},
	}
}
