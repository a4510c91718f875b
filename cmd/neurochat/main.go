package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	rootCmd, err := NewRootCmd()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
