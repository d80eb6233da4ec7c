package main

import (
	"os"

	"github.com/yigit/slotbook/internal/pkg/logger"
	"github.com/yigit/slotbook/internal/server"
)

// @title Slotbook API
// @version 1.0
// @description Weekly slot booking for students with an admin dashboard

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey AdminSession
// @in cookie
// @name admin_session
// @description Admin session cookie set by POST /auth/login

func main() {
	srv, err := server.NewServer()
	if err != nil {
		// The package logger is usable before configuration is loaded
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
