// Command monitor is a terminal dashboard for a running sketchroom server.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sketchroom/internal/auth"
	"sketchroom/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	baseURL := strings.TrimSpace(os.Getenv("SKETCHROOM_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}

	// The monitor signs its own short-lived operator token with the server secret.
	token, err := auth.NewJWTManager(secret, time.Hour).Generate(session.Profile{
		UserID:   "monitor",
		Username: "monitor",
	}, time.Now())
	if err != nil {
		return err
	}

	p := tea.NewProgram(newModel(newStatsClient(baseURL, token)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
