// Command pipelinetui runs the live queue dashboard against a running
// pipeline API server.
package main

import (
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"video-pipeline/internal/tui"
)

func main() {
	apiBaseURL := os.Getenv("PIPELINE_API_URL")
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:8080"
	}

	model := tui.InitialModel(apiBaseURL)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}
