package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskboard/internal/api"
	"github.com/nhle/taskboard/internal/app"
	"github.com/nhle/taskboard/internal/cache"
	"github.com/nhle/taskboard/internal/credential"
	"github.com/nhle/taskboard/internal/model"
	"github.com/nhle/taskboard/internal/push"
	"github.com/nhle/taskboard/internal/session"
	"github.com/nhle/taskboard/internal/taskstore"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	// First run: write the defaults out so the user has a file to edit.
	if _, statErr := os.Stat(*configPath); os.IsNotExist(statErr) {
		if saveErr := model.SaveConfig(*configPath, cfg); saveErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not write default config: %v\n", saveErr)
		}
	}

	creds := credential.NewKeyring()
	sess := session.New(creds, session.DefaultTable)
	client := api.NewClient(cfg.Server.BaseURL, sess.Token)
	store := taskstore.New()
	transport := push.NewWebSocketTransport(cfg.Server.PushURL, sess.Token)

	// The snapshot cache is a convenience; the app runs without it.
	snapshots, err := cache.New(cfg.CachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: snapshot cache unavailable: %v\n", err)
		snapshots = nil
	}
	if snapshots != nil {
		defer snapshots.Close()
	}
	defer transport.Close()

	root := app.New(app.Deps{
		Config:    cfg,
		Session:   sess,
		Client:    client,
		Store:     store,
		Cache:     snapshots,
		Transport: transport,
	})

	p := tea.NewProgram(root, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running taskboard: %v\n", err)
		os.Exit(1)
	}
}
