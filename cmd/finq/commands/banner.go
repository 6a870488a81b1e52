package commands

import (
	"fmt"

	"github.com/pterm/pterm"

	"github.com/teranos/FINQ/am"
	"github.com/teranos/FINQ/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(cfg *am.Config, questions bool) {
	pterm.DefaultHeader.WithFullWidth().Println("FINQ " + version.Get().String())

	storage := cfg.GetDatabasePath()
	if cfg.Database.Driver == "mysql" {
		storage = "mysql"
	}

	model := "disabled (set OPENROUTER_API_KEY or enable local_inference)"
	if questions {
		model = cfg.OpenRouter.Model
		if cfg.LocalInference.Enabled {
			model = cfg.LocalInference.Model + " (local)"
		}
	}

	drop := "off"
	if cfg.Ingest.DropDir != "" {
		drop = fmt.Sprintf("%s → %s", cfg.Ingest.DropDir, cfg.Ingest.DefaultDataset)
	}

	_ = pterm.DefaultTable.WithData(pterm.TableData{
		{"Listening", fmt.Sprintf("http://localhost:%d", cfg.GetServerPort())},
		{"Database", storage},
		{"Model", model},
		{"Drop directory", drop},
	}).Render()
	pterm.Println()
}
