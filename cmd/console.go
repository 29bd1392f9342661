package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/desertthunder/spotskill/internal/ui"
	"github.com/urfave/cli/v3"
)

// Console launches the interactive terminal UI that feeds typed commands through the skill.
func (r *Runner) Console(ctx context.Context, cmd *cli.Command) error {
	logPath := cmd.String("log-file")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p, err := r.pipeline(ctx, nil)
	if err != nil {
		return err
	}
	p.refresher.Start(ctx, shared.Duration(r.config.Skill.RefreshInterval, 5*time.Minute))

	room := cmd.String("room")
	if room == "" {
		room = r.config.Skill.DefaultRoom
	}

	model := ui.NewModel(ctx, p.skill, p.cache, models.NormalizeRoom(room), r.config.Skill.Name)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running console: %w", err)
	}

	return nil
}
