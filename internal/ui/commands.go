package ui

import (
	"context"
	"fmt"
	"log/slog"
)

// ConfigUpdater resolves pending core config updates.
type ConfigUpdater interface {
	AcceptConfigUpdate(ctx context.Context) error
	RefuseConfigUpdate(ctx context.Context) error
}

// ConfigUpdateCommands forwards accept/refuse commands to the interface and
// hides the alert once the interface has answered.
type ConfigUpdateCommands struct {
	updater ConfigUpdater
	view    *View
	logger  *slog.Logger
}

// NewConfigUpdateCommands creates a CommandHandler for config update
// commands.
func NewConfigUpdateCommands(updater ConfigUpdater, view *View, logger *slog.Logger) *ConfigUpdateCommands {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigUpdateCommands{updater: updater, view: view, logger: logger}
}

// HandleCommand implements CommandHandler.
func (c *ConfigUpdateCommands) HandleCommand(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Type {
	case CommandAcceptConfigUpdate:
		err = c.updater.AcceptConfigUpdate(ctx)
	case CommandRefuseConfigUpdate:
		err = c.updater.RefuseConfigUpdate(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	if err != nil {
		return err
	}

	c.logger.Info("config update resolved", "command", cmd.Type)
	c.view.HideConfigAlert()
	return nil
}
