package app

import (
	"context"
	"fmt"
)

// Migrate applies the embedded schema.
func (a *App) Migrate(ctx context.Context) error {
	store, closeStore, err := a.requireStore(ctx, "migrate")
	if err != nil {
		return err
	}
	defer closeStore()

	applied, err := store.Migrate(ctx)
	for _, name := range applied {
		fmt.Fprintln(a.Out, "applied", name)
	}
	if err != nil {
		return err
	}
	a.Logger.Info().Int("migrations", len(applied)).Msg("schema up to date")
	return nil
}
