package app

import (
	"context"
	"fmt"
	"os"
)

// Clear wipes the persisted alert history.
func (a *App) Clear(ctx context.Context) error {
	alerts, closeStore, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	count := len(alerts.List())
	if err := alerts.Clear(ctx); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "cleared %d alerts\n", count)
	return nil
}
