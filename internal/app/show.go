package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"flow-alerts/internal/alertstore"
)

// Show prints recent alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	alerts, closeStore, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	recent := alerts.Recent(alertstore.Query{
		Side:  opts.Side,
		Text:  opts.Text,
		Limit: opts.Limit,
	})
	if len(recent) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tSide\tExpiry\tTotal Value\tEntries\tStrikes")

	for _, alert := range recent {
		min, max := alert.StrikeRange()
		strikes := min.String()
		if !min.Equal(max) {
			strikes = fmt.Sprintf("%s-%s", min, max)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			alert.Timestamp.UTC().Format(time.RFC3339),
			alert.Symbol,
			strings.ToUpper(string(alert.Side)),
			sanitizeInline(alert.ExpiryDate),
			humanize.CommafWithDigits(alert.TotalValue.InexactFloat64(), 0),
			len(alert.Entries),
			strikes,
		)
	}

	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
