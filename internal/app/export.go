package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"flow-alerts/internal/model"
)

// Export renders the alert history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxAlerts = a.Config.ResolveMaxAlerts(opts.MaxAlerts)

	alerts, closeStore, err := a.openAlerts(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	history := alerts.List()
	if len(history) == 0 {
		a.Logger.Info().Msg("no alerts to export")
		return nil
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	if len(history) > opts.MaxAlerts {
		history = history[len(history)-opts.MaxAlerts:]
	}
	a.Logger.Info().Int("exported", len(history)).Msg("exporting alerts")

	if opts.CSVPath != "" {
		if err := writeAlertsCSV(opts.CSVPath, history); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeAlertsPNG(opts.PNGPath, history); err != nil {
			return err
		}
	}

	return nil
}

func writeAlertsCSV(path string, alerts []model.Alert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"timestamp", "id", "symbol", "type", "expiry_date", "total_value", "entries", "strike_min", "strike_max"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, alert := range alerts {
		min, max := alert.StrikeRange()
		record := []string{
			alert.Timestamp.UTC().Format(time.RFC3339),
			alert.ID,
			alert.Symbol,
			string(alert.Side),
			alert.ExpiryDate,
			alert.TotalValue.String(),
			strconv.Itoa(len(alert.Entries)),
			min.String(),
			max.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeAlertsPNG(path string, alerts []model.Alert) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(alerts))
	calls := make([]float64, 0, len(alerts))
	puts := make([]float64, 0, len(alerts))

	for _, alert := range alerts {
		x = append(x, alert.Timestamp)
		value := alert.TotalValue.InexactFloat64()
		if alert.Side == model.SideCall {
			calls = append(calls, value)
			puts = append(puts, 0)
		} else {
			calls = append(calls, 0)
			puts = append(puts, value)
		}
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Alert Value (USD)",
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Calls",
				XValues: x,
				YValues: calls,
			},
			chart.TimeSeries{
				Name:    "Puts",
				XValues: x,
				YValues: puts,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
