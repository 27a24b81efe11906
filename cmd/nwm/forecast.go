package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/forecast"
)

var (
	forecastFlags  requestFlags
	forecastFormat string
)

var cmdForecast = &Command{
	Name:      "forecast",
	UsageLine: "forecast -reach id [-variant v] [-date YYYYMMDD] [-hour H] [-format json|csv]",
	Short:     "assemble a streamflow forecast for one reach",
	Long: `
Forecast reads the analysis assimilation anchor and the requested product for
one reach and prints the merged series. For medium_range every ensemble member
is printed along with the ensemble mean. Missing values print as null (json)
or an empty field (csv).
`,
	Flag: flag.NewFlagSet("forecast", flag.ContinueOnError),
}

func init() {
	cmdForecast.Run = runForecast
	forecastFlags.register(cmdForecast.Flag, true)
	cmdForecast.Flag.StringVar(&forecastFormat, "format", "json", "output format: json or csv")
}

func runForecast(ctx context.Context, args []string) error {
	if len(args) != 0 || forecastFlags.reach <= 0 {
		return errUsage
	}
	req, err := forecastFlags.request()
	if err != nil {
		return err
	}
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	f, err := forecast.NewAssembler(e.src).Assemble(ctx, req)
	if err != nil {
		return err
	}

	if forecastFormat == "csv" {
		rows := make([]seriesRow, 0)
		for _, m := range f.Members {
			rows = appendRows(rows, m.Label, m.Series)
		}
		rows = appendRows(rows, "mean", f.Mean)
		return writeCSV(os.Stdout, rows)
	}
	return writeJSON(os.Stdout, f)
}

type seriesRow struct {
	label string
	point domain.Point
}

func appendRows(rows []seriesRow, label string, ts domain.TimeSeries) []seriesRow {
	for _, p := range ts {
		rows = append(rows, seriesRow{label: label, point: p})
	}
	return rows
}

func writeCSV(w io.Writer, rows []seriesRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"series", "time", "streamflow"}); err != nil {
		return err
	}
	for _, r := range rows {
		flow := ""
		if !math.IsNaN(r.point.Flow) {
			flow = strconv.FormatFloat(r.point.Flow, 'f', -1, 64)
		}
		if err := cw.Write([]string{r.label, r.point.Time.Format(time.RFC3339), flow}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
