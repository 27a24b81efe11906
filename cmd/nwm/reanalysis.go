package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/nwm-streamflow/internal/config"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
	"github.com/couchcryptid/nwm-streamflow/internal/forecast"
)

var (
	reanReach    int64
	reanStart    string
	reanEnd      string
	reanFreq     string
	reanSource   string
	reanAnalysis string
	reanFormat   string
	reanList     bool
)

var cmdReanalysis = &Command{
	Name:      "reanalysis",
	UsageLine: "reanalysis -reach id -start date -end date [-freq 1H] [-source archive|v2] [-list]",
	Short:     "read retrospective streamflow for one reach",
	Long: `
Reanalysis resolves the retrospective CHRTOUT files between -start and -end
(inclusive) at -freq and prints the reach's series.

Frequencies are a count and a unit: min or T (minutes), H or hr (hours),
D (days), W (weeks). "3H" is every three hours; a bare unit means one.

The archive source lists the nwm-archive bucket year by year and keeps only
files that exist. The v2 source builds national-water-model-v2 keys directly
under -analysis (full_physics or long_range) without listing.

The two sources live with different providers: archive is read through
REANALYSIS_BACKEND (default s3) and v2 through REANALYSIS_ALT_BACKEND
(default gcs). STORAGE_BACKEND does not apply here.

With -list the resolved keys are printed instead of the series.
`,
	Flag: flag.NewFlagSet("reanalysis", flag.ContinueOnError),
}

func init() {
	cmdReanalysis.Run = runReanalysis
	fs := cmdReanalysis.Flag
	fs.Int64Var(&reanReach, "reach", 0, "reach identifier (comID)")
	fs.StringVar(&reanStart, "start", "", "first time, e.g. 2010-01-01 or 2010-01-01 06:00")
	fs.StringVar(&reanEnd, "end", "", "last time, inclusive")
	fs.StringVar(&reanFreq, "freq", "1H", "step between files")
	fs.StringVar(&reanSource, "source", "archive", "archive (listed) or v2 (constructed)")
	fs.StringVar(&reanAnalysis, "analysis", domain.FullPhysics, "v2 directory: full_physics or long_range")
	fs.StringVar(&reanFormat, "format", "json", "output format: json or csv")
	fs.BoolVar(&reanList, "list", false, "print resolved keys only")
}

func runReanalysis(ctx context.Context, args []string) error {
	if len(args) != 0 || reanStart == "" || reanEnd == "" || (reanReach <= 0 && !reanList) {
		return errUsage
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	backend, err := reanalysisBackend(cfg, reanSource)
	if err != nil {
		return err
	}
	e, err := openEnv(ctx, cfg, backend)
	if err != nil {
		return err
	}
	defer e.Close()

	var keys []string
	switch reanSource {
	case "archive":
		keys, err = domain.ArchiveResolver{
			Lister:    e.store,
			Bucket:    e.cfg.ReanalysisBucket,
			Marker:    e.cfg.ReanalysisMarker,
			Extension: e.cfg.ReanalysisExtension,
		}.Resolve(ctx, reanStart, reanEnd, reanFreq)
	case "v2":
		keys, err = domain.DirectResolver{
			Bucket:   e.cfg.ReanalysisAltBucket,
			Analysis: reanAnalysis,
			Suffix:   e.cfg.ReanalysisMarker + "_" + e.cfg.ReanalysisExtension,
		}.Resolve(reanStart, reanEnd, reanFreq)
	}
	if err != nil {
		return err
	}

	if reanList {
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	}

	series, err := forecast.Reanalysis(ctx, e.src, keys, reanReach)
	if err != nil {
		return err
	}
	if reanFormat == "csv" {
		return writeCSV(os.Stdout, appendRows(nil, "reanalysis", series))
	}
	return writeJSON(os.Stdout, series)
}

// reanalysisBackend returns the storage backend that hosts source.
func reanalysisBackend(cfg *config.Config, source string) (string, error) {
	switch source {
	case "archive":
		return cfg.ReanalysisBackend, nil
	case "v2":
		return cfg.ReanalysisAltBackend, nil
	default:
		return "", fmt.Errorf("unknown source %q", source)
	}
}
