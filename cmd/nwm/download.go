package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/couchcryptid/nwm-streamflow/internal/download"
)

var (
	downloadFlags requestFlags
	downloadDir   string
)

var cmdDownload = &Command{
	Name:      "download",
	UsageLine: "download -dir path [-variant v] [-date YYYYMMDD] [-hour H]",
	Short:     "copy every file of a forecast cycle to a local directory",
	Long: `
Download copies the files backing one forecast product into -dir, each under
its base name. Files already present are skipped. Transfers run in parallel
(DOWNLOAD_WORKERS, default twice the CPU count) and a failed file does not stop
the others; the command fails if any file is missing at the end.
`,
	Flag: flag.NewFlagSet("download", flag.ContinueOnError),
}

func init() {
	cmdDownload.Run = runDownload
	downloadFlags.register(cmdDownload.Flag, false)
	cmdDownload.Flag.StringVar(&downloadDir, "dir", "", "destination directory")
}

func runDownload(ctx context.Context, args []string) error {
	if len(args) != 0 || downloadDir == "" {
		return errUsage
	}
	req, err := downloadFlags.request()
	if err != nil {
		return err
	}
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	keys := e.layout.Build(req).Flatten()
	results, err := e.src.Downloader.Download(ctx, keys, downloadDir)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-10s %s: %v\n", r.Status, r.Key, r.Err)
			continue
		}
		fmt.Printf("%-10s %s\n", r.Status, r.Path)
	}
	fmt.Println(download.Summarize(results))
	return download.Verify(results, downloadDir)
}
