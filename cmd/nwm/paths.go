package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/couchcryptid/nwm-streamflow/internal/config"
)

var pathsFlags requestFlags

var cmdPaths = &Command{
	Name:      "paths",
	UsageLine: "paths [-variant v] [-date YYYYMMDD] [-hour H] [-offset N]",
	Short:     "print the object keys of a forecast cycle",
	Long: `
Paths prints the bucket keys that back one forecast product, one per line, in
lead-time order. Medium range members are printed one after another. No
storage is contacted.
`,
	Flag: flag.NewFlagSet("paths", flag.ContinueOnError),
}

func init() {
	cmdPaths.Run = runPaths
	pathsFlags.register(cmdPaths.Flag, false)
}

func runPaths(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	req, err := pathsFlags.request()
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	for _, p := range layoutFromConfig(cfg).Build(req).Flatten() {
		fmt.Println(p)
	}
	return nil
}
