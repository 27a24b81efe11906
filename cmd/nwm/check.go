package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/couchcryptid/nwm-streamflow/internal/dataset"
	"github.com/couchcryptid/nwm-streamflow/internal/domain"
)

var checkFlags requestFlags

var cmdCheck = &Command{
	Name:      "check",
	UsageLine: "check [-reach id] [-variant v] [-date YYYYMMDD] [-hour H]",
	Short:     "verify that a forecast cycle is complete and readable",
	Long: `
Check opens every file of a forecast cycle and reports, phase by phase,
whether the cycle can be assembled: all keys exist and decode, each member's
time axis matches the lead times encoded in its keys, and, with -reach, the
reach is present with at least one non-missing value.

Point STORAGE_BACKEND=local at a directory filled by "nwm download" to check a
local mirror.
`,
	Flag: flag.NewFlagSet("check", flag.ContinueOnError),
}

func init() {
	cmdCheck.Run = runCheck
	checkFlags.register(cmdCheck.Flag, true)
}

// phase tracks pass/fail for one group of checks.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func runCheck(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	req, err := checkFlags.request()
	if err != nil {
		return err
	}
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	paths := e.layout.Build(req)
	keys := &phase{name: "object keys"}
	open := &phase{name: "dataset open"}
	axis := &phase{name: "time axis"}
	values := &phase{name: fmt.Sprintf("reach %d values", checkFlags.reach)}

	for g, group := range paths {
		expected := checkKeys(keys, group)

		ds, err := e.src.Opener.Open(ctx, group)
		if err != nil {
			open.errorf("group %d: %v", g+1, err)
			continue
		}
		checkAxis(axis, g+1, ds, expected)
		if checkFlags.reach > 0 {
			checkValues(ctx, values, g+1, ds, checkFlags.reach)
		}
		if err := ds.Close(); err != nil {
			e.logger.Warn("close dataset", "error", err)
		}
	}

	phases := []*phase{keys, open, axis}
	if checkFlags.reach > 0 {
		phases = append(phases, values)
	}
	return report(req, paths.Len(), phases)
}

// checkKeys parses every key back into its valid time.
func checkKeys(p *phase, group []string) []keyTime {
	out := make([]keyTime, 0, len(group))
	for _, k := range group {
		info, err := domain.ParseKey(k)
		if err != nil {
			p.errorf("%v", err)
			continue
		}
		out = append(out, keyTime{key: k, valid: info.ValidTime()})
	}
	return out
}

type keyTime struct {
	key   string
	valid time.Time
}

func checkAxis(p *phase, group int, ds *dataset.Dataset, expected []keyTime) {
	times := ds.Times()
	if len(times) != len(expected) {
		p.errorf("group %d: %d time steps, want %d", group, len(times), len(expected))
		return
	}
	for i, t := range times {
		if !t.Equal(expected[i].valid) {
			p.errorf("group %d: %s is valid at %s, key says %s", group, expected[i].key,
				t.UTC().Format(time.RFC3339), expected[i].valid.Format(time.RFC3339))
		}
	}
}

func checkValues(ctx context.Context, p *phase, group int, ds *dataset.Dataset, reach int64) {
	ts, err := ds.Series(ctx, reach, dataset.Streamflow)
	if err != nil {
		p.errorf("group %d: %v", group, err)
		return
	}
	missing := 0
	for _, pt := range ts {
		if math.IsNaN(pt.Flow) {
			missing++
		}
	}
	if missing == len(ts) {
		p.errorf("group %d: all %d values missing", group, missing)
	}
}

func report(req domain.ForecastRequest, files int, phases []*phase) error {
	fmt.Printf("=== %s t%sz %s: %d files ===\n\n", req.Date, req.StartHourString(), req.Variant, files)

	failed := 0
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			failed++
		}
		fmt.Printf("  %-24s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, msg := range p.errors {
			if i == 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-i)
				break
			}
			fmt.Printf("  %s\n", msg)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d phases failed", failed, len(phases))
	}
	return nil
}
