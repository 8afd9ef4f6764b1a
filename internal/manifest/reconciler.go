package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ebird-barchart/internal/components/assert"
	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/internal/config"
	"ebird-barchart/internal/ebird/regioninfo"

	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	report_reconciler_load  = "reconciler.load"
	report_reconciler_fetch = "reconciler.fetch"
	report_reconciler_save  = "reconciler.save"
)

var (
	ErrDirNotFound        = errors.New("bar chart directory does not exist")
	ErrMalformedManifest  = errors.New("malformed manifest")
	ErrUnreadableManifest = errors.New("unreadable manifest")
)

// InfoSource is where region info records come from, it returns nil
// when a record couldn't be fetched.
type InfoSource interface {
	Info(ctx context.Context, regionCode string) *regioninfo.Info
}

type ReconcilerOptions struct {
	Dir    string
	ApiKey string
	Source InfoSource
	// ResetMalformed makes a manifest that cannot be read or parsed be
	// replaced by an empty one instead of failing the reconciliation.
	ResetMalformed bool
	// Output receives human readable progress, nil discards it.
	Output io.Writer
}

// Result describes what a reconciliation did.
type Result struct {
	// Files is the amount of region files found.
	Files int
	// Fetched are the codes whose info was added, in the order they were fetched.
	Fetched []string
	// Fallback are the codes (a subset of Fetched) stored without a region info record.
	Fallback []string
	// Written is whether the manifest file was rewritten.
	Written  bool
	Manifest Manifest
}

type Reconciler struct {
	opts ReconcilerOptions
	out  io.Writer
	tel  telemetry.API
}

func NewReconciler(opts ReconcilerOptions, tel telemetry.API) Reconciler {
	assert.NotNil(opts.Source)
	assert.NotNil(tel)

	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	return Reconciler{
		opts: opts,
		out:  out,
		tel:  telemetry.NewScopedAPI("manifest", tel),
	}
}

// RegionFiles lists the region codes of every `<code>.json` in dir except
// the manifest itself, sorted.
func RegionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == FileName || filepath.Ext(name) != ".json" {
			continue
		}
		// files written atomically are staged as hidden temporaries
		if strings.HasPrefix(name, ".") {
			continue
		}
		codes = append(codes, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(codes)
	return codes, nil
}

func (r Reconciler) load(path string) (Manifest, error) {
	manifest, exists, err := Load(path)
	if err == nil {
		if exists {
			fmt.Fprintf(r.out, "Loaded existing manifest with %d regions\n", len(manifest))
		}
		return manifest, nil
	}
	recoverable := errors.Is(err, ErrMalformedManifest) || errors.Is(err, ErrUnreadableManifest)
	if recoverable && r.opts.ResetMalformed {
		r.tel.ReportWarning(report_reconciler_load, err, "starting from an empty manifest")
		fmt.Fprintf(r.out, "Could not read existing manifest, starting over: %v\n", err)
		return Manifest{}, nil
	}
	r.tel.ReportBroken(report_reconciler_load, err, path)
	return nil, err
}

// Reconcile adds an entry to the manifest for every region file that doesn't
// have one yet. Existing entries are never changed and the manifest is only
// written if something was added.
func (r Reconciler) Reconcile(ctx context.Context) (Result, error) {
	err := config.Config{ApiKey: r.opts.ApiKey}.RequireAPIKey()
	if err != nil {
		return Result{}, err
	}

	info, err := os.Stat(r.opts.Dir)
	if err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrDirNotFound, r.opts.Dir)
	}

	path := filepath.Join(r.opts.Dir, FileName)
	manifest, err := r.load(path)
	if err != nil {
		return Result{}, err
	}
	result := Result{Manifest: manifest}

	codes, err := RegionFiles(r.opts.Dir)
	if err != nil {
		r.tel.ReportBroken(report_reconciler_load, fmt.Errorf("list region files: %w", err), r.opts.Dir)
		return Result{}, err
	}
	result.Files = len(codes)
	if len(codes) == 0 {
		fmt.Fprintf(r.out, "No bar chart JSON files found in %s\n", r.opts.Dir)
		return result, nil
	}

	var missing []string
	for _, code := range codes {
		if !manifest.Has(code) {
			missing = append(missing, code)
		}
	}
	if len(missing) == 0 {
		fmt.Fprintf(r.out, "All %d regions already present in manifest\n", len(codes))
		return result, nil
	}

	fmt.Fprintf(r.out, "Found %d JSON files. Need to fetch info for %d new regions...\n", len(codes), len(missing))

	for _, code := range missing {
		if ctx.Err() != nil {
			// nothing is written so an interrupted run leaves the manifest as it was
			return Result{}, ctx.Err()
		}

		fmt.Fprintf(r.out, "Fetching info for region: %s\n", code)
		regionInfo := r.opts.Source.Info(ctx, code)
		result.Fetched = append(result.Fetched, code)

		if regionInfo != nil && regionInfo.HasResult {
			manifest.SetInfo(code, regionInfo.Raw)
			fmt.Fprintf(r.out, "  %s: %s\n", code, regionInfo.Result)
			continue
		}
		manifest.SetFallback(code)
		result.Fallback = append(result.Fallback, code)
		r.tel.ReportWarning(report_reconciler_fetch, "using region code as fallback name", code)
		fmt.Fprintf(r.out, "  %s: Using region code as fallback name\n", code)
	}

	err = manifest.Save(path)
	if err != nil {
		r.tel.ReportBroken(report_reconciler_save, err, path)
		return Result{}, fmt.Errorf("save manifest: %w", err)
	}
	result.Written = true
	r.tel.ReportCount("reconciler.regions", int64(len(manifest)))

	fmt.Fprintf(r.out, "Updated manifest with %d new regions\n", len(missing))
	fmt.Fprintf(r.out, "Saved manifest to %s\n", path)
	fmt.Fprintf(r.out, "Manifest now contains %d regions total\n", len(manifest))
	return result, nil
}

// RenderRegions writes the regions of a manifest as a table.
func RenderRegions(w io.Writer, m Manifest) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Code", "Name", "Type"})
	for _, region := range m.Regions() {
		t.AppendRow(table.Row{region.Code, region.Name, region.Type})
	}
	t.Render()
}
