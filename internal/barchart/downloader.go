package barchart

import (
	"context"
	"fmt"
	"io"
	"time"

	"ebird-barchart/internal/components/assert"
	"ebird-barchart/internal/components/chrono"
	"ebird-barchart/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_downloader_download     = "downloader.download"
	report_downloader_download_all = "downloader.download-all"
)

var meter = otel.Meter("barchart")
var downloadCounter, _ = meter.Int64Counter(
	"barchart.downloads",
	metric.WithDescription("Bar chart downloads by outcome."),
)

type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

type Options struct {
	Store   Store
	Fetcher DatasetFetcher
	// Clock defaults to chrono.StandardImpl.
	Clock chrono.API
	// Delay is the pause between two downloads of a batch.
	Delay time.Duration
	// Output receives human readable progress, nil discards it.
	Output io.Writer
}

type Downloader struct {
	store   Store
	fetcher DatasetFetcher
	clock   chrono.API
	delay   time.Duration
	out     io.Writer
	tel     telemetry.API
}

func NewDownloader(opts Options, tel telemetry.API) Downloader {
	assert.NotNil(opts.Fetcher)
	assert.NotNil(tel)

	clock := opts.Clock
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	return Downloader{
		store:   opts.Store,
		fetcher: opts.Fetcher,
		clock:   clock,
		delay:   opts.Delay,
		out:     out,
		tel:     telemetry.NewScopedAPI("barchart", tel),
	}
}

func (d Downloader) record(ctx context.Context, outcome Outcome) {
	downloadCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
}

// Download fetches the bar chart of a region and writes it to the store.
// An existing file is left alone unless `force` is set.
func (d Downloader) Download(ctx context.Context, regionCode string, force bool) (Outcome, error) {
	path := d.store.Path(regionCode)
	if d.store.Exists(regionCode) && !force {
		fmt.Fprintf(d.out, "File %s already exists, skipping download (use --force to override)\n", path)
		d.record(ctx, OutcomeSkipped)
		return OutcomeSkipped, nil
	}

	dataset, err := d.fetcher.Fetch(ctx, regionCode)
	if err != nil {
		d.record(ctx, OutcomeFailed)
		return OutcomeFailed, err
	}
	err = d.store.Write(regionCode, dataset)
	if err != nil {
		d.tel.ReportBroken(report_downloader_download, fmt.Errorf("write: %w", err), path)
		d.record(ctx, OutcomeFailed)
		return OutcomeFailed, fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(d.out, "Saved %s bar chart to %s\n", regionCode, path)
	d.record(ctx, OutcomeSucceeded)
	return OutcomeSucceeded, nil
}

// DownloadAll downloads every region in order, a failing region never stops
// the rest of the batch. Each region that required a request to be made is
// followed by a pause of the configured delay, except for the last one.
func (d Downloader) DownloadAll(ctx context.Context, regionCodes []string, force bool) Summary {
	fmt.Fprintf(d.out, "Starting batch download for %d regions...\n", len(regionCodes))
	fmt.Fprintf(d.out, "Output directory: %s\n", d.store.Dir)
	fmt.Fprintf(d.out, "Delay between requests: %s\n", d.delay)

	summary := Summary{Errors: map[string]error{}}

	for i, code := range regionCodes {
		if ctx.Err() != nil {
			d.tel.ReportWarning(report_downloader_download_all, ctx.Err(), "remaining", len(regionCodes)-i)
			break
		}

		fmt.Fprintf(d.out, "\n[%d/%d] Processing region: %s\n", i+1, len(regionCodes), code)

		outcome, err := d.Download(ctx, code, force)
		switch outcome {
		case OutcomeSkipped:
			summary.Skipped = append(summary.Skipped, code)
			continue
		case OutcomeSucceeded:
			summary.Succeeded = append(summary.Succeeded, code)
		case OutcomeFailed:
			fmt.Fprintf(d.out, "Failed to download %s: %v\n", code, err)
			d.tel.ReportWarning(report_downloader_download_all, err, code)
			summary.Failed = append(summary.Failed, code)
			summary.Errors[code] = err
		}

		if i < len(regionCodes)-1 && d.delay > 0 {
			fmt.Fprintf(d.out, "Waiting %s before next download...\n", d.delay)
			d.clock.Sleep(d.delay)
		}
	}

	d.tel.ReportCount("downloader.succeeded", int64(len(summary.Succeeded)))
	d.tel.ReportCount("downloader.failed", int64(len(summary.Failed)))
	return summary
}
