// Package regioninfo talks to the eBird API's region reference endpoint.
package regioninfo

import (
	"context"
	"encoding/json"
	"fmt"

	"ebird-barchart/internal/components/assert"
	"ebird-barchart/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ebird/regioninfo")

const (
	report_client_info = "client.info"

	apiTokenHeader = "X-eBirdApiToken"
)

// Info is a region metadata record, Raw is the response body exactly as
// it was received.
type Info struct {
	// Result is the human readable name of the region.
	Result string
	// HasResult is whether the record had a "result" field at all.
	HasResult bool
	Raw       json.RawMessage
}

type Client struct {
	Http *resty.Client
	tel  telemetry.API
}

// NewClient creates a client against `baseUrl` (ex. https://api.ebird.org/v2)
// authenticating with `apiKey`.
func NewClient(baseUrl, apiKey string, tel telemetry.API) *Client {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("region_info", tel)

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl)
	httpClient.SetHeader(apiTokenHeader, apiKey)
	httpClient.SetHeader("Accept", "application/json")
	telemetry.InstrumentResty(httpClient, "ebird/regioninfo/http", tel)

	return &Client{Http: httpClient, tel: tel}
}

// Info fetches the metadata of a region. Any failure is reported and
// yields nil, it is up to the caller to fall back to something sensible.
func (c *Client) Info(ctx context.Context, regionCode string) *Info {
	ctx, span := tracer.Start(ctx, "client:Info")
	defer span.End()
	span.SetAttributes(attribute.String("region", regionCode))

	res, err := c.Http.R().
		SetContext(ctx).
		SetPathParam("region", regionCode).
		Get("/ref/region/info/{region}")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		c.tel.ReportBroken(
			report_client_info,
			fmt.Errorf("fetch: %w", err),
			regionCode,
		)
		return nil
	}
	if res.IsError() {
		span.SetStatus(codes.Error, res.Status())
		c.tel.ReportBroken(
			report_client_info,
			fmt.Errorf("unexpected status: %s", res.Status()),
			regionCode,
		)
		return nil
	}

	info, err := parseInfo(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse")
		c.tel.ReportBroken(
			report_client_info,
			fmt.Errorf("parse: %w", err),
			regionCode,
		)
		return nil
	}
	return info
}

func parseInfo(body []byte) (*Info, error) {
	var fields map[string]json.RawMessage
	err := json.Unmarshal(body, &fields)
	if err != nil {
		return nil, err
	}

	info := &Info{Raw: json.RawMessage(body)}
	result, ok := fields["result"]
	if !ok {
		return info, nil
	}
	info.HasResult = true
	// non-string results are kept in Raw but have no usable name
	_ = json.Unmarshal(result, &info.Result)
	return info, nil
}
