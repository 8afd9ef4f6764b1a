// Package barchartweb logs into the eBird website with a username/password
// and downloads bar chart exports.

package barchartweb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strconv"

	"ebird-barchart/internal/components/assert"
	"ebird-barchart/internal/components/chrono"
	"ebird-barchart/internal/components/telemetry"
	"ebird-barchart/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("ebird/barchartweb")

const (
	report_client_login     = "client.login"
	report_session_barchart = "session.barchart"
)

var ErrInvalidCredentials = errors.New("incorrect username or password")

type Client struct {
	WebUrl   *url.URL
	LoginUrl *url.URL
	dump     restyutil.Dumper
	clock    chrono.API
	tel      telemetry.API
}

type ClientOptions struct {
	// WebUrl is the base url bar chart exports are requested from.
	WebUrl string
	// LoginUrl is the login page, it is expected to redirect back to WebUrl once logged in.
	LoginUrl string
	// Dump optionally records the http traffic of every session.
	Dump restyutil.Dumper
	// Clock decides the last year of the exports, it defaults to chrono.StandardImpl.
	Clock chrono.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.WebUrl)
	assert.NotEmptyStr(opts.LoginUrl)

	webUrl, err := url.Parse(opts.WebUrl)
	if err != nil {
		return nil, fmt.Errorf("parse web url: %w", err)
	}
	loginUrl, err := url.Parse(opts.LoginUrl)
	if err != nil {
		return nil, fmt.Errorf("parse login url: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = chrono.NewStandardImpl()
	}

	return &Client{
		WebUrl:   webUrl,
		LoginUrl: loginUrl,
		dump:     opts.Dump,
		clock:    clock,
		tel:      telemetry.NewScopedAPI("barchart_web", tel),
	}, nil
}

func (c *Client) newHttp() (*resty.Client, error) {
	httpClient := resty.New()
	httpClient.SetBaseURL(c.WebUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	// the login flow bounces between the login host and the website
	httpClient.SetRedirectPolicy(resty.FlexibleRedirectPolicy(15))

	telemetry.InstrumentResty(httpClient, "ebird/barchartweb/http", c.tel)
	c.dump.Attach(httpClient)
	return httpClient, nil
}

// Login returns an authenticated session, every session has its own cookie jar.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	loginError := func(err error) error {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("barchart web: login failed: %w", err)
	}

	httpClient, err := c.newHttp()
	if err != nil {
		return nil, loginError(err)
	}

	res, err := httpClient.R().
		SetContext(ctx).
		Get(c.LoginUrl.String())
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("login page request: %w", err),
		)
		return nil, loginError(err)
	}
	if res.IsError() {
		err := fmt.Errorf("login page request: %s", res.Status())
		c.tel.ReportBroken(report_client_login, err)
		return nil, loginError(err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("parse login page: %w", err),
		)
		return nil, loginError(err)
	}

	form, err := findLoginForm(doc, res.RawResponse.Request.URL)
	if err != nil {
		c.tel.ReportBroken(report_client_login, err)
		return nil, loginError(err)
	}
	form.values["username"] = username
	form.values["password"] = password

	res, err = httpClient.R().
		SetContext(ctx).
		SetFormData(form.values).
		Post(form.action.String())
	if err != nil {
		c.tel.ReportBroken(
			report_client_login,
			fmt.Errorf("login request: %w", err),
		)
		return nil, loginError(err)
	}

	// a failed login re-renders the form on the login host instead of
	// redirecting back to the website
	landed := res.RawResponse.Request.URL
	if landed.Host == c.LoginUrl.Host && landed.Host != c.WebUrl.Host {
		c.tel.ReportWarning(report_client_login, ErrInvalidCredentials, username)
		return nil, loginError(ErrInvalidCredentials)
	}
	if res.IsError() {
		err := fmt.Errorf("login request: %s", res.Status())
		c.tel.ReportBroken(report_client_login, err)
		return nil, loginError(err)
	}

	c.tel.ReportDebug("logged in", username)
	return &Session{
		Http:     httpClient,
		loginUrl: c.LoginUrl,
		clock:    c.clock,
		tel:      c.tel,
	}, nil
}

type loginForm struct {
	action *url.URL
	values map[string]string
}

// findLoginForm picks the form holding the password input and collects its hidden inputs.
func findLoginForm(doc *goquery.Document, page *url.URL) (loginForm, error) {
	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("input[name=password]").Length() > 0
	}).First()
	if form.Length() == 0 {
		return loginForm{}, fmt.Errorf("could not find login form")
	}

	action, err := page.Parse(form.AttrOr("action", ""))
	if err != nil {
		return loginForm{}, fmt.Errorf("parse form action: %w", err)
	}

	values := map[string]string{}
	form.Find("input[type=hidden]").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		values[name] = input.AttrOr("value", "")
	})

	return loginForm{action: action, values: values}, nil
}

// Session is a logged in client.
type Session struct {
	Http     *resty.Client
	loginUrl *url.URL
	clock    chrono.API
	tel      telemetry.API
}

// Dataset downloads and parses the bar chart of a region over all years and months.
func (s *Session) Dataset(ctx context.Context, regionCode string) (Dataset, error) {
	ctx, span := tracer.Start(ctx, "session:Dataset")
	defer span.End()
	span.SetAttributes(attribute.String("region", regionCode))

	res, err := s.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"r":   regionCode,
			"bmo": "1",
			"emo": "12",
			"byr": "1900",
			"eyr": strconv.Itoa(s.clock.Now().Year()),
			"fmt": "tsv",
		}).
		Get("/barchartData")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		s.tel.ReportBroken(
			report_session_barchart,
			fmt.Errorf("fetch: %w", err),
			regionCode,
		)
		return Dataset{}, err
	}
	if res.IsError() {
		err := fmt.Errorf("fetch bar chart for %s: %s", regionCode, res.Status())
		span.SetStatus(codes.Error, err.Error())
		s.tel.ReportBroken(report_session_barchart, err, regionCode)
		return Dataset{}, err
	}
	if res.RawResponse.Request.URL.Host == s.loginUrl.Host {
		err := fmt.Errorf("fetch bar chart for %s: session is not logged in", regionCode)
		span.SetStatus(codes.Error, err.Error())
		s.tel.ReportBroken(report_session_barchart, err, regionCode)
		return Dataset{}, err
	}

	dataset, err := ParseBarchart(regionCode, res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse")
		s.tel.ReportBroken(
			report_session_barchart,
			fmt.Errorf("parse: %w", err),
			regionCode,
		)
		return Dataset{}, err
	}
	s.tel.ReportDebug("fetched bar chart", regionCode, len(dataset.Species))
	return dataset, nil
}

// Barchart is Dataset with an untyped result.
func (s *Session) Barchart(ctx context.Context, regionCode string) (any, error) {
	dataset, err := s.Dataset(ctx, regionCode)
	if err != nil {
		return nil, err
	}
	return dataset, nil
}
