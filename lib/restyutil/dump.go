// Package restyutil dumps the http traffic of resty clients for debugging.
package restyutil

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Dumper writes every exchange of the clients it is attached to into an
// Output, numbered in the order responses arrive.
type Dumper struct {
	output  Output
	counter *uint64
}

func NewDumper(output Output) Dumper {
	var counter uint64
	return Dumper{output: output, counter: &counter}
}

var unsafeIdChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

func messageId(n uint64, method, rawUrl string) string {
	name := rawUrl
	parsed, err := url.Parse(rawUrl)
	if err == nil {
		name = parsed.Host + parsed.Path
	}
	name = strings.Trim(unsafeIdChars.ReplaceAllString(name, "_"), "_")
	return fmt.Sprintf("%04d-%s-%s", n, method, name)
}

// Attach makes the dumper record every response of `client`, a nil Dumper
// output makes this a no-op.
func (d Dumper) Attach(client *resty.Client) {
	if d.output == nil {
		return
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(d.counter, 1)
		id := messageId(n, res.Request.Method, res.Request.URL)
		err := d.output.Write(id, FormatHttpMessage(res))
		if err != nil {
			slog.Warn("failed to write http dump", "id", id, "err", err)
		}
		return nil
	})
}
