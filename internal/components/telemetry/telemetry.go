package telemetry

import (
	"fmt"
)

// API is what every component reports through instead of logging directly,
// tests substitute a RecordingAPI to assert on what was reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that failed at what it is supposed to do.
	//
	// `id` names the component (`<struct or interface>.<method>`, lowercase,
	// underscores within words), not the step inside it that failed. The region
	// info client failing an http request in `Info` reports `client.info` and
	// puts the details in params or a wrapped error. Package level namespaces
	// are added by ScopedAPI.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a degradation that was recovered from, like falling
	// back to the region code when region info is unavailable.
	ReportWarning(id string, params ...any)

	// ReportDebug reports progress that is only shown with --verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a count observed at the end of an operation.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id it reports with a namespace.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
