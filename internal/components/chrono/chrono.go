package chrono

import "time"

// API is the interface that anything depending on the system clock should use.
type API interface {
	Now() time.Time
	// Sleep blocks the caller for d, it is not interruptible.
	Sleep(d time.Duration)
}

// StandardImpl is the standard implementation of API using the standard library.
type StandardImpl struct{}

// NewStandardImpl is the constructor of StandardImpl.
func NewStandardImpl() StandardImpl {
	return StandardImpl{}
}

func (StandardImpl) Now() time.Time {
	return time.Now()
}

func (StandardImpl) Sleep(d time.Duration) {
	time.Sleep(d)
}

// FakeImpl is an API that never blocks, it advances its own clock by
// every duration passed to Sleep and remembers them.
type FakeImpl struct {
	Current time.Time
	Slept   []time.Duration
}

func (f *FakeImpl) Now() time.Time {
	return f.Current
}

func (f *FakeImpl) Sleep(d time.Duration) {
	f.Slept = append(f.Slept, d)
	f.Current = f.Current.Add(d)
}

// Total returns the sum of all the durations slept.
func (f *FakeImpl) Total() time.Duration {
	var total time.Duration
	for _, d := range f.Slept {
		total += d
	}
	return total
}
