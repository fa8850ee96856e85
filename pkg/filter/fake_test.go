package filter

import (
	"context"
	"errors"
	"sync"

	"github.com/safequote/safequote/pkg/ajax"
	"github.com/safequote/safequote/pkg/vehicle"
)

var errBackendDown = errors.New("backend down")

type call struct {
	Method string
	Year   string
	Make   string
	Query  ajax.SearchQuery
}

// gate parks a backend call until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

type fakeBackend struct {
	mu       sync.Mutex
	years    map[string][]string // keyed by make filter
	makes    map[string][]string // keyed by year filter
	models   map[string][]string // keyed by year + "|" + make
	vehicles []vehicle.Vehicle
	failing  map[string]bool
	gates    map[string]*gate
	calls    []call
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		years: map[string][]string{
			"":       {"2024", "2023", "2022"},
			"Toyota": {"2024", "2023"},
			"Honda":  {"2024", "2023"},
			"Ford":   {"2022"},
		},
		makes: map[string][]string{
			"":     {"Ford", "Honda", "Toyota"},
			"2024": {"Honda", "Toyota"},
			"2023": {"Honda", "Toyota"},
			"2022": {"Ford"},
		},
		models: map[string][]string{
			"|Toyota":     {"Camry", "Corolla", "RAV4"},
			"2024|Toyota": {"Camry", "RAV4"},
			"2023|Toyota": {"Corolla"},
			"|Honda":      {"CR-V", "Civic"},
			"2024|Honda":  {"CR-V"},
			"2023|Honda":  {"Civic"},
			"2022|Ford":   {"F-150"},
			"|Ford":       {"F-150"},
		},
		vehicles: []vehicle.Vehicle{
			{ID: "1", Year: "2024", Make: "Toyota", Model: "Camry", Type: "Sedan"},
			{ID: "4", Year: "2023", Make: "Honda", Model: "Civic", Type: "Sedan"},
		},
		failing: map[string]bool{},
		gates:   map[string]*gate{},
	}
}

// hold parks the next call whose key matches until the returned gate is released.
func (f *fakeBackend) hold(key string) *gate {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := newGate()
	f.gates[key] = g
	return g
}

func (f *fakeBackend) fail(method string, on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[method] = on
}

func (f *fakeBackend) callsTo(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) enter(key string, c call) (*gate, bool) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	g := f.gates[key]
	delete(f.gates, key)
	failing := f.failing[c.Method]
	f.mu.Unlock()
	return g, failing
}

func (f *fakeBackend) wait(ctx context.Context, g *gate) error {
	if g == nil {
		return nil
	}
	close(g.entered)
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) options(m map[string][]string, key string) []ajax.Option {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ajax.Option
	for _, n := range m[key] {
		out = append(out, ajax.Option{Name: n})
	}
	return out
}

func (f *fakeBackend) Years(ctx context.Context, vehicleMake string) ([]ajax.Option, error) {
	g, failing := f.enter("Years:"+vehicleMake, call{Method: "Years", Make: vehicleMake})
	if err := f.wait(ctx, g); err != nil {
		return nil, err
	}
	if failing {
		return nil, errBackendDown
	}
	return f.options(f.years, vehicleMake), nil
}

func (f *fakeBackend) Makes(ctx context.Context, year string) ([]ajax.Option, error) {
	g, failing := f.enter("Makes:"+year, call{Method: "Makes", Year: year})
	if err := f.wait(ctx, g); err != nil {
		return nil, err
	}
	if failing {
		return nil, errBackendDown
	}
	return f.options(f.makes, year), nil
}

func (f *fakeBackend) Models(ctx context.Context, year, vehicleMake string) ([]ajax.Option, error) {
	g, failing := f.enter("Models:"+year+"|"+vehicleMake, call{Method: "Models", Year: year, Make: vehicleMake})
	if err := f.wait(ctx, g); err != nil {
		return nil, err
	}
	if failing {
		return nil, errBackendDown
	}
	return f.options(f.models, year+"|"+vehicleMake), nil
}

func (f *fakeBackend) Search(ctx context.Context, q ajax.SearchQuery) ([]vehicle.Vehicle, error) {
	g, failing := f.enter("Search", call{Method: "Search", Query: q})
	if err := f.wait(ctx, g); err != nil {
		return nil, err
	}
	if failing {
		return nil, errBackendDown
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vehicle.Vehicle
	for _, v := range f.vehicles {
		if q.Year != "" && v.Year != q.Year {
			continue
		}
		if q.Make != "" && v.Make != q.Make {
			continue
		}
		if q.Model != "" && v.Model != q.Model {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, level+": "+message)
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
