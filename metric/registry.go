package metric

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arloliu/go-flexgui/controller"
)

// ErrDuplicateConnection is returned when a connection name is registered twice.
var ErrDuplicateConnection = errors.New("connection metrics already registered")

// Registry holds the connection collectors of a process together with the Go
// runtime and process collectors.
type Registry struct {
	prometheusRegistry *prometheus.Registry

	mu          sync.Mutex
	connections map[string]*ConnectionCollector
}

// NewRegistry creates a registry with the Go runtime and process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		connections:        make(map[string]*ConnectionCollector),
	}

	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// RegisterConnection exports m under the label conn=name.
func (r *Registry) RegisterConnection(name string, m *controller.ConnectionMetrics) error {
	if m == nil {
		return errors.New("connection metrics is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, name)
	}

	col := NewConnectionCollector(m, prometheus.Labels{"conn": name})
	if err := r.prometheusRegistry.Register(col); err != nil {
		return fmt.Errorf("register connection %s: %w", name, err)
	}

	r.connections[name] = col

	return nil
}

// UnregisterConnection removes the collector registered under name.
// It reports whether a collector was removed.
func (r *Registry) UnregisterConnection(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, exists := r.connections[name]
	if !exists {
		return false
	}

	delete(r.connections, name)

	return r.prometheusRegistry.Unregister(col)
}
