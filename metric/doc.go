// Package metric exports controller connection metrics to Prometheus.
//
// A Registry holds one ConnectionCollector per connection, each labeled with
// the connection name, next to the Go runtime and process collectors. Server
// exposes the registry over HTTP:
//
//	registry := metric.NewRegistry()
//	if err := registry.RegisterConnection("robot1", session.GetMetrics()); err != nil {
//		return err
//	}
//
//	server := metric.NewServer(":9090", "", registry)
//	if err := server.Start(); err != nil {
//		return err
//	}
//	defer server.Stop()
package metric
