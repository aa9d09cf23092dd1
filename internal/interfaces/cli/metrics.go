package cli

import (
	"fmt"
	"net/http"

	"github.com/loanlens/loanlens/internal/config"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/prometheus"
)

// buildMetrics returns the app metric set and the exposition handler. With
// metrics disabled the set is a no-op and the handler nil, which leaves the
// /metrics endpoint unregistered.
func buildMetrics(cfg *config.Config, log logging.Logger) (*prometheus.AppMetrics, http.Handler, error) {
	if !cfg.Metrics.Enabled {
		return prometheus.NewNopAppMetrics(), nil, nil
	}
	collector, err := prometheus.NewCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("building metrics collector: %w", err)
	}
	return prometheus.NewAppMetrics(collector), collector.Handler(), nil
}
