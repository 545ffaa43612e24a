package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var dbPoolConnectionsDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "db", "pool_connections"),
	"Number of database connections by state",
	[]string{"state"}, nil,
)

// PoolStater is implemented by *pgxpool.Pool.
type PoolStater interface {
	Stat() *pgxpool.Stat
}

// DBPoolCollector reports connection pool state at scrape time.
type DBPoolCollector struct {
	pool PoolStater
}

// NewDBPoolCollector creates a collector for pool.
func NewDBPoolCollector(pool PoolStater) *DBPoolCollector {
	return &DBPoolCollector{pool: pool}
}

// Describe implements prometheus.Collector.
func (c *DBPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- dbPoolConnectionsDesc
}

// Collect implements prometheus.Collector.
func (c *DBPoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.pool.Stat()

	ch <- prometheus.MustNewConstMetric(dbPoolConnectionsDesc, prometheus.GaugeValue, float64(stats.AcquiredConns()), "in_use")
	ch <- prometheus.MustNewConstMetric(dbPoolConnectionsDesc, prometheus.GaugeValue, float64(stats.IdleConns()), "idle")
	ch <- prometheus.MustNewConstMetric(dbPoolConnectionsDesc, prometheus.GaugeValue, float64(stats.MaxConns()), "max")
}
