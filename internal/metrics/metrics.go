package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	PartitionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partkeeper_partitions_total",
			Help: "Partitions currently defined for the table.",
		},
		[]string{"table"},
	)

	TimeSinceNewestPartition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partkeeper_time_since_newest_partition_seconds",
			Help: "Age of the newest dated partition.",
		},
		[]string{"table"},
	)

	TimeSinceOldestPartition = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partkeeper_time_since_oldest_partition_seconds",
			Help: "Age of the oldest dated partition.",
		},
		[]string{"table"},
	)

	MeanPartitionDelta = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partkeeper_mean_partition_delta_seconds",
			Help: "Mean spacing between dated partitions.",
		},
		[]string{"table"},
	)

	MaxPartitionDelta = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partkeeper_max_partition_delta_seconds",
			Help: "Largest spacing between adjacent dated partitions.",
		},
		[]string{"table"},
	)

	AlterDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "partkeeper_alter_duration_seconds",
			Help: "Wall time of the last ALTER run against the table.",
		},
		[]string{"table"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "partkeeper_errors_total",
			Help: "Per-table failures by stage.",
		},
		[]string{"table", "stage"},
	)
)

// Registry holds every partkeeper collector. The tool is offline, so the
// registry is rendered to a textfile rather than served over HTTP.
var Registry = prometheus.NewRegistry()

func Register() {
	Registry.MustRegister(
		PartitionsTotal,
		TimeSinceNewestPartition,
		TimeSinceOldestPartition,
		MeanPartitionDelta,
		MaxPartitionDelta,
		AlterDuration,
		ErrorsTotal,
	)
}
