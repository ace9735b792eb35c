package network

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricConnectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_net_connections_total",
		Help: "Общее число принятых соединений.",
	}, []string{"transport"})

	metricActiveConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arena_net_active_connections",
		Help: "Текущее число активных соединений.",
	}, []string{"transport"})

	metricMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_net_messages_total",
		Help: "Общее число обработанных сообщений.",
	}, []string{"direction"})

	metricHandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arena_net_handler_errors_total",
		Help: "Число ошибок обработки входящих сообщений.",
	})
)

func init() {
	prometheus.MustRegister(
		metricConnectionsTotal,
		metricActiveConnections,
		metricMessagesTotal,
		metricHandlerErrors,
	)
}
