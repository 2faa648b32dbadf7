// Package metrics счётчики Prometheus бота.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reseller"

// Метки результата обработки входящего сообщения.
const (
	ResultIgnored  = "ignored"
	ResultSilenced = "silenced"
	ResultLocked   = "locked"
	ResultFlow     = "flow"
	ResultCommand  = "command"
	ResultUnknown  = "unknown"
	ResultError    = "error"
)

// Статусы доставки уведомлений.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusRetried = "retried"
	StatusQueued  = "queued"
	StatusDropped = "dropped"
)

// Metrics набор счётчиков.
type Metrics struct {
	Messages        *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	SessionsExpired prometheus.Counter
	Sales           prometheus.Counter
}

// New создаёт счётчики и регистрирует их в reg. nil reg означает без регистрации.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Inbound chat messages by processing result",
			},
			[]string{"result"},
		),
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Executed commands by canonical name",
			},
			[]string{"command"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Outbound notifications by delivery status",
			},
			[]string{"status"},
		),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions discarded after the inactivity timeout",
		}),
		Sales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_total",
			Help:      "Subscriptions sold through the sale flow",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Messages, m.Commands, m.Notifications, m.SessionsExpired, m.Sales)
	}
	return m
}

// Noop счётчики без регистрации, для тестов и утилит.
func Noop() *Metrics {
	return New(nil)
}

// Message учитывает входящее сообщение.
func (m *Metrics) Message(result string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(result).Inc()
}

// Command учитывает выполненную команду.
func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(name).Inc()
}

// Notification учитывает исход доставки уведомления.
func (m *Metrics) Notification(status string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(status).Inc()
}

// SessionExpired учитывает сессию, отброшенную по таймауту.
func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// Sale учитывает продажу.
func (m *Metrics) Sale() {
	if m == nil {
		return
	}
	m.Sales.Inc()
}
