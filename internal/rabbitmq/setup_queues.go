package rabbitmq

// NotificationsExchange direct-exchange исходящих уведомлений.
const NotificationsExchange = "notifications"

// Очередь сообщений клиентам, которые разбирает notification-sender.
const (
	OutboundQueue      = "notification.outbound"
	OutboundRoutingKey = "outbound"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: OutboundQueue, RoutingKey: OutboundRoutingKey},
	}
}
