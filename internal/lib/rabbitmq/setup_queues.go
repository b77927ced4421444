package rabbitmq

// Exchange — direct-обменник уведомлений.
const Exchange = "notifications"

// Ключи маршрутизации.
const (
	RoutingKeyTransition = "subscription.transition"
	RoutingKeyUpcoming   = "upcoming"
)

// QueueConfig описывает очередь и её привязку к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые читает notification-sender.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.transition", RoutingKey: RoutingKeyTransition},
		{QueueName: "notifications.upcoming", RoutingKey: RoutingKeyUpcoming},
	}
}
