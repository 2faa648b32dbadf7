package models

// Виды исходящих уведомлений.
const (
	NotifyReceipt   = "receipt"
	NotifyRenewal   = "renewal"
	NotifyUpdate    = "update"
	NotifyResend    = "resend"
	NotifyBroadcast = "broadcast"
	NotifyReminder  = "reminder"
	NotifyReport    = "report"
)

// Notification сообщение клиенту или оператору, доставляемое через шлюз.
type Notification struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Kind string `json:"kind,omitempty"`
}
