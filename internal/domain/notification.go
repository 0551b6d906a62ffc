package domain

type NotificationType string

const (
	NotificationRentalRequest  NotificationType = "rental_request"
	NotificationRentalDecision NotificationType = "rental_decision"
	NotificationPickup         NotificationType = "rental_pickup"
	NotificationReturn         NotificationType = "rental_return"
	NotificationNoShow         NotificationType = "rental_no_show"
	NotificationNeverReturned  NotificationType = "rental_never_returned"
	NotificationIssueReported  NotificationType = "issue_reported"
	NotificationIssueResolved  NotificationType = "issue_resolved"
	NotificationTopUp          NotificationType = "topup"
	NotificationWithdrawal     NotificationType = "withdrawal"
)

type Notification struct {
	UserID     string            `json:"user_id"`
	Type       NotificationType  `json:"type"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Attributes map[string]string `json:"attributes"`
}
