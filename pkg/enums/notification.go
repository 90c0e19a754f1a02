package enums

import (
	"fmt"
	"slices"
)

// NotificationType groups in-app notifications for filtering and icons.
type NotificationType string

const (
	NotificationTypeDelivery NotificationType = "delivery"
	NotificationTypeMessage  NotificationType = "message"
	NotificationTypeAccount  NotificationType = "account"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeDelivery,
	NotificationTypeMessage,
	NotificationTypeAccount,
}

func (n NotificationType) IsValid() bool {
	return slices.Contains(validNotificationTypes, n)
}

func ParseNotificationType(value string) (NotificationType, error) {
	n := NotificationType(value)
	if !n.IsValid() {
		return "", fmt.Errorf("invalid notification type %q", value)
	}
	return n, nil
}
