package redisx

import "fmt"

const ns = "pawcall:v1"

func KeySlot(serviceID, date string) string {
	return fmt.Sprintf("%s:slot:%s:%s", ns, serviceID, date)
}

func KeySlotList(serviceID string) string {
	return fmt.Sprintf("%s:slots:%s", ns, serviceID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeySweepLock() string {
	return ns + ":sweep:lock"
}

func ChannelNotifications() string {
	return ns + ":notifications"
}
