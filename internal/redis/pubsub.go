package redisx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotificationsPubSub fans notification events out to delivery workers
// (push, SMS) over a redis channel. Publishing is best effort: callers
// ignore the returned error beyond logging it.
type NotificationsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewNotificationsPubSub(rdb *redis.Client) *NotificationsPubSub {
	return &NotificationsPubSub{
		rdb:     rdb,
		channel: ChannelNotifications(),
	}
}

type notificationMsg struct {
	UserID string         `json:"user_id"`
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data,omitempty"`
	TsUnix int64          `json:"ts_unix"`
}

func (p *NotificationsPubSub) Publish(ctx context.Context, userID, typ, title, body string, data map[string]any) error {
	msg := notificationMsg{
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
		Data:   data,
		TsUnix: time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *NotificationsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, userID, typ string, data map[string]any)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg notificationMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil && msg.UserID != "" {
				handler(ctx, msg.UserID, msg.Type, msg.Data)
			}
		}
	}
}
