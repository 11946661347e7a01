package logger

import (
	"log/slog"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

func RequestID(id string) slog.Attr      { return slog.String("request_id", id) }
func UserID(id string) slog.Attr         { return slog.String("user_id", id) }
func PlanID(id string) slog.Attr         { return slog.String("plan_id", id) }
func SubscriptionID(id string) slog.Attr { return slog.String("subscription_id", id) }
func TransactionID(id string) slog.Attr  { return slog.String("transaction_id", id) }
func IntentID(id string) slog.Attr       { return slog.String("intent_id", id) }
func EventID(id string) slog.Attr        { return slog.String("event_id", id) }
func EventType(t string) slog.Attr       { return slog.String("event_type", t) }
func Collection(name string) slog.Attr   { return slog.String("collection", name) }

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
