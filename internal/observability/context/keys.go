package context

import "context"

type contextKey string

const (
	requestIDKey    contextKey = "observability_request_id"
	subscriberIDKey contextKey = "observability_subscriber_id"
	actorTypeKey    contextKey = "observability_actor_type"
	actorIDKey      contextKey = "observability_actor_id"
	jobKey          contextKey = "observability_job"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithSubscriberID(ctx context.Context, subscriberID string) context.Context {
	if ctx == nil || subscriberID == "" {
		return ctx
	}
	return context.WithValue(ctx, subscriberIDKey, subscriberID)
}

func SubscriberIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(subscriberIDKey).(string)
	return value
}

// WithActor records who triggered the operation, e.g. ("api", "<key id>")
// or ("scheduler", "billing_cycle").
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	if ctx == nil {
		return ctx
	}
	if actorType != "" {
		ctx = context.WithValue(ctx, actorTypeKey, actorType)
	}
	if actorID != "" {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	actorType, _ := ctx.Value(actorTypeKey).(string)
	actorID, _ := ctx.Value(actorIDKey).(string)
	return actorType, actorID
}

func WithJob(ctx context.Context, job string) context.Context {
	if ctx == nil || job == "" {
		return ctx
	}
	return context.WithValue(ctx, jobKey, job)
}

func JobFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(jobKey).(string)
	return value
}
