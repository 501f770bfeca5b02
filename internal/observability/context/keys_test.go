package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), "scheduler", "billing_cycle")
	actorType, actorID := ActorFromContext(ctx)
	assert.Equal(t, "scheduler", actorType)
	assert.Equal(t, "billing_cycle", actorID)
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	ctx = WithSubscriberID(ctx, "")
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.Equal(t, "", SubscriberIDFromContext(ctx))
	assert.Equal(t, "", JobFromContext(nil))
}
