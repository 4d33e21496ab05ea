package stores

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

func TestInMemoryPushConfigStore_SaveAssignsID(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryPushConfigStore()

	saved, err := store.Save(ctx, "t1", a2a.PushNotificationConfig{URL: "https://example.com/hook"})
	assert.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	got, err := store.Get(ctx, "t1", saved.ID)
	assert.NoError(t, err)
	assert.Equal(t, "https://example.com/hook", got.URL)
}

func TestInMemoryPushConfigStore_SaveUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryPushConfigStore()

	saved, err := store.Save(ctx, "t1", a2a.PushNotificationConfig{ID: "fixed", URL: "https://a"})
	assert.NoError(t, err)

	_, err = store.Save(ctx, "t1", a2a.PushNotificationConfig{ID: "fixed", URL: "https://b"})
	assert.NoError(t, err)

	got, err := store.Get(ctx, "t1", saved.ID)
	assert.NoError(t, err)
	assert.Equal(t, "https://b", got.URL)

	list, err := store.List(ctx, "t1")
	assert.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInMemoryPushConfigStore_GetMissing(t *testing.T) {
	store := NewInMemoryPushConfigStore()
	_, err := store.Get(context.Background(), "t1", "nope")
	assert.Error(t, err)
}

func TestInMemoryPushConfigStore_DeleteAndDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryPushConfigStore()

	a, _ := store.Save(ctx, "t1", a2a.PushNotificationConfig{URL: "https://a"})
	_, _ = store.Save(ctx, "t1", a2a.PushNotificationConfig{URL: "https://b"})

	assert.NoError(t, store.Delete(ctx, "t1", a.ID))
	list, _ := store.List(ctx, "t1")
	assert.Len(t, list, 1)

	assert.NoError(t, store.DeleteAll(ctx, "t1"))
	list, _ = store.List(ctx, "t1")
	assert.Empty(t, list)
}
