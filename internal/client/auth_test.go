package client

import (
	"context"
	"errors"
	"testing"

	authModel "seest/internal/domain/auth/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthLifecycle(t *testing.T) {
	backend := &fakeAuthBackend{}
	auth := NewAuth()
	auth.Bind(backend)

	var events []authModel.Event
	stop := auth.OnAuthStateChange(func(c authModel.StateChange) { events = append(events, c.Event) })
	defer stop()

	assert.Empty(t, auth.Token())
	require.NoError(t, auth.SignOut(context.Background()), "signing out without a session is a no-op")

	s, err := auth.SignIn(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "me", s.UserID)
	assert.Equal(t, "tok", auth.Token())

	backend.signOutErr = errors.New("network down")
	assert.Error(t, auth.SignOut(context.Background()))
	_, ok := auth.Current()
	assert.False(t, ok, "local session is cleared even when the server call fails")

	assert.Equal(t, []authModel.Event{authModel.SignedIn, authModel.SignedOut}, events)
}

func TestRestore(t *testing.T) {
	auth := NewAuth()
	auth.Bind(&fakeAuthBackend{})

	s, err := auth.Restore(context.Background(), "saved")
	require.NoError(t, err)
	assert.Equal(t, "me", s.UserID)

	auth.Expire(authModel.UserDeleted)
	_, ok := auth.Current()
	assert.False(t, ok)
}
