package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnState_Next(t *testing.T) {
	tests := []struct {
		name    string
		from    ConnState
		event   string
		want    ConnState
		wantErr bool
	}{
		{name: "login from anonymous", from: StateAnonymous, event: EventLogin, want: StateLoggedIn},
		{name: "repeated login", from: StateLoggedIn, event: EventLogin, want: StateLoggedIn},
		{name: "message before login", from: StateAnonymous, event: EventSendMessage, want: StateAnonymous},
		{name: "typing after login", from: StateLoggedIn, event: EventTyping, want: StateLoggedIn},
		{name: "disconnect anonymous", from: StateAnonymous, event: eventDisconnect, want: StateDisconnected},
		{name: "disconnect logged in", from: StateLoggedIn, event: eventDisconnect, want: StateDisconnected},
		{name: "login after disconnect", from: StateDisconnected, event: EventLogin, wantErr: true},
		{name: "disconnect twice", from: StateDisconnected, event: eventDisconnect, wantErr: true},
		{name: "unknown event", from: StateLoggedIn, event: "users", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.from.Next(tt.event)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrIllegalTransition)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestConnState_String(t *testing.T) {
	require.Equal(t, "anonymous", StateAnonymous.String())
	require.Equal(t, "logged-in", StateLoggedIn.String())
	require.Equal(t, "disconnected", StateDisconnected.String())
	require.Equal(t, "ConnState(7)", ConnState(7).String())
}
