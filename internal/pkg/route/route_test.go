package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		fragment string
		want     Route
	}{
		{"", Route{Page: PageHome}},
		{"#/status", Route{Page: PageHome}},
		{"/create", Route{Page: PageCreate}},
		{"/ask", Route{Page: PageAsk}},
		{"/friends", Route{Page: PageFriends}},
		{"/events", Route{Page: PageEvents}},
		{"/events/", Route{Page: PageEvents}},
		{"/events/create", Route{Page: PageCreateEvent}},
		{"/events/42", Route{Page: PageEventRoom, EventID: "42"}},
		{"/events/42/extra", Route{Page: PageHome}},
		{"/@Budi.S", Route{Page: PageProfile, Handle: "budi.s"}},
		{"/@kamu", Route{Page: PageProfile, Handle: SelfHandle}},
		{"/@", Route{Page: PageHome}},
		{"/settings", Route{Page: PageSettings}},
		{"/settings/privacy", Route{Page: PagePrivacy}},
		{"/settings/terms", Route{Page: PageTerms}},
		{"/nowhere", Route{Page: PageHome}},
	}
	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.fragment))
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	routes := []Route{
		{Page: PageHome},
		{Page: PageCreate},
		{Page: PageAsk},
		{Page: PageFriends},
		{Page: PageEvents},
		{Page: PageCreateEvent},
		{Page: PageEventRoom, EventID: "abc"},
		{Page: PageProfile, Handle: "budi"},
		{Page: PageProfile, Handle: SelfHandle},
		{Page: PageSettings},
		{Page: PagePrivacy},
		{Page: PageTerms},
	}
	for _, r := range routes {
		assert.Equal(t, r, Parse(Format(r)), Format(r))
	}
	assert.True(t, Parse("/@kamu").Self())
	assert.Equal(t, "/status", Format(Route{Page: "unknown"}))
}
