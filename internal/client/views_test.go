package client

import (
	"testing"

	postModel "seest/internal/domain/post/model"
	"seest/internal/pkg/realtime"
	"seest/internal/pkg/route"

	"github.com/stretchr/testify/assert"
)

func postIDs(posts []postModel.PostView) []string {
	out := []string{}
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestFeeds(t *testing.T) {
	app, _ := startApp(t, seededBackend(), realtime.NewHub(0))

	// bob 不是互关，过期动态不出现
	assert.Equal(t, []string{"p1", "p3"}, postIDs(app.HomeFeed("")))
	assert.Equal(t, []string{"p1"}, postIDs(app.HomeFeed("Working")))
	assert.Equal(t, []string{"p4"}, postIDs(app.AskFeed()))

	reel := app.StoryReel()
	if assert.Len(t, reel, 1) {
		assert.Equal(t, "amy", reel[0].ID)
	}
	mutuals := app.Mutuals()
	if assert.Len(t, mutuals, 1) {
		assert.Equal(t, "amy", mutuals[0].ID)
	}
}

func TestBookmarkedPostSurvivesExpiry(t *testing.T) {
	backend := seededBackend()
	backend.users[0].FavoritePostIDs = []string{"old"}
	app, _ := startApp(t, backend, realtime.NewHub(0))

	assert.Contains(t, postIDs(app.HomeFeed("")), "old")
}

func TestProfileRoute(t *testing.T) {
	app, _ := startApp(t, seededBackend(), realtime.NewHub(0))

	assert.Equal(t, "/@kamu", route.Format(app.ProfileRoute("me")))
	assert.Equal(t, "/@bob_b", route.Format(app.ProfileRoute("bob")))
	assert.Equal(t, "/@ghost", route.Format(app.ProfileRoute("ghost")))
}

func TestResolve(t *testing.T) {
	app, _ := startApp(t, seededBackend(), realtime.NewHub(0))

	tests := []struct {
		name     string
		fragment string
		page     route.Page
		userID   string
	}{
		{"known event", "#/events/ev1", route.PageEventRoom, ""},
		{"missing event", "#/events/nope", route.PageEvents, ""},
		{"self", "#/@kamu", route.PageProfile, "me"},
		{"handle is case insensitive", "#/@BOB_B", route.PageProfile, "bob"},
		{"unknown handle", "#/@nobody", route.PageHome, ""},
		{"settings", "#/settings/terms", route.PageTerms, ""},
		{"unknown path", "#/whatever", route.PageHome, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, userID := app.Resolve(tt.fragment)
			assert.Equal(t, tt.page, r.Page)
			assert.Equal(t, tt.userID, userID)
		})
	}
}
