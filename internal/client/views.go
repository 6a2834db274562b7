package client

import (
	"strings"

	messageModel "seest/internal/domain/message/model"
	postModel "seest/internal/domain/post/model"
	userModel "seest/internal/domain/user/model"
	"seest/internal/pkg/feed"
	"seest/internal/pkg/route"
)

// Me 当前会话用户的资料
func (a *App) Me() (userModel.UserView, bool) {
	return a.Users.Find(a.session.UserID)
}

func (a *App) activePosts(me userModel.UserView) []postModel.PostView {
	return feed.Active(a.Posts.Items(), a.opts.Now(), me.FavoritePostIDs, a.opts.Retention)
}

// HomeFeed 自己与互关好友的状态动态，activity 为空时不过滤
func (a *App) HomeFeed(activity string) []postModel.PostView {
	me, ok := a.Me()
	if !ok {
		return []postModel.PostView{}
	}
	return feed.Status(me, a.activePosts(me), activity)
}

func (a *App) AskFeed() []postModel.PostView {
	me, _ := a.Me()
	return feed.Ask(a.activePosts(me))
}

func (a *App) StoryReel() []userModel.UserView {
	me, ok := a.Me()
	if !ok {
		return []userModel.UserView{}
	}
	return feed.StoryReel(me, feed.Status(me, a.activePosts(me), ""), a.Users.Items())
}

func (a *App) Mutuals() []userModel.UserView {
	me, ok := a.Me()
	if !ok {
		return []userModel.UserView{}
	}
	return feed.Mutuals(me, a.Users.Items())
}

// Conversation 与 peer 的私信，按时间升序
func (a *App) Conversation(peerID string) []messageModel.Message {
	return messageModel.Between(a.session.UserID, peerID, a.Messages.Items())
}

func (a *App) Conversations() []messageModel.Conversation {
	return messageModel.GroupConversations(a.session.UserID, a.Messages.Items())
}

func (a *App) UnreadCount() int {
	n := 0
	for _, item := range a.Notifications.Items() {
		if !item.Read {
			n++
		}
	}
	return n
}

// ProfileRoute 用户资料页路由，自己使用固定别名
func (a *App) ProfileRoute(userID string) route.Route {
	if userID == a.session.UserID {
		return route.Route{Page: route.PageProfile, Handle: route.SelfHandle}
	}
	handle := userID
	if u, ok := a.Users.Find(userID); ok && u.Username != "" {
		handle = strings.ToLower(u.Username)
	}
	return route.Route{Page: route.PageProfile, Handle: handle}
}

// Resolve 解析 URL 片段并对照本地数据校验。
// 直播间不存在时回到直播列表，资料页找不到用户时回到首页；
// 资料页同时返回对应的用户 ID。
func (a *App) Resolve(fragment string) (route.Route, string) {
	r := route.Parse(fragment)
	switch r.Page {
	case route.PageEventRoom:
		if _, ok := a.Events.Find(r.EventID); ok {
			return r, ""
		}
		select {
		case <-a.Events.Ready():
			return route.Route{Page: route.PageEvents}, ""
		default:
			// 首次拉取未完成前保持原路由
			return r, ""
		}
	case route.PageProfile:
		if r.Self() {
			return r, a.session.UserID
		}
		for _, u := range a.Users.Items() {
			if strings.EqualFold(u.Username, r.Handle) || u.ID == r.Handle {
				return r, u.ID
			}
		}
		return route.Route{Page: route.PageHome}, ""
	}
	return r, ""
}
