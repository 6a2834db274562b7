package route

import (
	"strings"
)

// Page 客户端页面
type Page string

const (
	PageHome        Page = "home"
	PageCreate      Page = "create"
	PageAsk         Page = "ask"
	PageFriends     Page = "friends"
	PageEvents      Page = "events"
	PageCreateEvent Page = "create-event"
	PageEventRoom   Page = "event-room"
	PageProfile     Page = "profile"
	PageSettings    Page = "settings"
	PagePrivacy     Page = "privacy"
	PageTerms       Page = "terms"
)

// SelfHandle 指向当前登录用户自己的资料页
const SelfHandle = "kamu"

// Route 解析后的页面状态
type Route struct {
	Page    Page
	EventID string // PageEventRoom
	Handle  string // PageProfile，已转小写
}

// Self 资料页是否指向自己
func (r Route) Self() bool {
	return r.Page == PageProfile && r.Handle == SelfHandle
}

var staticPages = map[string]Page{
	"":                  PageHome,
	"/status":           PageHome,
	"/create":           PageCreate,
	"/ask":              PageAsk,
	"/friends":          PageFriends,
	"/events":           PageEvents,
	"/events/create":    PageCreateEvent,
	"/settings":         PageSettings,
	"/settings/privacy": PagePrivacy,
	"/settings/terms":   PageTerms,
}

// Parse 解析 URL 片段，未知路径回到首页
func Parse(fragment string) Route {
	path := strings.TrimPrefix(fragment, "#")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	if page, ok := staticPages[path]; ok {
		return Route{Page: page}
	}

	if strings.HasPrefix(path, "/@") {
		handle := strings.ToLower(path[2:])
		if handle != "" && !strings.Contains(handle, "/") {
			return Route{Page: PageProfile, Handle: handle}
		}
		return Route{Page: PageHome}
	}

	if id, ok := strings.CutPrefix(path, "/events/"); ok && id != "" && !strings.Contains(id, "/") {
		return Route{Page: PageEventRoom, EventID: id}
	}

	return Route{Page: PageHome}
}

// Format 生成页面对应的 URL 片段
func Format(r Route) string {
	switch r.Page {
	case PageHome:
		return "/status"
	case PageCreateEvent:
		return "/events/create"
	case PageEventRoom:
		if r.EventID == "" {
			return "/events"
		}
		return "/events/" + r.EventID
	case PageProfile:
		if r.Handle == "" {
			return "/@" + SelfHandle
		}
		return "/@" + r.Handle
	case PagePrivacy:
		return "/settings/privacy"
	case PageTerms:
		return "/settings/terms"
	case PageCreate, PageAsk, PageFriends, PageEvents, PageSettings:
		return "/" + string(r.Page)
	}
	return "/status"
}
