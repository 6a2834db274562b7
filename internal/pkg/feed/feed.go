package feed

import (
	"math"
	"sort"
	"strings"
	"time"

	postModel "seest/internal/domain/post/model"
	userModel "seest/internal/domain/user/model"
)

// RetentionWindow 动态默认保留时长
const RetentionWindow = 24 * time.Hour

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// IsMutual viewer 与 id 互相关注
func IsMutual(viewer userModel.UserView, id string) bool {
	return id != viewer.ID && contains(viewer.Following, id) && contains(viewer.Followers, id)
}

// Mutuals 与 viewer 互相关注的用户，保持 users 的顺序
func Mutuals(viewer userModel.UserView, users []userModel.UserView) []userModel.UserView {
	out := []userModel.UserView{}
	for _, u := range users {
		if IsMutual(viewer, u.ID) {
			out = append(out, u)
		}
	}
	return out
}

// Status 首页动态：viewer 自己或互关好友发布的状态动态，activity 非空时按状态过滤
func Status(viewer userModel.UserView, posts []postModel.PostView, activity string) []postModel.PostView {
	out := []postModel.PostView{}
	for _, p := range posts {
		if p.PostType != postModel.TypeStatus {
			continue
		}
		if activity != "" && p.Activity != activity {
			continue
		}
		id, ok := p.Author.UserID()
		if !ok {
			continue
		}
		if id == viewer.ID || IsMutual(viewer, id) {
			out = append(out, p)
		}
	}
	return out
}

// Ask 所有提问动态，不区分作者
func Ask(posts []postModel.PostView) []postModel.PostView {
	out := []postModel.PostView{}
	for _, p := range posts {
		if p.PostType == postModel.TypeAsk {
			out = append(out, p)
		}
	}
	return out
}

// StoryReel 首页动态中除 viewer 外的作者，去重后按显示名排序
func StoryReel(viewer userModel.UserView, statusFeed []postModel.PostView, users []userModel.UserView) []userModel.UserView {
	byID := make(map[string]userModel.UserView, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	seen := make(map[string]bool)
	out := []userModel.UserView{}
	for _, p := range statusFeed {
		id, ok := p.Author.UserID()
		if !ok || id == viewer.ID || seen[id] {
			continue
		}
		u, ok := byID[id]
		if !ok {
			continue
		}
		seen[id] = true
		out = append(out, u)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Expired 发布时间距今超过保留时长
func Expired(createdAt, now time.Time, window time.Duration) bool {
	return now.Sub(createdAt) > window
}

// Active 未过期或已收藏的动态，保持原顺序
func Active(posts []postModel.PostView, now time.Time, bookmarks []string, window time.Duration) []postModel.PostView {
	out := []postModel.PostView{}
	for _, p := range posts {
		if !Expired(p.CreatedAt, now, window) || contains(bookmarks, p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// ExpiresInHours 距离过期的剩余小时数，向上取整，已过期为 0
func ExpiresInHours(createdAt, now time.Time, window time.Duration) int {
	left := createdAt.Add(window).Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Hours()))
}
