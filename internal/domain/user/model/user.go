package model

import (
	"strings"
	"time"

	baseModel "seest/pkg/model"
)

// Visibility 收藏列表可见性
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Activities 当前状态标签
var Activities = []string{"Relaxing", "Working", "Vacation", "Eating", "Exercise", "Watching", "Music", "Others"}

// IsActivity 判断是否为合法的状态标签
func IsActivity(a string) bool {
	for _, v := range Activities {
		if v == a {
			return true
		}
	}
	return false
}

// Profile 用户资料，由注册流程创建
type Profile struct {
	baseModel.BaseModel
	baseModel.Versioned
	Email              string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name               string     `gorm:"type:varchar(100);not null" json:"name"`
	Username           *string    `gorm:"type:varchar(30);uniqueIndex" json:"username"`
	Avatar             string     `gorm:"type:text" json:"avatar"` // 单个字符或 data URI
	Bio                string     `gorm:"type:varchar(160)" json:"bio"`
	Activity           string     `gorm:"type:varchar(32)" json:"activity"`
	LastSeen           time.Time  `json:"lastSeen"`
	LastUsernameChange *time.Time `json:"lastUsernameChange,omitempty"`
	SavedVisibility    Visibility `gorm:"type:varchar(16);not null;default:'public'" json:"savedVisibility"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Handle 用户名，未设置时取邮箱 @ 之前的部分
func (p *Profile) Handle() string {
	if p.Username != nil && *p.Username != "" {
		return *p.Username
	}
	return EmailLocalPart(p.Email)
}

// EmailLocalPart 邮箱 @ 之前的部分
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// Follow 关注关系
type Follow struct {
	baseModel.BaseModel
	FollowerID  string `gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair" json:"followerId"`
	FollowingID string `gorm:"type:uuid;not null;uniqueIndex:idx_follow_pair;index" json:"followingId"`
}

func (Follow) TableName() string {
	return "follows"
}

// SavedPost 收藏（归档）的动态
type SavedPost struct {
	baseModel.BaseModel
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_saved_pair" json:"userId"`
	PostID string `gorm:"type:uuid;not null;uniqueIndex:idx_saved_pair" json:"postId"`
}

func (SavedPost) TableName() string {
	return "saved_posts"
}

// UserView 客户端使用的扁平化用户视图
type UserView struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Username           string     `json:"username" copier:"-"`
	Avatar             string     `json:"avatar"`
	Bio                string     `json:"bio"`
	Activity           string     `json:"activity"`
	LastSeen           time.Time  `json:"lastSeen"`
	LastUsernameChange *time.Time `json:"lastUsernameChange,omitempty"`
	SavedVisibility    Visibility `json:"savedVisibility"`
	Version            int64      `json:"version"`
	Followers          []string   `json:"followers"`
	Following          []string   `json:"following"`
	FavoritePostIDs    []string   `json:"favoritePostIds"`
}

// ProfileUpdate 资料修改，nil 字段不修改
type ProfileUpdate struct {
	Name     *string `json:"name"`
	Bio      *string `json:"bio"`
	Activity *string `json:"activity"`
	Username *string `json:"username"`
	Avatar   *string `json:"avatar"`
	// Version 客户端持有的版本号，0 表示不校验
	Version int64 `json:"version"`
}
