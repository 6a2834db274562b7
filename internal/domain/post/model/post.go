package model

import (
	"encoding/json"
	"errors"
	"time"

	baseModel "seest/pkg/model"

	"gorm.io/datatypes"
)

// PostType 动态类型
type PostType string

const (
	TypeStatus PostType = "status"
	TypeAsk    PostType = "ask"
)

// MediaType 媒体类型
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MaxTextLength 动态正文最大字符数
const MaxTextLength = 150

// MaxImages 单条动态最多图片数
const MaxImages = 5

// ReactionEmojis 允许的表情
var ReactionEmojis = []string{"👍", "❤️", "😂", "😮", "😢"}

// IsReaction 判断是否为合法表情
func IsReaction(emoji string) bool {
	for _, e := range ReactionEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

// Media 内联媒体，URL 通常为 data URI
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// Post 动态
type Post struct {
	baseModel.BaseModel
	baseModel.Versioned
	UserID          string         `gorm:"type:uuid;not null;index" json:"userId"`
	Activity        string         `gorm:"type:varchar(32);not null" json:"activity"`
	Text            string         `gorm:"type:varchar(150)" json:"text"`
	Media           datatypes.JSON `gorm:"type:jsonb" json:"media"`
	BackgroundColor *string        `gorm:"type:varchar(128)" json:"backgroundColor,omitempty"`
	PostType        PostType       `gorm:"type:varchar(16);not null;default:'status'" json:"postType"`
	AspectRatio     string         `gorm:"type:varchar(16)" json:"aspectRatio,omitempty"`

	// 关联
	Reactions []Reaction `gorm:"foreignKey:PostID" json:"reactions,omitempty"`
	Comments  []Comment  `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	Replies   []Reply    `gorm:"foreignKey:PostID" json:"replies,omitempty"`
}

func (Post) TableName() string {
	return "posts"
}

// MediaList 解析媒体列表
func (p *Post) MediaList() ([]Media, error) {
	if len(p.Media) == 0 {
		return []Media{}, nil
	}
	var list []Media
	if err := json.Unmarshal(p.Media, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Media{}
	}
	return list, nil
}

// EncodeMedia 序列化媒体列表
func EncodeMedia(list []Media) datatypes.JSON {
	if list == nil {
		list = []Media{}
	}
	b, _ := json.Marshal(list)
	return datatypes.JSON(b)
}

// Reaction 表情回应，每人每条动态最多一个
type Reaction struct {
	baseModel.BaseModel
	PostID string `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_pair" json:"postId"`
	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_reaction_pair" json:"userId"`
	Emoji  string `gorm:"type:varchar(16);not null" json:"emoji"`
}

func (Reaction) TableName() string {
	return "post_reactions"
}

// Comment 状态动态的评论
type Comment struct {
	baseModel.BaseModel
	PostID string `gorm:"type:uuid;not null;index" json:"postId"`
	UserID string `gorm:"type:uuid;not null" json:"userId"`
	Text   string `gorm:"type:text;not null" json:"text"`
}

func (Comment) TableName() string {
	return "post_comments"
}

// Reply 提问动态的回答
type Reply struct {
	baseModel.BaseModel
	PostID string `gorm:"type:uuid;not null;index" json:"postId"`
	UserID string `gorm:"type:uuid;not null" json:"userId"`
	Text   string `gorm:"type:text;not null" json:"text"`
}

func (Reply) TableName() string {
	return "post_replies"
}

// Author 作者，要么是具体用户，要么匿名
type Author struct {
	id        string
	anonymous bool
}

// Authored 具名作者
func Authored(userID string) Author {
	return Author{id: userID}
}

// Anonymous 匿名作者
func Anonymous() Author {
	return Author{anonymous: true}
}

// IsAnonymous 是否匿名
func (a Author) IsAnonymous() bool {
	return a.anonymous
}

// UserID 具名作者的 id，匿名时 ok 为 false
func (a Author) UserID() (string, bool) {
	if a.anonymous {
		return "", false
	}
	return a.id, true
}

// Is 是否为指定用户；匿名作者不等于任何人
func (a Author) Is(userID string) bool {
	return !a.anonymous && a.id != "" && a.id == userID
}

type authorJSON struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

func (a Author) MarshalJSON() ([]byte, error) {
	if a.anonymous {
		return json.Marshal(authorJSON{Kind: "anonymous"})
	}
	return json.Marshal(authorJSON{Kind: "user", ID: a.id})
}

func (a *Author) UnmarshalJSON(b []byte) error {
	var v authorJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.Kind {
	case "anonymous":
		*a = Anonymous()
	case "user":
		if v.ID == "" {
			return errors.New("authored post without user id")
		}
		*a = Authored(v.ID)
	default:
		return errors.New("unknown author kind " + v.Kind)
	}
	return nil
}

// CommentView 评论视图
type CommentView struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostView 客户端使用的动态视图
type PostView struct {
	ID              string            `json:"id"`
	Author          Author            `json:"author"`
	Activity        string            `json:"activity"`
	Text            string            `json:"text"`
	Media           []Media           `json:"media"`
	BackgroundColor *string           `json:"backgroundColor,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	Reactions       map[string]string `json:"reactions"` // userId -> emoji
	PostType        PostType          `json:"postType"`
	Comments        []CommentView     `json:"comments"`
	Replies         []CommentView     `json:"replies"`
	AspectRatio     string            `json:"aspectRatio,omitempty"`
	OwnedByViewer   bool              `json:"ownedByViewer"`
	ExpiresInHours  int               `json:"expiresInHours"`
	Version         int64             `json:"version"`
}

// CreateInput 发布动态
type CreateInput struct {
	Activity        string   `json:"activity" binding:"required"`
	Text            string   `json:"text"`
	Media           []Media  `json:"media"`
	BackgroundColor *string  `json:"backgroundColor"`
	PostType        PostType `json:"postType"`
	AspectRatio     string   `json:"aspectRatio"`
}

// UpdateInput 修改动态正文/状态
type UpdateInput struct {
	Text     string `json:"text"`
	Activity string `json:"activity" binding:"required"`
	Version  int64  `json:"version"`
}
