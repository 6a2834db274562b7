package model

import (
	baseModel "seest/pkg/model"

	"github.com/lib/pq"
)

// EventType 直播间类型
type EventType string

const (
	TypeStandUp EventType = "stand-up"
	TypePodcast EventType = "podcast"
)

// Status 直播间状态，只能 live -> ended
type Status string

const (
	StatusLive  Status = "live"
	StatusEnded Status = "ended"
)

const (
	// MinPodcastSpeakers 播客至少邀请的嘉宾数（不含创建者）
	MinPodcastSpeakers = 2
	// MaxPodcastSpeakers 播客最多邀请的嘉宾数（不含创建者）
	MaxPodcastSpeakers = 5
)

// Event 直播间
type Event struct {
	baseModel.BaseModel
	baseModel.Versioned
	CreatorID       string         `gorm:"type:uuid;not null;index" json:"creatorId"`
	Title           string         `gorm:"type:varchar(50);not null" json:"title"`
	Description     string         `gorm:"type:varchar(200)" json:"description"`
	Type            EventType      `gorm:"type:varchar(16);not null" json:"type"`
	Speakers        pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"speakers"`
	Listeners       pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"listeners"`
	Moderators      pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"moderators"`
	MutedSpeakers   pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"mutedSpeakers"`
	PinnedCommentID *string        `gorm:"type:uuid" json:"pinnedCommentId"`
	Status          Status         `gorm:"type:varchar(16);not null;default:'live';index" json:"status"`
	CoverImage      string         `gorm:"type:text" json:"coverImage,omitempty"`

	Comments []Comment `gorm:"foreignKey:EventID" json:"comments"`
}

func (Event) TableName() string {
	return "events"
}

// FindComment 按 id 查找评论
func (e *Event) FindComment(id string) (*Comment, bool) {
	for i := range e.Comments {
		if e.Comments[i].ID == id {
			return &e.Comments[i], true
		}
	}
	return nil, false
}

// Comment 直播间评论
type Comment struct {
	baseModel.BaseModel
	EventID string `gorm:"type:uuid;not null;index" json:"eventId"`
	UserID  string `gorm:"type:uuid;not null" json:"userId"`
	Text    string `gorm:"type:text;not null" json:"text"`
}

func (Comment) TableName() string {
	return "event_comments"
}

// CreateInput 创建直播间
type CreateInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Type        EventType `json:"type" binding:"required,oneof=stand-up podcast"`
	Speakers    []string  `json:"speakers"` // 受邀嘉宾，不含创建者
	CoverImage  string    `json:"coverImage"`
}

// Has 列表中是否包含 id
func Has(list pq.StringArray, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle 存在则移除，不存在则追加
func Toggle(list pq.StringArray, id string) pq.StringArray {
	if Has(list, id) {
		return Remove(list, id)
	}
	return append(list, id)
}

// Remove 移除 id，返回新列表
func Remove(list pq.StringArray, id string) pq.StringArray {
	out := pq.StringArray{}
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
