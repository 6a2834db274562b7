package model

import (
	baseModel "seest/pkg/model"
)

// Type 通知类型
type Type string

const (
	TypeLike    Type = "like"
	TypeComment Type = "comment"
	TypeFollow  Type = "follow"
	TypeAsk     Type = "ask"
)

// Notification 通知模型
type Notification struct {
	baseModel.BaseModel
	RecipientID string `gorm:"type:uuid;index;not null" json:"recipientId"`
	ActorID     string `gorm:"type:uuid;not null" json:"actorId"`
	Type        Type   `gorm:"type:varchar(16);not null" json:"type"`
	Text        string `gorm:"type:varchar(255)" json:"text"`
	EntityID    string `gorm:"type:varchar(64)" json:"entityId,omitempty"` // 关联的动态/用户 ID
	Read        bool   `gorm:"not null;default:false" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Draft 待发送的通知
type Draft struct {
	RecipientID string
	ActorID     string
	Type        Type
	Text        string
	EntityID    string
}
