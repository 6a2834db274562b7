package model

import (
	"sort"
	"time"
)

// Message 私信，文字与图片至少有一个
type Message struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"senderId"`
	ReceiverID string    `db:"receiver_id" json:"receiverId"`
	Text       *string   `db:"text" json:"text,omitempty"`
	ImageURL   *string   `db:"image_url" json:"imageUrl,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}

// Involves 是否为 userID 发出或收到的私信
func (m *Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Peer 对 userID 而言的对方
func (m *Message) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// SendInput 发送私信
type SendInput struct {
	ReceiverID string  `json:"receiverId" binding:"required"`
	Text       *string `json:"text"`
	ImageURL   *string `json:"imageUrl"`
}

// Conversation 与某个用户的全部私信，按时间升序
type Conversation struct {
	PeerID   string    `json:"peerId"`
	Messages []Message `json:"messages"`
	LastAt   time.Time `json:"lastAt"`
}

// GroupConversations 按无序用户对分组，最近有消息的会话在前
func GroupConversations(userID string, msgs []Message) []Conversation {
	index := make(map[string]int)
	out := []Conversation{}
	for _, m := range msgs {
		if !m.Involves(userID) {
			continue
		}
		peer := m.Peer(userID)
		i, ok := index[peer]
		if !ok {
			i = len(out)
			index[peer] = i
			out = append(out, Conversation{PeerID: peer})
		}
		out[i].Messages = append(out[i].Messages, m)
	}

	for i := range out {
		msgs := out[i].Messages
		sort.SliceStable(msgs, func(a, b int) bool { return msgs[a].CreatedAt.Before(msgs[b].CreatedAt) })
		out[i].LastAt = msgs[len(msgs)-1].CreatedAt
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].LastAt.After(out[b].LastAt) })
	return out
}

// Between 两人之间的私信，按时间升序
func Between(userID, peerID string, msgs []Message) []Message {
	out := []Message{}
	for _, m := range msgs {
		if m.Involves(userID) && m.Peer(userID) == peerID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}
