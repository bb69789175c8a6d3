package models

import (
	"time"
)

// 对话角色
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
)

// ConversationTurn 文档对话记录，只追加不修改
// ID 由数据库自增生成，同一时间戳内作为先后顺序
type ConversationTurn struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	OwnerID    string    `gorm:"column:owner_id;size:128;not null;index:idx_turn_owner_doc_time,priority:1" json:"owner_id"`
	DocumentID string    `gorm:"column:document_id;size:64;not null;index:idx_turn_owner_doc_time,priority:2" json:"document_id"`
	Role       string    `gorm:"column:role;size:20;not null" json:"role"`
	Message    string    `gorm:"column:message;type:text;not null" json:"message"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index:idx_turn_owner_doc_time,priority:3" json:"created_at"`
}

func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
