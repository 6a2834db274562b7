package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ChangeType 变更类型
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Update ChangeType = "UPDATE"
	Delete ChangeType = "DELETE"
)

// ErrClosed 变更源已关闭
var ErrClosed = errors.New("realtime: source closed")

// Change 一条表级变更事件。Record 为行的 JSON 表示，删除时为删除前的行；
// 行过大时 Record 为空，订阅方需自行重新拉取。
type Change struct {
	Table  string          `json:"table"`
	Type   ChangeType      `json:"type"`
	ID     string          `json:"id"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// NewChange 构造变更事件，record 为 nil 时不携带行数据
func NewChange(table string, typ ChangeType, id string, record interface{}) (Change, error) {
	c := Change{Table: table, Type: typ, ID: id, At: time.Now()}
	if record != nil {
		data, err := json.Marshal(record)
		if err != nil {
			return c, fmt.Errorf("marshal %s record: %w", table, err)
		}
		c.Record = data
	}
	return c, nil
}

// Decode 将 Record 解码到 dest
func (c Change) Decode(dest interface{}) error {
	if len(c.Record) == 0 {
		return fmt.Errorf("change %s/%s carries no record", c.Table, c.ID)
	}
	return json.Unmarshal(c.Record, dest)
}

// Filter 订阅过滤条件。Tables、Types 为空时不限；AnyOf 中任一字段与行数据相等即命中。
type Filter struct {
	Tables []string          `json:"tables,omitempty"`
	Types  []ChangeType      `json:"types,omitempty"`
	AnyOf  map[string]string `json:"anyOf,omitempty"`
}

// Accept 判断变更是否满足过滤条件。无行数据时无法判断字段，按命中处理。
func (f Filter) Accept(c Change) bool {
	if len(f.Tables) > 0 && !contains(f.Tables, c.Table) {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if t == c.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.AnyOf) == 0 || len(c.Record) == 0 {
		return true
	}

	var row map[string]interface{}
	if err := json.Unmarshal(c.Record, &row); err != nil {
		return false
	}
	for field, want := range f.AnyOf {
		if v, ok := row[field]; ok && v != nil && fmt.Sprint(v) == want {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Publisher 变更发布方
type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Source 变更订阅方。返回的通道在 ctx 结束或底层连接断开时关闭，
// 调用方据此判断是否需要重新订阅并补拉数据。
type Source interface {
	Subscribe(ctx context.Context, f Filter) (<-chan Change, error)
}

// Discard 丢弃所有变更，数据库触发器负责产生变更时使用
type Discard struct{}

func (Discard) Publish(context.Context, Change) error { return nil }

// PublishRecord 构造并发布一条变更，发布失败只返回错误，不影响已完成的写入
func PublishRecord(ctx context.Context, p Publisher, table string, typ ChangeType, id string, record interface{}) error {
	c, err := NewChange(table, typ, id, record)
	if err != nil {
		return err
	}
	return p.Publish(ctx, c)
}
