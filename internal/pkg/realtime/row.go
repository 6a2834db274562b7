package realtime

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm/schema"
)

var schemaCache sync.Map

// RowOf 按 gorm 列名把模型转换为行数据，与触发器 row_to_json 的形状一致
func RowOf(value interface{}) (map[string]interface{}, error) {
	s, err := schema.Parse(value, &schemaCache, schema.NamingStrategy{})
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	rv := reflect.Indirect(reflect.ValueOf(value))
	row := make(map[string]interface{}, len(s.DBNames))
	for _, f := range s.Fields {
		if f.DBName == "" || f.DataType == "" {
			continue
		}
		v, _ := f.ValueOf(context.Background(), rv)
		row[f.DBName] = v
	}
	return row, nil
}

// PublishModel 发布模型对应行的变更
func PublishModel(ctx context.Context, p Publisher, table string, typ ChangeType, id string, value interface{}) error {
	row, err := RowOf(value)
	if err != nil {
		return err
	}
	return PublishRecord(ctx, p, table, typ, id, row)
}
