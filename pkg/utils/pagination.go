package utils

import "time"

// Pagination 游标分页参数，Before 为空时从最新开始
type Pagination struct {
	Limit  int       `json:"limit" form:"limit"`
	Before time.Time `json:"before" form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
}

// PageResult 分页响应结果
type PageResult struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Limit int         `json:"limit"`
}

// Normalize 规范化 limit，返回实际使用的值
func (p *Pagination) Normalize(def, max int) int {
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p.Limit
}
