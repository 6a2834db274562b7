package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// StringValidator 字符串验证器，长度按字符（rune）计算
type StringValidator struct {
	Field     string
	MinLength int
	MaxLength int
	Required  bool
	Pattern   *regexp.Regexp
	// PatternMessage 模式不匹配时的提示
	PatternMessage string
}

// NewStringValidator 创建字符串验证器，maxLength 为 0 表示不限
func NewStringValidator(field string, minLength, maxLength int, required bool) *StringValidator {
	return &StringValidator{
		Field:     field,
		MinLength: minLength,
		MaxLength: maxLength,
		Required:  required,
	}
}

// WithPattern 设置正则表达式模式
func (sv *StringValidator) WithPattern(pattern, message string) *StringValidator {
	sv.Pattern = regexp.MustCompile(pattern)
	sv.PatternMessage = message
	return sv
}

// Validate 验证字符串
func (sv *StringValidator) Validate(str string) error {
	if str == "" {
		if sv.Required {
			return fmt.Errorf("%s is required", sv.Field)
		}
		return nil
	}

	length := utf8.RuneCountInString(str)
	if length < sv.MinLength {
		return fmt.Errorf("%s must be at least %d characters", sv.Field, sv.MinLength)
	}
	if sv.MaxLength > 0 && length > sv.MaxLength {
		return fmt.Errorf("%s must be at most %d characters", sv.Field, sv.MaxLength)
	}

	if sv.Pattern != nil && !sv.Pattern.MatchString(str) {
		if sv.PatternMessage != "" {
			return fmt.Errorf("%s", sv.PatternMessage)
		}
		return fmt.Errorf("%s has an invalid format", sv.Field)
	}

	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// NormalizeEmail 清理邮箱
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// OneOf 校验取值是否在允许集合中
func OneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s", field, strings.Join(allowed, ", "))
}
