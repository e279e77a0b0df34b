package model

import (
	"errors"
	"html/template"
)

// ErrSettingNotFound 配置项不存在（未在 schema 中声明）
var ErrSettingNotFound = errors.New("setting not found")

// ValueType 配置值的语义类型（bool/int/decimal/string/date/datetime/time/float 及扩展类型）
type ValueType string

// 内置值类型
const (
	TypeBool     ValueType = "bool"
	TypeInt      ValueType = "int"
	TypeDecimal  ValueType = "decimal"
	TypeString   ValueType = "string"
	TypeDate     ValueType = "date"
	TypeDateTime ValueType = "datetime"
	TypeTime     ValueType = "time"
	TypeFloat    ValueType = "float"
)

// BuiltinTypes 按固定顺序返回内置类型
func BuiltinTypes() []ValueType {
	return []ValueType{TypeBool, TypeInt, TypeDecimal, TypeString, TypeDate, TypeDateTime, TypeTime, TypeFloat}
}

// Setting 一个具名、带类型的配置项
// Default 使用 Go 原生表示：bool、int64、decimal.Decimal、string、time.Time、float64
type Setting struct {
	Name     string    `json:"name" yaml:"name"`
	Default  any       `json:"default" yaml:"default"`
	HelpText string    `json:"help_text" yaml:"help"`
	Type     ValueType `json:"type,omitempty" yaml:"type,omitempty"` // 空值表示按默认值推断
}

// Row 管理界面中的一行展示数据
type Row struct {
	Name     string        `json:"name"`
	Type     ValueType     `json:"type"`
	Default  string        `json:"default"`
	HelpText template.HTML `json:"help_text"`
	Value    string        `json:"value"`
	Modified bool          `json:"modified"`

	// Field 绑定的表单字段（仅HTML渲染使用）
	Field any `json:"-"`
}

// ChangeEvent 配置变更事件
type ChangeEvent struct {
	Name     string `json:"name"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}
