// Package schema 配置项声明：有序的 名称 → (默认值, 帮助文本, 可选类型)。
package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"liveconf/internal/fields"
	"liveconf/internal/model"
)

// TypeExtension 配置文件中声明的扩展值类型
type TypeExtension struct {
	Type      model.ValueType
	Extension fields.Extension
}

// Schema 有序的配置项集合，构造后只读
type Schema struct {
	settings   []model.Setting
	index      map[string]int
	extensions []TypeExtension
}

// New 按给定顺序创建 schema；名称为空或重复时返回错误
func New(settings ...model.Setting) (*Schema, error) {
	s := &Schema{index: make(map[string]int, len(settings))}
	for _, st := range settings {
		if err := s.add(st); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew 同 New，出错时 panic（用于 Go 代码内的静态声明）
func MustNew(settings ...model.Setting) *Schema {
	s, err := New(settings...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) add(st model.Setting) error {
	if st.Name == "" {
		return fmt.Errorf("setting name cannot be empty")
	}
	if _, dup := s.index[st.Name]; dup {
		return fmt.Errorf("duplicate setting %q", st.Name)
	}
	s.index[st.Name] = len(s.settings)
	s.settings = append(s.settings, st)
	return nil
}

// Settings 按声明顺序返回全部配置项（副本）
func (s *Schema) Settings() []model.Setting {
	out := make([]model.Setting, len(s.settings))
	copy(out, s.settings)
	return out
}

// Names 按声明顺序返回配置项名称
func (s *Schema) Names() []string {
	names := make([]string, len(s.settings))
	for i, st := range s.settings {
		names[i] = st.Name
	}
	return names
}

// Lookup 按名称查找配置项
func (s *Schema) Lookup(name string) (model.Setting, bool) {
	i, ok := s.index[name]
	if !ok {
		return model.Setting{}, false
	}
	return s.settings[i], true
}

// Len 配置项数量
func (s *Schema) Len() int { return len(s.settings) }

// Extensions 按声明顺序返回扩展类型
func (s *Schema) Extensions() []TypeExtension {
	return append([]TypeExtension(nil), s.extensions...)
}

// RegisterExtensions 把扩展类型注册到类型注册表
func (s *Schema) RegisterExtensions(reg *fields.Registry) error {
	for _, ext := range s.extensions {
		if err := reg.Extend(ext.Type, ext.Extension); err != nil {
			return err
		}
	}
	return nil
}

// Sample 内置示例 schema（未提供 LIVECONF_SCHEMA 时使用）
func Sample() *Schema {
	return MustNew(
		model.Setting{Name: "SITE_NAME", Default: "liveconf", HelpText: "Public name shown in page titles"},
		model.Setting{Name: "MAINTENANCE_MODE", Default: false, HelpText: "Reject non-admin traffic with 503"},
		model.Setting{Name: "MAX_UPLOAD_MB", Default: int64(10), HelpText: "Maximum upload size in megabytes"},
		model.Setting{Name: "PRICE_PER_UNIT", Default: decimal.RequireFromString("0.10"), HelpText: "Unit price used by the <em>billing</em> job"},
		model.Setting{Name: "SAMPLING_RATE", Default: 0.25, HelpText: "Fraction of requests traced"},
		model.Setting{Name: "LAUNCH_DATE", Default: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), HelpText: "Public launch date", Type: model.TypeDate},
		model.Setting{Name: "NEXT_MAINTENANCE", Default: time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC), HelpText: "Next maintenance window start"},
		model.Setting{Name: "DAILY_REPORT_AT", Default: time.Date(0, 1, 1, 8, 30, 0, 0, time.UTC), HelpText: "Time of day the report is mailed", Type: model.TypeTime},
	)
}
