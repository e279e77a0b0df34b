// Package forms 由 schema 与类型注册表动态生成的配置编辑表单。
package forms

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"liveconf/internal/errors"
	"liveconf/internal/fields"
	"liveconf/internal/model"
	"liveconf/internal/schema"
)

// VersionField 隐藏的版本指纹字段名
const VersionField = "version"

const msgRequired = "This field is required."

// Writer 保存时逐项写入的目标（后端存储或 ConfigService）
type Writer interface {
	Set(ctx context.Context, name string, value any) error
}

// ChangeWriter 可同时接收旧值的写入目标；Save 优先使用，旧值取自表单初始值
type ChangeWriter interface {
	Writer
	Change(ctx context.Context, name string, old, value any) error
}

// Field 表单中的一个字段，对应一个配置项
type Field struct {
	Setting model.Setting
	Type    model.ValueType
	Mapping fields.Mapping
	Initial any

	raw     string
	bound   bool
	cleaned any
	errors  []string
}

// Name 字段名（即配置项名）
func (f *Field) Name() string { return f.Setting.Name }

// FormattedInitial 初始值的规范字符串
func (f *Field) FormattedInitial() string { return f.Mapping.Kind.Format(f.Initial) }

// FormattedDefault 默认值的规范字符串
func (f *Field) FormattedDefault() string { return f.Mapping.Kind.Format(f.Setting.Default) }

// Value 渲染用的值：已绑定时为提交值，否则为初始值
func (f *Field) Value() string {
	if f.bound {
		return f.raw
	}
	return f.FormattedInitial()
}

// Errors 字段错误
func (f *Field) Errors() []string { return f.errors }

// Render 渲染字段控件
func (f *Field) Render() template.HTML {
	attrs := f.Mapping.Attrs
	if f.Mapping.Required && f.Mapping.Widget.Name() != "checkbox" {
		attrs = withAttr(attrs, "required", "required")
	}
	return f.Mapping.Widget.Render(f.Name(), f.Value(), attrs, f.Mapping.Choices())
}

func withAttr(attrs map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(attrs)+1)
	for key, val := range attrs {
		out[key] = val
	}
	out[k] = v
	return out
}

func (f *Field) clean(data url.Values) {
	f.bound = true
	raw, ok := f.Mapping.Widget.ValueFromData(data, f.Name())
	raw = strings.TrimSpace(raw)
	f.raw = raw
	if (!ok || raw == "") && f.Mapping.Required {
		f.errors = append(f.errors, msgRequired)
		return
	}
	v, err := f.Mapping.Kind.Coerce(raw)
	if err != nil {
		f.errors = append(f.errors, err.Error())
		return
	}
	f.cleaned = v
}

// Changed 清洗后的值与初始值是否不同
func (f *Field) Changed() bool {
	if !f.bound || len(f.errors) > 0 {
		return false
	}
	return f.Mapping.Kind.Format(f.cleaned) != f.FormattedInitial()
}

// Form 一次请求内的配置表单
type Form struct {
	fields  []*Field
	byName  map[string]*Field
	version string

	bound         bool
	validated     bool
	submitted     string
	concurrent    bool
	versionErrors []string
	errorsByField map[string][]string
}

// New 为 schema 中每个配置项创建一个字段，并根据 initial 计算版本指纹。
// initial 中缺失的配置项使用默认值。
func New(s *schema.Schema, reg *fields.Registry, initial map[string]any) (*Form, error) {
	f := &Form{byName: make(map[string]*Field, s.Len())}
	formatted := make([]string, 0, s.Len())
	for _, st := range s.Settings() {
		typ, mapping, err := reg.Resolve(st)
		if err != nil {
			return nil, err
		}
		v, ok := initial[st.Name]
		if !ok {
			v = st.Default
		}
		if coerced, err := mapping.Kind.Coerce(v); err == nil {
			v = coerced
		}
		field := &Field{Setting: st, Type: typ, Mapping: mapping, Initial: v}
		f.fields = append(f.fields, field)
		f.byName[st.Name] = field
		formatted = append(formatted, field.FormattedInitial())
	}
	f.version = Fingerprint(formatted)
	return f, nil
}

// Fields 按 schema 顺序返回字段
func (f *Form) Fields() []*Field { return f.fields }

// Field 按名称查找字段
func (f *Form) Field(name string) (*Field, bool) {
	field, ok := f.byName[name]
	return field, ok
}

// Version 构造时计算的版本指纹
func (f *Form) Version() string { return f.version }

// RenderVersion 渲染隐藏的版本字段；已绑定时回显提交的指纹
func (f *Form) RenderVersion() template.HTML {
	v := f.version
	if f.bound {
		v = f.submitted
	}
	return fields.HiddenWidget.Render(VersionField, v, nil, nil)
}

// InitialData 以提交格式返回初始值（含版本指纹），用于局部更新
func (f *Form) InitialData() url.Values {
	data := make(url.Values, len(f.fields)+1)
	for _, field := range f.fields {
		data.Set(field.Name(), field.FormattedInitial())
	}
	data.Set(VersionField, f.version)
	return data
}

// Bind 绑定提交的数据
func (f *Form) Bind(data url.Values) {
	f.bound = true
	f.validated = false
	f.submitted = strings.TrimSpace(data.Get(VersionField))
	for _, field := range f.fields {
		field.errors = nil
		field.cleaned = nil
		field.clean(data)
	}
}

// IsBound 是否已绑定提交数据
func (f *Form) IsBound() bool { return f.bound }

// IsValid 校验全部字段并比对版本指纹
func (f *Form) IsValid() bool {
	if !f.bound {
		return false
	}
	f.validate()
	return len(f.errorsByField) == 0
}

func (f *Form) validate() {
	if f.validated {
		return
	}
	f.validated = true
	f.errorsByField = make(map[string][]string)
	f.versionErrors = nil
	f.concurrent = false
	switch {
	case f.submitted == "":
		f.versionErrors = []string{msgRequired}
	case f.submitted != f.version:
		f.concurrent = true
		f.versionErrors = []string{errors.ConcurrentModification().Message}
	}
	if len(f.versionErrors) > 0 {
		f.errorsByField[VersionField] = f.versionErrors
	}
	for _, field := range f.fields {
		if len(field.errors) > 0 {
			f.errorsByField[field.Name()] = field.errors
		}
	}
}

// Errors 按字段名汇总的错误（指纹不一致记在 version 下）
func (f *Form) Errors() map[string][]string {
	if !f.bound {
		return nil
	}
	f.validate()
	return f.errorsByField
}

// VersionErrors 指纹校验错误
func (f *Form) VersionErrors() []string {
	if f.bound {
		f.validate()
	}
	return f.versionErrors
}

// HasConcurrentModification 是否因指纹不一致而校验失败（未提交指纹不算）
func (f *Form) HasConcurrentModification() bool {
	if !f.bound {
		return false
	}
	f.validate()
	return f.concurrent
}

// CleanedData 清洗后的值（仅在 IsValid 为 true 后有意义）
func (f *Form) CleanedData() map[string]any {
	out := make(map[string]any, len(f.fields))
	for _, field := range f.fields {
		if field.bound && len(field.errors) == 0 {
			out[field.Name()] = field.cleaned
		}
	}
	return out
}

// ChangedNames 按 schema 顺序返回值发生变化的字段名
func (f *Form) ChangedNames() []string {
	var names []string
	for _, field := range f.fields {
		if field.Changed() {
			names = append(names, field.Name())
		}
	}
	return names
}

// Save 逐项写入发生变化的字段，返回已写入的名称
func (f *Form) Save(ctx context.Context, w Writer) ([]string, error) {
	if !f.IsValid() {
		return nil, errors.ValidationFailed(f.Errors())
	}
	cw, _ := w.(ChangeWriter)
	var saved []string
	for _, name := range f.ChangedNames() {
		field := f.byName[name]
		var err error
		if cw != nil {
			err = cw.Change(ctx, name, field.Initial, field.cleaned)
		} else {
			err = w.Set(ctx, name, field.cleaned)
		}
		if err != nil {
			return saved, fmt.Errorf("save %s: %w", name, err)
		}
		saved = append(saved, name)
	}
	return saved, nil
}
