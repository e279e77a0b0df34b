// Package fields 值类型注册表：把语义类型映射到字段种类与表单控件。
package fields

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"liveconf/internal/errors"
	"liveconf/internal/model"
)

// Mapping 一个值类型对应的字段种类、控件及选项
type Mapping struct {
	Kind     Kind
	Widget   Widget
	Attrs    map[string]string
	Required bool
}

// Choices 返回 choice 种类的可选项，其他种类为 nil
func (m Mapping) Choices() []Choice {
	if c, ok := m.Kind.(interface{ Choices() []Choice }); ok {
		return c.Choices()
	}
	return nil
}

// Extension 由配置文件 additional_fields 声明的扩展类型
type Extension struct {
	Kind     string            `yaml:"kind"`
	Widget   string            `yaml:"widget"`
	Attrs    map[string]string `yaml:"attrs"`
	Choices  []Choice          `yaml:"choices"`
	Required *bool             `yaml:"required"`
}

// Registry 值类型注册表；Freeze 之后只读
type Registry struct {
	mu       sync.RWMutex
	mappings map[model.ValueType]Mapping
	kinds    map[string]KindFactory
	widgets  map[string]Widget
	frozen   bool
}

// NewRegistry 创建包含内置类型的注册表
func NewRegistry() *Registry {
	r := &Registry{
		mappings: make(map[model.ValueType]Mapping),
		kinds:    builtinKinds(),
		widgets:  builtinWidgets(),
	}
	w := r.widgets
	size10 := map[string]string{"size": "10"}
	r.mappings[model.TypeBool] = Mapping{Kind: booleanKind{}, Widget: w["checkbox"], Required: false}
	r.mappings[model.TypeInt] = Mapping{Kind: integerKind{}, Widget: w["text"], Attrs: size10, Required: true}
	r.mappings[model.TypeDecimal] = Mapping{Kind: decimalKind{}, Widget: w["number"], Required: true}
	r.mappings[model.TypeString] = Mapping{Kind: charKind{}, Widget: w["textarea"], Required: false}
	r.mappings[model.TypeDateTime] = Mapping{Kind: dateTimeKind{}, Widget: w["splitdatetime"], Required: true}
	r.mappings[model.TypeDate] = Mapping{Kind: dateKind{}, Widget: w["date"], Required: true}
	r.mappings[model.TypeTime] = Mapping{Kind: timeKind{}, Widget: w["time"], Required: true}
	r.mappings[model.TypeFloat] = Mapping{Kind: floatKind{}, Widget: w["number"], Required: true}
	return r
}

func builtinKinds() map[string]KindFactory {
	static := func(k Kind) KindFactory {
		return func(KindOptions) (Kind, error) { return k, nil }
	}
	return map[string]KindFactory{
		"boolean":  static(booleanKind{}),
		"integer":  static(integerKind{}),
		"decimal":  static(decimalKind{}),
		"char":     static(charKind{}),
		"date":     static(dateKind{}),
		"datetime": static(dateTimeKind{}),
		"time":     static(timeKind{}),
		"float":    static(floatKind{}),
		"choice":   newChoiceKind,
		"email":    static(emailKind{}),
		"url":      static(urlKind{}),
	}
}

// defaultWidgetForKind 扩展类型未指定控件时的默认控件
var defaultWidgetForKind = map[string]string{
	"boolean":  "checkbox",
	"integer":  "text",
	"decimal":  "number",
	"char":     "text",
	"date":     "date",
	"datetime": "splitdatetime",
	"time":     "time",
	"float":    "number",
	"choice":   "select",
	"email":    "email",
	"url":      "url",
}

func (r *Registry) checkWritable() error {
	if r.frozen {
		return fmt.Errorf("field registry is frozen")
	}
	return nil
}

// Register 注册或覆盖一个值类型映射
func (r *Registry) Register(t model.ValueType, m Mapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	if t == "" {
		return fmt.Errorf("empty value type")
	}
	if m.Kind == nil || m.Widget == nil {
		return fmt.Errorf("mapping for %q requires kind and widget", t)
	}
	r.mappings[t] = m
	return nil
}

// RegisterKind 注册字段种类构造器，供扩展类型按名称引用
func (r *Registry) RegisterKind(name string, f KindFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	if name == "" || f == nil {
		return fmt.Errorf("invalid field kind registration")
	}
	r.kinds[name] = f
	return nil
}

// RegisterWidget 注册控件，供扩展类型按名称引用
func (r *Registry) RegisterWidget(name string, w Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWritable(); err != nil {
		return err
	}
	if name == "" || w == nil {
		return fmt.Errorf("invalid widget registration")
	}
	r.widgets[name] = w
	return nil
}

// Extend 按名称组合已注册的字段种类与控件，声明新的值类型
func (r *Registry) Extend(t model.ValueType, ext Extension) error {
	r.mu.RLock()
	factory, ok := r.kinds[ext.Kind]
	widgetName := ext.Widget
	if widgetName == "" {
		widgetName = defaultWidgetForKind[ext.Kind]
	}
	widget, wok := r.widgets[widgetName]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("additional field %q: unknown field kind %q (known: %v)", t, ext.Kind, r.kindNames())
	}
	if !wok {
		return fmt.Errorf("additional field %q: unknown widget %q", t, widgetName)
	}
	kind, err := factory(KindOptions{Choices: ext.Choices})
	if err != nil {
		return fmt.Errorf("additional field %q: %w", t, err)
	}
	required := ext.Kind != "boolean"
	if ext.Required != nil {
		required = *ext.Required
	}
	return r.Register(t, Mapping{Kind: kind, Widget: widget, Attrs: ext.Attrs, Required: required})
}

func (r *Registry) kindNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.kinds))
	for n := range r.kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Freeze 冻结注册表，之后的注册调用均返回错误
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup 按值类型查找映射
func (r *Registry) Lookup(t model.ValueType) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[t]
	return m, ok
}

// Resolve 解析设置项的值类型：显式类型优先，否则由默认值推断
func (r *Registry) Resolve(s model.Setting) (model.ValueType, Mapping, error) {
	t := s.Type
	if t == "" {
		inferred, ok := InferType(s.Default)
		if !ok {
			return "", Mapping{}, errors.UnsupportedConfigType(s.Name, goTypeName(s.Default))
		}
		t = inferred
	}
	m, ok := r.Lookup(t)
	if !ok {
		return "", Mapping{}, errors.UnsupportedConfigType(s.Name, string(t))
	}
	return t, m, nil
}

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	timeType    = reflect.TypeOf(time.Time{})
)

// InferType 由 Go 默认值推断值类型
func InferType(v any) (model.ValueType, bool) {
	if v == nil {
		return "", false
	}
	rt := reflect.TypeOf(v)
	switch rt {
	case decimalType:
		return model.TypeDecimal, true
	case timeType:
		return model.TypeDateTime, true
	}
	switch rt.Kind() {
	case reflect.Bool:
		return model.TypeBool, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rt.PkgPath() != "" {
			return "", false
		}
		return model.TypeInt, true
	case reflect.Float32, reflect.Float64:
		if rt.PkgPath() != "" {
			return "", false
		}
		return model.TypeFloat, true
	case reflect.String:
		if rt.PkgPath() != "" {
			return "", false
		}
		return model.TypeString, true
	}
	return "", false
}

func goTypeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
