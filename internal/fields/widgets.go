package fields

import (
	"html/template"
	"net/url"
	"sort"
	"strings"
)

// Widget HTML 输入控件
type Widget interface {
	Name() string
	// Render 渲染控件；value 为字段种类给出的规范字符串
	Render(name, value string, attrs map[string]string, choices []Choice) template.HTML
	// ValueFromData 从提交的表单数据中取出原始字符串；ok=false 表示未提交
	ValueFromData(data url.Values, name string) (string, bool)
}

func renderAttrs(b *strings.Builder, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(template.HTMLEscapeString(k))
		b.WriteString(`="`)
		b.WriteString(template.HTMLEscapeString(attrs[k]))
		b.WriteString(`"`)
	}
}

func singleValue(data url.Values, name string) (string, bool) {
	vs, ok := data[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

// inputWidget <input type=...>
type inputWidget struct {
	name      string
	inputType string
	attrs     map[string]string
}

func (w *inputWidget) Name() string { return w.name }

func (w *inputWidget) Render(name, value string, attrs map[string]string, _ []Choice) template.HTML {
	var b strings.Builder
	merged := mergeAttrs(w.attrs, attrs)
	merged["type"] = w.inputType
	merged["name"] = name
	merged["id"] = "id_" + name
	if value != "" {
		merged["value"] = value
	}
	b.WriteString("<input")
	renderAttrs(&b, merged)
	b.WriteString(">")
	return template.HTML(b.String())
}

func (w *inputWidget) ValueFromData(data url.Values, name string) (string, bool) {
	return singleValue(data, name)
}

// textareaWidget <textarea>
type textareaWidget struct {
	attrs map[string]string
}

func (w *textareaWidget) Name() string { return "textarea" }

func (w *textareaWidget) Render(name, value string, attrs map[string]string, _ []Choice) template.HTML {
	var b strings.Builder
	merged := mergeAttrs(w.attrs, attrs)
	merged["name"] = name
	merged["id"] = "id_" + name
	b.WriteString("<textarea")
	renderAttrs(&b, merged)
	b.WriteString(">\n")
	b.WriteString(template.HTMLEscapeString(value))
	b.WriteString("</textarea>")
	return template.HTML(b.String())
}

func (w *textareaWidget) ValueFromData(data url.Values, name string) (string, bool) {
	return singleValue(data, name)
}

// checkboxWidget 未勾选时浏览器不提交该字段，视为 false
type checkboxWidget struct{}

func (checkboxWidget) Name() string { return "checkbox" }

func (checkboxWidget) Render(name, value string, attrs map[string]string, _ []Choice) template.HTML {
	var b strings.Builder
	merged := mergeAttrs(nil, attrs)
	merged["type"] = "checkbox"
	merged["name"] = name
	merged["id"] = "id_" + name
	if value == "true" {
		merged["checked"] = "checked"
	}
	b.WriteString("<input")
	renderAttrs(&b, merged)
	b.WriteString(">")
	return template.HTML(b.String())
}

func (checkboxWidget) ValueFromData(data url.Values, name string) (string, bool) {
	v, ok := singleValue(data, name)
	if !ok {
		return "false", true
	}
	switch strings.ToLower(v) {
	case "false", "0", "off":
		return "false", true
	}
	return "true", true
}

// splitDateTimeWidget 日期与时间两个输入框：name_0 / name_1
type splitDateTimeWidget struct{}

func (splitDateTimeWidget) Name() string { return "splitdatetime" }

func (splitDateTimeWidget) Render(name, value string, attrs map[string]string, _ []Choice) template.HTML {
	datePart, timePart, _ := strings.Cut(value, " ")
	date := &inputWidget{name: "date", inputType: "text", attrs: map[string]string{"class": "vDateField", "size": "10"}}
	tm := &inputWidget{name: "time", inputType: "text", attrs: map[string]string{"class": "vTimeField", "size": "8"}}
	var b strings.Builder
	b.WriteString(`<p class="datetime">`)
	b.WriteString(string(date.Render(name+"_0", datePart, attrs, nil)))
	b.WriteString("<br>")
	b.WriteString(string(tm.Render(name+"_1", timePart, attrs, nil)))
	b.WriteString("</p>")
	return template.HTML(b.String())
}

func (splitDateTimeWidget) ValueFromData(data url.Values, name string) (string, bool) {
	d, okDate := singleValue(data, name+"_0")
	t, okTime := singleValue(data, name+"_1")
	if !okDate && !okTime {
		return singleValue(data, name)
	}
	d, t = strings.TrimSpace(d), strings.TrimSpace(t)
	if d == "" && t == "" {
		return "", true
	}
	if t == "" {
		t = "00:00:00"
	}
	return d + " " + t, true
}

// selectWidget <select>
type selectWidget struct{}

func (selectWidget) Name() string { return "select" }

func (selectWidget) Render(name, value string, attrs map[string]string, choices []Choice) template.HTML {
	var b strings.Builder
	merged := mergeAttrs(nil, attrs)
	merged["name"] = name
	merged["id"] = "id_" + name
	b.WriteString("<select")
	renderAttrs(&b, merged)
	b.WriteString(">")
	for _, c := range choices {
		label := c.Label
		if label == "" {
			label = c.Value
		}
		b.WriteString(`<option value="`)
		b.WriteString(template.HTMLEscapeString(c.Value))
		b.WriteString(`"`)
		if c.Value == value {
			b.WriteString(" selected")
		}
		b.WriteString(">")
		b.WriteString(template.HTMLEscapeString(label))
		b.WriteString("</option>")
	}
	b.WriteString("</select>")
	return template.HTML(b.String())
}

func (selectWidget) ValueFromData(data url.Values, name string) (string, bool) {
	return singleValue(data, name)
}

// HiddenWidget 用于 version 字段
var HiddenWidget Widget = &inputWidget{name: "hidden", inputType: "hidden"}

func mergeAttrs(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra)+4)
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// builtinWidgets 内置控件表（按名称查找，不做任何动态加载）
func builtinWidgets() map[string]Widget {
	return map[string]Widget{
		"text":          &inputWidget{name: "text", inputType: "text"},
		"number":        &inputWidget{name: "number", inputType: "text", attrs: map[string]string{"size": "10"}},
		"textarea":      &textareaWidget{attrs: map[string]string{"rows": "3", "cols": "40"}},
		"checkbox":      checkboxWidget{},
		"date":          &inputWidget{name: "date", inputType: "text", attrs: map[string]string{"class": "vDateField", "size": "10"}},
		"time":          &inputWidget{name: "time", inputType: "text", attrs: map[string]string{"class": "vTimeField", "size": "8"}},
		"splitdatetime": splitDateTimeWidget{},
		"select":        selectWidget{},
		"email":         &inputWidget{name: "email", inputType: "email"},
		"url":           &inputWidget{name: "url", inputType: "url"},
		"hidden":        HiddenWidget,
	}
}
