package fields

import (
	"errors"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 表单/存储中使用的时间格式
const (
	DateLayout     = "2006-01-02"
	TimeLayout     = "15:04:05"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// Kind 字段种类：负责把任意来源（默认值、后端值、表单字符串）转换为声明类型，
// 并给出规范字符串形式（用于表单初始值、展示和版本指纹）。
type Kind interface {
	Name() string
	Coerce(v any) (any, error)
	Format(v any) string
}

// Choice 下拉选项
type Choice struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// KindOptions 扩展字段种类的构造参数
type KindOptions struct {
	Choices []Choice
}

// KindFactory 按参数构造字段种类
type KindFactory func(opts KindOptions) (Kind, error)

var errUnsupportedValue = errors.New("unsupported value")

func typeError(kind string, v any) error {
	return fmt.Errorf("%w: cannot use %T as %s", errUnsupportedValue, v, kind)
}

// ==================== boolean ====================

type booleanKind struct{}

func (booleanKind) Name() string { return "boolean" }

func (booleanKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "false", "0", "off", "no":
			return false, nil
		case "true", "1", "on", "yes":
			return true, nil
		}
		return nil, fmt.Errorf("'%s' is not a valid boolean", x)
	}
	if n, ok := asInt64(v); ok && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return nil, typeError("boolean", v)
}

func (k booleanKind) Format(v any) string {
	b, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strconv.FormatBool(b.(bool))
}

// ==================== integer ====================

type integerKind struct{}

func (integerKind) Name() string { return "integer" }

func (integerKind) Coerce(v any) (any, error) {
	if n, ok := asInt64(v); ok {
		return n, nil
	}
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<63 {
			return int64(x), nil
		}
		return nil, fmt.Errorf("%v is not a whole number", x)
	case float32:
		return integerKind{}.Coerce(float64(x))
	case decimal.Decimal:
		if x.IsInteger() {
			return x.IntPart(), nil
		}
		return nil, fmt.Errorf("%s is not a whole number", x.String())
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, errors.New("Enter a whole number.")
		}
		return n, nil
	}
	return nil, typeError("integer", v)
}

func (k integerKind) Format(v any) string {
	n, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strconv.FormatInt(n.(int64), 10)
}

// ==================== float ====================

type floatKind struct{}

func (floatKind) Name() string { return "float" }

func (floatKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case decimal.Decimal:
		f, _ := x.Float64()
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.New("Enter a number.")
		}
		return f, nil
	}
	if n, ok := asInt64(v); ok {
		return float64(n), nil
	}
	return nil, typeError("float", v)
}

func (k floatKind) Format(v any) string {
	f, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strconv.FormatFloat(f.(float64), 'f', -1, 64)
}

// ==================== decimal ====================

type decimalKind struct{}

func (decimalKind) Name() string { return "decimal" }

func (decimalKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return nil, typeError("decimal", v)
		}
		return *x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return nil, errors.New("Enter a number.")
		}
		return d, nil
	}
	if n, ok := asInt64(v); ok {
		return decimal.NewFromInt(n), nil
	}
	return nil, typeError("decimal", v)
}

func (k decimalKind) Format(v any) string {
	d, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return d.(decimal.Decimal).String()
}

// ==================== char ====================

type charKind struct{}

func (charKind) Name() string { return "char" }

func (charKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case nil:
		return "", nil
	}
	return nil, typeError("string", v)
}

func (k charKind) Format(v any) string {
	s, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s.(string)
}

// ==================== date / datetime / time ====================

type dateKind struct{}

func (dateKind) Name() string { return "date" }

func (dateKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		t, err := parseTimeLayouts(strings.TrimSpace(x), DateLayout, time.RFC3339Nano, DateTimeLayout)
		if err != nil {
			return nil, errors.New("Enter a valid date.")
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return nil, typeError("date", v)
}

func (k dateKind) Format(v any) string {
	t, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return t.(time.Time).Format(DateLayout)
}

type dateTimeKind struct{}

func (dateTimeKind) Name() string { return "datetime" }

func (dateTimeKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Truncate(time.Second), nil
	case string:
		t, err := parseTimeLayouts(strings.TrimSpace(x),
			DateTimeLayout, time.RFC3339Nano, "2006-01-02 15:04", "2006-01-02T15:04:05", DateLayout)
		if err != nil {
			return nil, errors.New("Enter a valid date/time.")
		}
		return t.UTC().Truncate(time.Second), nil
	}
	return nil, typeError("datetime", v)
}

func (k dateTimeKind) Format(v any) string {
	t, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return t.(time.Time).Format(DateTimeLayout)
}

type timeKind struct{}

func (timeKind) Name() string { return "time" }

func (timeKind) Coerce(v any) (any, error) {
	switch x := v.(type) {
	case time.Time:
		return time.Date(0, 1, 1, x.Hour(), x.Minute(), x.Second(), 0, time.UTC), nil
	case string:
		t, err := parseTimeLayouts(strings.TrimSpace(x), TimeLayout, "15:04", time.RFC3339Nano)
		if err != nil {
			return nil, errors.New("Enter a valid time.")
		}
		return time.Date(0, 1, 1, t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
	}
	return nil, typeError("time", v)
}

func (k timeKind) Format(v any) string {
	t, err := k.Coerce(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return t.(time.Time).Format(TimeLayout)
}

func parseTimeLayouts(s string, layouts ...string) (time.Time, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ==================== 扩展种类：choice / email / url ====================

type choiceKind struct {
	choices []Choice
}

func newChoiceKind(opts KindOptions) (Kind, error) {
	if len(opts.Choices) == 0 {
		return nil, errors.New("choice field requires at least one choice")
	}
	return &choiceKind{choices: append([]Choice(nil), opts.Choices...)}, nil
}

func (*choiceKind) Name() string { return "choice" }

func (k *choiceKind) Coerce(v any) (any, error) {
	s, err := charKind{}.Coerce(v)
	if err != nil {
		return nil, err
	}
	for _, c := range k.choices {
		if c.Value == s {
			return s, nil
		}
	}
	return nil, fmt.Errorf("Select a valid choice. %s is not one of the available choices.", s)
}

func (k *choiceKind) Format(v any) string { return charKind{}.Format(v) }

// Choices 返回可选项（供 select 控件渲染）
func (k *choiceKind) Choices() []Choice { return k.choices }

type emailKind struct{}

func (emailKind) Name() string { return "email" }

func (emailKind) Coerce(v any) (any, error) {
	s, err := charKind{}.Coerce(v)
	if err != nil {
		return nil, err
	}
	str := strings.TrimSpace(s.(string))
	if str == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(str)
	if err != nil || addr.Address != str {
		return nil, errors.New("Enter a valid email address.")
	}
	return str, nil
}

func (emailKind) Format(v any) string { return charKind{}.Format(v) }

type urlKind struct{}

func (urlKind) Name() string { return "url" }

func (urlKind) Coerce(v any) (any, error) {
	s, err := charKind{}.Coerce(v)
	if err != nil {
		return nil, err
	}
	str := strings.TrimSpace(s.(string))
	if str == "" {
		return "", nil
	}
	u, err := url.ParseRequestURI(str)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.New("Enter a valid URL.")
	}
	return str, nil
}

func (urlKind) Format(v any) string { return charKind{}.Format(v) }

// asInt64 把各种整数类型统一为 int64
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), x <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	}
	return 0, false
}
