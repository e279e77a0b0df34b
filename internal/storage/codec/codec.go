// Package codec 配置值在 SQL/Redis 中的编码：{"t":类型标签,"v":字符串值}。
package codec

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

// 类型标签
const (
	TagBool    = "bool"
	TagInt     = "int"
	TagFloat   = "float"
	TagDecimal = "decimal"
	TagString  = "string"
	TagTime    = "time"
)

type envelope struct {
	T string `json:"t"`
	V string `json:"v"`
}

// Encode 把 Go 值编码为 JSON 信封
func Encode(v any) (string, error) {
	var env envelope
	switch x := v.(type) {
	case bool:
		env = envelope{TagBool, strconv.FormatBool(x)}
	case int:
		env = envelope{TagInt, strconv.FormatInt(int64(x), 10)}
	case int8:
		env = envelope{TagInt, strconv.FormatInt(int64(x), 10)}
	case int16:
		env = envelope{TagInt, strconv.FormatInt(int64(x), 10)}
	case int32:
		env = envelope{TagInt, strconv.FormatInt(int64(x), 10)}
	case int64:
		env = envelope{TagInt, strconv.FormatInt(x, 10)}
	case uint8:
		env = envelope{TagInt, strconv.FormatUint(uint64(x), 10)}
	case uint16:
		env = envelope{TagInt, strconv.FormatUint(uint64(x), 10)}
	case uint32:
		env = envelope{TagInt, strconv.FormatUint(uint64(x), 10)}
	case uint:
		if uint64(x) > math.MaxInt64 {
			return "", fmt.Errorf("integer %d overflows int64", x)
		}
		env = envelope{TagInt, strconv.FormatUint(uint64(x), 10)}
	case uint64:
		if x > math.MaxInt64 {
			return "", fmt.Errorf("integer %d overflows int64", x)
		}
		env = envelope{TagInt, strconv.FormatUint(x, 10)}
	case float32:
		env = envelope{TagFloat, strconv.FormatFloat(float64(x), 'g', -1, 32)}
	case float64:
		env = envelope{TagFloat, strconv.FormatFloat(x, 'g', -1, 64)}
	case decimal.Decimal:
		env = envelope{TagDecimal, x.String()}
	case string:
		env = envelope{TagString, x}
	case time.Time:
		env = envelope{TagTime, x.UTC().Format(time.RFC3339Nano)}
	default:
		return "", fmt.Errorf("cannot encode value of type %T", v)
	}
	data, err := sonic.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal value envelope: %w", err)
	}
	return string(data), nil
}

// Decode 解码 JSON 信封为 Go 值（整数统一为 int64，浮点为 float64）
func Decode(data string) (any, error) {
	var env envelope
	if err := sonic.UnmarshalString(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal value envelope: %w", err)
	}
	switch env.T {
	case TagBool:
		return strconv.ParseBool(env.V)
	case TagInt:
		return strconv.ParseInt(env.V, 10, 64)
	case TagFloat:
		return strconv.ParseFloat(env.V, 64)
	case TagDecimal:
		return decimal.NewFromString(env.V)
	case TagString:
		return env.V, nil
	case TagTime:
		return time.Parse(time.RFC3339Nano, env.V)
	}
	return nil, fmt.Errorf("unknown value tag %q", env.T)
}
