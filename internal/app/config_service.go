package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"liveconf/internal/errors"
	"liveconf/internal/fields"
	"liveconf/internal/forms"
	"liveconf/internal/model"
	"liveconf/internal/schema"
	"liveconf/internal/storage"
	"liveconf/internal/util"

	"github.com/shopspring/decimal"
)

type resolvedSetting struct {
	setting model.Setting
	mapping fields.Mapping
}

// ConfigService 在线配置服务
// 职责: 以 schema 默认值为底，叠加后端存储中的值；写入前按声明类型强制转换
type ConfigService struct {
	schema   *schema.Schema
	registry *fields.Registry
	store    storage.Store
	resolved map[string]resolvedSetting

	mu        sync.RWMutex
	listeners []func(model.ChangeEvent)
}

// NewConfigService 创建配置服务，并解析 schema 中每一项的类型。
// 任一配置项类型不受支持或默认值无法转换时返回错误（启动期致命）。
func NewConfigService(s *schema.Schema, reg *fields.Registry, store storage.Store) (*ConfigService, error) {
	cs := &ConfigService{
		schema:   s,
		registry: reg,
		store:    store,
		resolved: make(map[string]resolvedSetting, s.Len()),
	}
	for _, st := range s.Settings() {
		_, mapping, err := reg.Resolve(st)
		if err != nil {
			return nil, err
		}
		def, err := mapping.Kind.Coerce(st.Default)
		if err != nil {
			return nil, errors.InvalidConfigError(st.Name, fmt.Sprintf("default %v: %v", st.Default, err))
		}
		st.Default = def
		cs.resolved[st.Name] = resolvedSetting{setting: st, mapping: mapping}
	}
	return cs, nil
}

// Schema 配置 schema
func (cs *ConfigService) Schema() *schema.Schema { return cs.schema }

// Registry 类型注册表
func (cs *ConfigService) Registry() *fields.Registry { return cs.registry }

// OnChange 注册配置变更回调（同步调用，回调内不应阻塞）
func (cs *ConfigService) OnChange(fn func(model.ChangeEvent)) {
	cs.mu.Lock()
	cs.listeners = append(cs.listeners, fn)
	cs.mu.Unlock()
}

// Default 配置项的默认值（已转换为声明类型）
func (cs *ConfigService) Default(name string) (any, bool) {
	r, ok := cs.resolved[name]
	if !ok {
		return nil, false
	}
	return r.setting.Default, true
}

// Initial 以默认值为底叠加后端值，一次批量读取
// 无法转换为声明类型的存储值记录告警并回落到默认值
func (cs *ConfigService) Initial(ctx context.Context) (map[string]any, error) {
	names := cs.schema.Names()
	stored, err := cs.store.MGet(ctx, names)
	if err != nil {
		return nil, errors.DBQueryError("mget", err)
	}
	initial := make(map[string]any, len(names))
	for _, name := range names {
		r := cs.resolved[name]
		initial[name] = r.setting.Default
		v, ok := stored[name]
		if !ok {
			continue
		}
		coerced, err := r.mapping.Kind.Coerce(v)
		if err != nil {
			util.SafePrintf("[WARN] 存储值无法转换 %s=%v: %v，使用默认值", name, v, err)
			continue
		}
		initial[name] = coerced
	}
	return initial, nil
}

// Get 读取单个配置项的当前值
func (cs *ConfigService) Get(ctx context.Context, name string) (any, error) {
	r, ok := cs.resolved[name]
	if !ok {
		return nil, errors.UnknownSetting(name)
	}
	v, found, err := cs.store.Get(ctx, name)
	if err != nil {
		return nil, errors.DBQueryError("get "+name, err)
	}
	if !found {
		return r.setting.Default, nil
	}
	coerced, err := r.mapping.Kind.Coerce(v)
	if err != nil {
		util.SafePrintf("[WARN] 存储值无法转换 %s=%v: %v，使用默认值", name, v, err)
		return r.setting.Default, nil
	}
	return coerced, nil
}

// getOrDefault 读取失败时记录日志并返回默认值
func (cs *ConfigService) getOrDefault(ctx context.Context, name string) any {
	v, err := cs.Get(ctx, name)
	if err != nil {
		util.SafePrintf("[WARN] 读取配置 %s 失败: %v", name, err)
		v, _ = cs.Default(name)
	}
	return v
}

// GetBool 获取布尔配置
func (cs *ConfigService) GetBool(ctx context.Context, name string) bool {
	b, _ := cs.getOrDefault(ctx, name).(bool)
	return b
}

// GetInt 获取整数配置
func (cs *ConfigService) GetInt(ctx context.Context, name string) int64 {
	n, _ := cs.getOrDefault(ctx, name).(int64)
	return n
}

// GetIntMin 获取整数配置（带最小值约束）
// 如果值小于 min，记录警告并返回默认值
func (cs *ConfigService) GetIntMin(ctx context.Context, name string, min int64) int64 {
	val := cs.GetInt(ctx, name)
	if val < min {
		def, _ := cs.Default(name)
		defInt, _ := def.(int64)
		log.Printf("[WARN] 无效的 %s=%d（必须 >= %d），已使用默认值 %d", name, val, min, defInt)
		return defInt
	}
	return val
}

// GetFloat 获取浮点数配置
func (cs *ConfigService) GetFloat(ctx context.Context, name string) float64 {
	f, _ := cs.getOrDefault(ctx, name).(float64)
	return f
}

// GetString 获取字符串配置
func (cs *ConfigService) GetString(ctx context.Context, name string) string {
	s, _ := cs.getOrDefault(ctx, name).(string)
	return s
}

// GetDecimal 获取定点小数配置
func (cs *ConfigService) GetDecimal(ctx context.Context, name string) decimal.Decimal {
	d, _ := cs.getOrDefault(ctx, name).(decimal.Decimal)
	return d
}

// GetTime 获取日期/时间配置
func (cs *ConfigService) GetTime(ctx context.Context, name string) time.Time {
	t, _ := cs.getOrDefault(ctx, name).(time.Time)
	return t
}

// Set 写入单个配置项；值先转换为声明类型，写入成功后通知监听者
func (cs *ConfigService) Set(ctx context.Context, name string, value any) error {
	r, ok := cs.resolved[name]
	if !ok {
		return errors.UnknownSetting(name)
	}
	coerced, err := r.mapping.Kind.Coerce(value)
	if err != nil {
		return errors.InvalidValue(name, err)
	}

	old, found, err := cs.store.Get(ctx, name)
	if err != nil {
		return errors.DBQueryError("get "+name, err)
	}
	if !found {
		old = r.setting.Default
	}
	return cs.write(ctx, name, old, coerced)
}

// Change 写入单个配置项，旧值由调用方提供（表单保存时即为表单初始值）
func (cs *ConfigService) Change(ctx context.Context, name string, old, value any) error {
	r, ok := cs.resolved[name]
	if !ok {
		return errors.UnknownSetting(name)
	}
	coerced, err := r.mapping.Kind.Coerce(value)
	if err != nil {
		return errors.InvalidValue(name, err)
	}
	return cs.write(ctx, name, old, coerced)
}

func (cs *ConfigService) write(ctx context.Context, name string, old, value any) error {
	if err := cs.store.Set(ctx, name, value); err != nil {
		return errors.DBUpdateError(name, err)
	}
	cs.notify(model.ChangeEvent{Name: name, OldValue: old, NewValue: value})
	return nil
}

// Reset 将配置项写回默认值
func (cs *ConfigService) Reset(ctx context.Context, name string) error {
	def, ok := cs.Default(name)
	if !ok {
		return errors.UnknownSetting(name)
	}
	return cs.Set(ctx, name, def)
}

func (cs *ConfigService) notify(ev model.ChangeEvent) {
	cs.mu.RLock()
	listeners := make([]func(model.ChangeEvent), len(cs.listeners))
	copy(listeners, cs.listeners)
	cs.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// NewForm 基于当前后端值构造表单
func (cs *ConfigService) NewForm(ctx context.Context) (*forms.Form, error) {
	initial, err := cs.Initial(ctx)
	if err != nil {
		return nil, err
	}
	return forms.New(cs.schema, cs.registry, initial)
}
