package app

import (
	"context"
	"testing"
	"time"

	"liveconf/internal/errors"
	"liveconf/internal/fields"
	"liveconf/internal/model"
	"liveconf/internal/schema"
	"liveconf/internal/storage"
	"liveconf/internal/storage/memory"
	"liveconf/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestNewConfigService_UnsupportedType(t *testing.T) {
	s := schema.MustNew(model.Setting{Name: "BAD", Default: []string{"x"}})
	_, err := NewConfigService(s, fields.NewRegistry(), memory.New())
	if !errors.HasErrorCode(err, errors.ErrCodeUnsupportedType) {
		t.Fatalf("expected UNSUPPORTED_CONFIG_TYPE, got %v", err)
	}
}

func TestNewConfigService_BadDefault(t *testing.T) {
	s := schema.MustNew(model.Setting{Name: "LIMIT", Default: "ten", Type: model.TypeInt})
	_, err := NewConfigService(s, fields.NewRegistry(), memory.New())
	if !errors.HasErrorCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestConfigService_DefaultsWhenStoreEmpty(t *testing.T) {
	cs := newTestConfigService(t, memory.New())
	ctx := context.Background()

	if got := cs.GetString(ctx, "SITE_NAME"); got != "liveconf" {
		t.Errorf("SITE_NAME = %q", got)
	}
	if got := cs.GetInt(ctx, "MAX_UPLOAD_MB"); got != 10 {
		t.Errorf("MAX_UPLOAD_MB = %d", got)
	}
	if got := cs.GetBool(ctx, "MAINTENANCE_MODE"); got {
		t.Error("MAINTENANCE_MODE should default to false")
	}
	if got := cs.GetFloat(ctx, "SAMPLING_RATE"); got != 0.25 {
		t.Errorf("SAMPLING_RATE = %v", got)
	}
	if got := cs.GetDecimal(ctx, "PRICE_PER_UNIT"); !got.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("PRICE_PER_UNIT = %s", got)
	}
	want := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	if got := cs.GetTime(ctx, "NEXT_MAINTENANCE"); !got.Equal(want) {
		t.Errorf("NEXT_MAINTENANCE = %v", got)
	}
}

func TestConfigService_SetCoercesAndNotifies(t *testing.T) {
	cs := newTestConfigService(t, memory.New())
	ctx := context.Background()

	var events []model.ChangeEvent
	cs.OnChange(func(ev model.ChangeEvent) { events = append(events, ev) })

	if err := cs.Set(ctx, "MAX_UPLOAD_MB", "42"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := cs.GetInt(ctx, "MAX_UPLOAD_MB"); got != 42 {
		t.Errorf("MAX_UPLOAD_MB = %d, want 42", got)
	}

	want := []model.ChangeEvent{{Name: "MAX_UPLOAD_MB", OldValue: int64(10), NewValue: int64(42)}}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

// countingStore 统计单项读取次数
type countingStore struct {
	storage.Store
	gets int
}

func (s *countingStore) Get(ctx context.Context, key string) (any, bool, error) {
	s.gets++
	return s.Store.Get(ctx, key)
}

func TestConfigService_FormSaveUsesInitialAsOldValue(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	cs := newTestConfigService(t, store)
	ctx := context.Background()
	if err := cs.Set(ctx, "MAX_UPLOAD_MB", int64(20)); err != nil {
		t.Fatal(err)
	}

	events := make(map[string]model.ChangeEvent)
	cs.OnChange(func(ev model.ChangeEvent) { events[ev.Name] = ev })

	form, err := cs.NewForm(ctx)
	if err != nil {
		t.Fatal(err)
	}
	data := form.InitialData()
	data.Set("MAX_UPLOAD_MB", "30")
	data.Set("SITE_NAME", "renamed")
	form.Bind(data)

	store.gets = 0
	saved, err := form.Save(ctx, cs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("saved = %v", saved)
	}
	if store.gets != 0 {
		t.Errorf("Save issued %d single reads, want 0", store.gets)
	}

	want := map[string]model.ChangeEvent{
		"MAX_UPLOAD_MB": {Name: "MAX_UPLOAD_MB", OldValue: int64(20), NewValue: int64(30)},
		"SITE_NAME":     {Name: "SITE_NAME", OldValue: "liveconf", NewValue: "renamed"},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigService_ChangeRejectsUnknownAndInvalid(t *testing.T) {
	cs := newTestConfigService(t, memory.New())
	ctx := context.Background()
	if err := cs.Change(ctx, "NOPE", nil, "1"); !errors.HasErrorCode(err, errors.ErrCodeUnknownSetting) {
		t.Errorf("unknown setting err = %v", err)
	}
	if err := cs.Change(ctx, "MAX_UPLOAD_MB", int64(10), "lots"); !errors.HasErrorCode(err, errors.ErrCodeInvalidValue) {
		t.Errorf("invalid value err = %v", err)
	}
}

func TestConfigService_SetErrors(t *testing.T) {
	cs := newTestConfigService(t, memory.New())
	ctx := context.Background()

	if err := cs.Set(ctx, "NOPE", 1); !errors.HasErrorCode(err, errors.ErrCodeUnknownSetting) {
		t.Errorf("unknown setting: got %v", err)
	}
	if err := cs.Set(ctx, "MAX_UPLOAD_MB", "many"); !errors.HasErrorCode(err, errors.ErrCodeInvalidValue) {
		t.Errorf("invalid value: got %v", err)
	}
	if _, err := cs.Get(ctx, "NOPE"); !errors.HasErrorCode(err, errors.ErrCodeUnknownSetting) {
		t.Errorf("Get unknown: got %v", err)
	}
}

func TestConfigService_Reset(t *testing.T) {
	cs := newTestConfigService(t, memory.New())
	ctx := context.Background()

	if err := cs.Set(ctx, "SITE_NAME", "changed"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cs.Reset(ctx, "SITE_NAME"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := cs.GetString(ctx, "SITE_NAME"); got != "liveconf" {
		t.Errorf("after reset SITE_NAME = %q", got)
	}
	if err := cs.Reset(ctx, "NOPE"); !errors.HasErrorCode(err, errors.ErrCodeUnknownSetting) {
		t.Errorf("Reset unknown: got %v", err)
	}
}

func TestConfigService_InitialFallsBackOnBadStoredValue(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if err := store.Set(ctx, "MAX_UPLOAD_MB", "not a number"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, "SITE_NAME", "stored"); err != nil {
		t.Fatal(err)
	}
	cs := newTestConfigService(t, store)

	initial, err := cs.Initial(ctx)
	if err != nil {
		t.Fatalf("Initial: %v", err)
	}
	if initial["MAX_UPLOAD_MB"] != int64(10) {
		t.Errorf("MAX_UPLOAD_MB = %v, want default", initial["MAX_UPLOAD_MB"])
	}
	if initial["SITE_NAME"] != "stored" {
		t.Errorf("SITE_NAME = %v", initial["SITE_NAME"])
	}
	if len(initial) != schema.Sample().Len() {
		t.Errorf("initial has %d entries", len(initial))
	}
}

func TestConfigService_GetIntMin(t *testing.T) {
	cs := newTestConfigService(t, memory.New())
	ctx := context.Background()
	if err := cs.Set(ctx, "MAX_UPLOAD_MB", int64(0)); err != nil {
		t.Fatal(err)
	}
	if got := cs.GetIntMin(ctx, "MAX_UPLOAD_MB", 1); got != 10 {
		t.Errorf("GetIntMin = %d, want default 10", got)
	}
}

func TestConfigService_SavedValueShowsInNewForm(t *testing.T) {
	cs := newTestConfigService(t, testutil.SetupTestStore(t))
	ctx := context.Background()

	before, err := cs.NewForm(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Set(ctx, "PRICE_PER_UNIT", "2.50"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	after, err := cs.NewForm(ctx)
	if err != nil {
		t.Fatal(err)
	}
	field, _ := after.Field("PRICE_PER_UNIT")
	if got := field.FormattedInitial(); got != "2.5" && got != "2.50" {
		t.Errorf("PRICE_PER_UNIT initial = %q", got)
	}
	if before.Version() == after.Version() {
		t.Error("version should change after a write")
	}
}
