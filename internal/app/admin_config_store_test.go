package app

import (
	"context"
	"net/http"
	"testing"

	storeschema "liveconf/internal/storage/schema"
	sqlstore "liveconf/internal/storage/sql"
	"liveconf/internal/testutil"
)

func TestConfigView_UndecodableStoredValueFallsBackToDefault(t *testing.T) {
	store := testutil.SetupTestStore(t)
	db := store.(*sqlstore.SQLStore).DB()
	if _, err := db.Exec("INSERT INTO "+storeschema.ConfigTable+" (`key`, value, updated_at) VALUES (?, ?, 0)",
		"SITE_NAME", "not-json"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	env := newTestEnv(t, withStore(store))
	token, csrf := env.login(t, "admin", testAdminPassword)

	w := env.serve(t, withSession(testutil.NewRequest(http.MethodGet, ChangeListPath, nil), token))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	form, err := env.cs.NewForm(context.Background())
	if err != nil {
		t.Fatalf("NewForm: %v", err)
	}
	for _, row := range buildRows(form) {
		if row.Name != "SITE_NAME" {
			continue
		}
		if row.Value != "liveconf" || row.Modified {
			t.Errorf("SITE_NAME row = value %q modified %v, want default", row.Value, row.Modified)
		}
	}

	// 同一页面可以正常提交，写入后覆盖损坏的值
	data := env.currentFormData(t)
	data.Set("SITE_NAME", "repaired")
	if w := env.submitForm(t, token, csrf, data); w.Code != http.StatusFound {
		t.Fatalf("POST status = %d body=%s", w.Code, w.Body.String())
	}
	if got := env.cs.GetString(context.Background(), "SITE_NAME"); got != "repaired" {
		t.Errorf("SITE_NAME = %q", got)
	}
}
