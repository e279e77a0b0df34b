package app

import (
	"context"
	"net/http"
	"testing"

	"liveconf/internal/errors"
	"liveconf/internal/model"
	"liveconf/internal/testutil"

	"github.com/google/go-cmp/cmp"
)

func apiRequest(t *testing.T, method, target, token string, body any) *http.Request {
	t.Helper()
	if body == nil {
		return testutil.WithBearer(testutil.NewRequest(method, target, nil), token)
	}
	return testutil.WithBearer(testutil.MustNewJSONRequest(t, method, target, body), token)
}

func TestAPI_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)
	w := env.serve(t, testutil.NewRequest(http.MethodGet, "/admin/api/config", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
	resp := testutil.MustParseAPIResponse[any](t, w.Body.Bytes())
	if resp.Code != string(errors.ErrCodeInvalidToken) {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestAPI_ForbiddenForViewer(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "victor", "victor_pw")
	w := env.serve(t, apiRequest(t, http.MethodGet, "/admin/api/config", token, nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAPI_ListAndGet(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "alice", "alice_pw")

	w := env.serve(t, apiRequest(t, http.MethodGet, "/admin/api/config", token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	resp := testutil.MustParseAPIResponse[ConfigListResponse](t, w.Body.Bytes())
	if len(resp.Data.Rows) != 8 || len(resp.Data.Version) != 32 {
		t.Fatalf("unexpected list: %+v", resp.Data)
	}
	if resp.Data.Rows[0].Name != "DAILY_REPORT_AT" {
		t.Errorf("rows not sorted: first=%s", resp.Data.Rows[0].Name)
	}

	w = env.serve(t, apiRequest(t, http.MethodGet, "/admin/api/config/MAX_UPLOAD_MB", token, nil))
	one := testutil.MustParseAPIResponse[model.Row](t, w.Body.Bytes())
	want := model.Row{Name: "MAX_UPLOAD_MB", Type: model.TypeInt, Default: "10", HelpText: "Maximum upload size in megabytes", Value: "10"}
	if diff := cmp.Diff(want, one.Data); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}

	w = env.serve(t, apiRequest(t, http.MethodGet, "/admin/api/config/NOPE", token, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown setting status = %d", w.Code)
	}
}

func currentVersion(t *testing.T, env *testEnv) string {
	t.Helper()
	form, err := env.cs.NewForm(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return form.Version()
}

func TestAPI_UpdateSuccess(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)

	body := ConfigUpdateRequest{
		Version: currentVersion(t, env),
		Values: map[string]string{
			"SITE_NAME":        "renamed",
			"NEXT_MAINTENANCE": "2026-03-01 04:30:00",
			"MAINTENANCE_MODE": "false",
		},
	}
	w := env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config", token, body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	resp := testutil.MustParseAPIResponse[ConfigUpdateResponse](t, w.Body.Bytes())
	// 按 schema 顺序返回实际变化的项
	if diff := cmp.Diff([]string{"SITE_NAME", "NEXT_MAINTENANCE"}, resp.Data.Changed); diff != "" {
		t.Errorf("changed mismatch (-want +got):\n%s", diff)
	}
	if resp.Data.Version != currentVersion(t, env) {
		t.Error("response version should match the new state")
	}
	if got := env.cs.GetString(context.Background(), "SITE_NAME"); got != "renamed" {
		t.Errorf("SITE_NAME = %q", got)
	}
}

func TestAPI_UpdateConflict(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)

	stale := currentVersion(t, env)
	if err := env.cs.Set(context.Background(), "MAX_UPLOAD_MB", int64(11)); err != nil {
		t.Fatal(err)
	}
	body := ConfigUpdateRequest{Version: stale, Values: map[string]string{"SITE_NAME": "x"}}
	w := env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config", token, body))
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	resp := testutil.MustParseAPIResponse[any](t, w.Body.Bytes())
	if resp.Code != string(errors.ErrCodeConcurrentModification) {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestAPI_UpdateMissingVersionIsRequiredError(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)

	body := ConfigUpdateRequest{Values: map[string]string{"SITE_NAME": "x"}}
	w := env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config", token, body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	resp := testutil.MustParseAPIResponse[map[string][]string](t, w.Body.Bytes())
	if resp.Code != string(errors.ErrCodeValidation) {
		t.Errorf("code = %q", resp.Code)
	}
	if diff := cmp.Diff([]string{"This field is required."}, resp.Data["version"]); diff != "" {
		t.Errorf("version errors (-want +got):\n%s", diff)
	}
	if got := env.cs.GetString(context.Background(), "SITE_NAME"); got != "liveconf" {
		t.Errorf("SITE_NAME = %q, nothing should be saved", got)
	}
}

func TestAPI_UpdateValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)

	body := ConfigUpdateRequest{Version: currentVersion(t, env), Values: map[string]string{"SAMPLING_RATE": "half"}}
	w := env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config", token, body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	resp := testutil.MustParseAPIResponse[map[string][]string](t, w.Body.Bytes())
	if len(resp.Data["SAMPLING_RATE"]) == 0 {
		t.Errorf("expected field error for SAMPLING_RATE, got %+v", resp.Data)
	}

	body = ConfigUpdateRequest{Version: currentVersion(t, env), Values: map[string]string{"NOPE": "1"}}
	w = env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config", token, body))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown setting status = %d", w.Code)
	}
}

func TestAPI_CookieSessionNeedsCSRFHeader(t *testing.T) {
	env := newTestEnv(t)
	token, csrf := env.login(t, "admin", testAdminPassword)
	body := ConfigUpdateRequest{Version: currentVersion(t, env)}

	req := withSession(testutil.MustNewJSONRequest(t, http.MethodPost, "/admin/api/config", body), token)
	if w := env.serve(t, req); w.Code != http.StatusForbidden {
		t.Fatalf("without csrf status = %d", w.Code)
	}

	req = withSession(testutil.MustNewJSONRequest(t, http.MethodPost, "/admin/api/config", body), token)
	req.Header.Set(CSRFHeader, csrf)
	if w := env.serve(t, req); w.Code != http.StatusOK {
		t.Fatalf("with csrf status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestAPI_Reset(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)
	ctx := context.Background()

	if err := env.cs.Set(ctx, "SITE_NAME", "temp"); err != nil {
		t.Fatal(err)
	}
	w := env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config/SITE_NAME/reset", token, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	row := testutil.MustParseAPIResponse[model.Row](t, w.Body.Bytes())
	if row.Data.Value != "liveconf" || row.Data.Modified {
		t.Errorf("unexpected row after reset: %+v", row.Data)
	}

	w = env.serve(t, apiRequest(t, http.MethodPost, "/admin/api/config/NOPE/reset", token, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown reset status = %d", w.Code)
	}
}
