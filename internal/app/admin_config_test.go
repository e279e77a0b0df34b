package app

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"liveconf/internal/errors"
	"liveconf/internal/testutil"
)

func TestConfigView_AnonymousRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	w := env.serve(t, testutil.NewRequest(http.MethodGet, ChangeListPath, nil))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, LoginPath+"?next=") {
		t.Errorf("Location = %q", loc)
	}
}

func TestConfigView_RendersRowsSortedByName(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "alice", "alice_pw")

	w := env.serve(t, withSession(testutil.NewRequest(http.MethodGet, ChangeListPath, nil), token))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := w.Body.String()

	order := []string{
		"DAILY_REPORT_AT", "LAUNCH_DATE", "MAINTENANCE_MODE", "MAX_UPLOAD_MB",
		"NEXT_MAINTENANCE", "PRICE_PER_UNIT", "SAMPLING_RATE", "SITE_NAME",
	}
	last := -1
	for _, name := range order {
		idx := strings.Index(body, `id="row-`+name+`"`)
		if idx < 0 {
			t.Fatalf("row %s missing", name)
		}
		if idx < last {
			t.Errorf("row %s out of order", name)
		}
		last = idx
	}
	for _, want := range []string{
		`name="version"`,
		`name="` + CSRFField + `"`,
		`name="NEXT_MAINTENANCE_0"`,
		`name="NEXT_MAINTENANCE_1"`,
		`type="checkbox"`,
		"<em>billing</em>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestConfigView_AddPathUsesSameHandler(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)
	w := env.serve(t, withSession(testutil.NewRequest(http.MethodGet, AddPath, nil), token))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `id="row-SITE_NAME"`) {
		t.Fatalf("add path status = %d", w.Code)
	}
}

func TestConfigView_PermissionDenied(t *testing.T) {
	t.Run("viewer", func(t *testing.T) {
		env := newTestEnv(t)
		token, _ := env.login(t, "victor", "victor_pw")
		w := env.serve(t, withSession(testutil.NewRequest(http.MethodGet, ChangeListPath, nil), token))
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d", w.Code)
		}
		if strings.Contains(w.Body.String(), "row-") {
			t.Error("denied response must not render rows")
		}
	})

	t.Run("superuser only", func(t *testing.T) {
		env := newTestEnv(t, withPolicy(SuperuserPolicy{}))
		staff, _ := env.login(t, "alice", "alice_pw")
		if w := env.serve(t, withSession(testutil.NewRequest(http.MethodGet, ChangeListPath, nil), staff)); w.Code != http.StatusForbidden {
			t.Errorf("staff status = %d, want 403", w.Code)
		}
		admin, _ := env.login(t, "admin", testAdminPassword)
		if w := env.serve(t, withSession(testutil.NewRequest(http.MethodGet, ChangeListPath, nil), admin)); w.Code != http.StatusOK {
			t.Errorf("superuser status = %d, want 200", w.Code)
		}
	})
}

func TestConfigView_SaveRedirectsWithFlash(t *testing.T) {
	env := newTestEnv(t)
	token, csrf := env.login(t, "admin", testAdminPassword)

	data := env.currentFormData(t)
	data.Set("MAX_UPLOAD_MB", "25")
	data.Set("MAINTENANCE_MODE", "on")
	w := env.submitForm(t, token, csrf, data)
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != ChangeListPath {
		t.Errorf("Location = %q", loc)
	}

	ctx := context.Background()
	if got := env.cs.GetInt(ctx, "MAX_UPLOAD_MB"); got != 25 {
		t.Errorf("MAX_UPLOAD_MB = %d", got)
	}
	if !env.cs.GetBool(ctx, "MAINTENANCE_MODE") {
		t.Error("MAINTENANCE_MODE should be true")
	}
	// 未修改的项不写入后端
	if _, ok, _ := env.store.Get(ctx, "SITE_NAME"); ok {
		t.Error("unchanged SITE_NAME should not be written")
	}

	next := withSession(testutil.NewRequest(http.MethodGet, ChangeListPath, nil), token)
	testutil.WithCookies(next, w.Result().Cookies())
	page := env.serve(t, next)
	if !strings.Contains(page.Body.String(), SavedMessage) {
		t.Errorf("flash message missing after redirect")
	}
}

func TestConfigView_UnchangedSubmissionSucceeds(t *testing.T) {
	env := newTestEnv(t)
	token, csrf := env.login(t, "admin", testAdminPassword)

	w := env.submitForm(t, token, csrf, env.currentFormData(t))
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
}

func TestConfigView_ConcurrentModification(t *testing.T) {
	env := newTestEnv(t)
	token, csrf := env.login(t, "admin", testAdminPassword)
	ctx := context.Background()

	data := env.currentFormData(t)
	// 渲染与提交之间后端被修改
	if err := env.cs.Set(ctx, "SITE_NAME", "someone else"); err != nil {
		t.Fatal(err)
	}

	data.Set("MAX_UPLOAD_MB", "99")
	w := env.submitForm(t, token, csrf, data)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 re-render", w.Code)
	}
	if !strings.Contains(w.Body.String(), errors.ConcurrentModification().Message) {
		t.Error("concurrency error not rendered")
	}
	if got := env.cs.GetInt(ctx, "MAX_UPLOAD_MB"); got != 10 {
		t.Errorf("MAX_UPLOAD_MB = %d, nothing should be saved", got)
	}
}

func TestConfigView_InvalidValueReRenders(t *testing.T) {
	env := newTestEnv(t)
	token, csrf := env.login(t, "admin", testAdminPassword)

	data := env.currentFormData(t)
	data.Set("MAX_UPLOAD_MB", "lots")
	w := env.submitForm(t, token, csrf, data)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Enter a whole number.") {
		t.Error("field error not rendered")
	}
	if !strings.Contains(body, `value="lots"`) {
		t.Error("submitted value should be echoed back")
	}
}

func TestConfigView_RequiresCSRF(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.login(t, "admin", testAdminPassword)

	w := env.submitForm(t, token, "", env.currentFormData(t))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestSanitizeHelpText(t *testing.T) {
	got := string(sanitizeHelpText(`<script>alert(1)</script>Unit <em>price</em>`))
	if strings.Contains(got, "<script>") {
		t.Errorf("script not stripped: %q", got)
	}
	if !strings.Contains(got, "<em>price</em>") {
		t.Errorf("inline markup lost: %q", got)
	}
}

func TestBuildRows_Modified(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.cs.Set(ctx, "SAMPLING_RATE", 0.5); err != nil {
		t.Fatal(err)
	}
	form, err := env.cs.NewForm(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range buildRows(form) {
		want := row.Name == "SAMPLING_RATE"
		if row.Modified != want {
			t.Errorf("%s modified = %v, want %v", row.Name, row.Modified, want)
		}
	}

	// 写回与默认值相等的值后不再显示为已修改
	if err := env.cs.Reset(ctx, "SAMPLING_RATE"); err != nil {
		t.Fatal(err)
	}
	form, _ = env.cs.NewForm(ctx)
	for _, row := range buildRows(form) {
		if row.Modified {
			t.Errorf("%s should not be modified after reset", row.Name)
		}
	}
}

func TestRootRedirect(t *testing.T) {
	env := newTestEnv(t)
	w := env.serve(t, testutil.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusFound || w.Header().Get("Location") != ChangeListPath {
		t.Fatalf("status = %d location = %q", w.Code, w.Header().Get("Location"))
	}
}
