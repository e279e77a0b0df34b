package redis

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"liveconf/internal/storage/codec"
)

func mustEncode(t *testing.T, v any) string {
	t.Helper()
	s, err := codec.Encode(v)
	if err != nil {
		t.Fatalf("Encode(%v): %v", v, err)
	}
	return s
}

func TestFullKeys_Prefix(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()

	s := NewWithClient(client, "liveconf:")
	got := s.fullKeys([]string{"SITE_NAME", "MAX_UPLOAD_MB"})
	want := []string{"liveconf:SITE_NAME", "liveconf:MAX_UPLOAD_MB"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fullKeys mismatch (-want +got):\n%s", diff)
	}
	if got := NewWithClient(client, "").key("X"); got != "X" {
		t.Errorf("key without prefix = %q", got)
	}
}

func TestDecodeMGet(t *testing.T) {
	keys := []string{"A", "MISSING", "BROKEN", "D"}
	vals := []any{
		mustEncode(t, int64(7)),
		nil,
		"not-json",
		mustEncode(t, "hello"),
	}

	out := make(map[string]any)
	decodeMGet(keys, vals, out)

	want := map[string]any{"A": int64(7), "D": "hello"}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("decodeMGet mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeMGet_MoreValuesThanKeys(t *testing.T) {
	out := make(map[string]any)
	decodeMGet([]string{"A"}, []any{mustEncode(t, true), mustEncode(t, false)}, out)
	if diff := cmp.Diff(map[string]any{"A": true}, out); diff != "" {
		t.Errorf("decodeMGet mismatch (-want +got):\n%s", diff)
	}
}
