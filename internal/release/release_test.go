package release

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// countingSource records how many lookups were made.
type countingSource struct {
	tag   string
	err   error
	calls int
}

func (c *countingSource) LatestTag(ctx context.Context) (string, error) {
	c.calls++
	return c.tag, c.err
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		tag       string
		want      Version
		wantCalls int
	}{
		{name: "latest_sentinel", requested: "latest", tag: "v0.18.1", want: "0.18.1", wantCalls: 1},
		{name: "empty_request", requested: "", tag: "v0.18.1", want: "0.18.1", wantCalls: 1},
		{name: "tag_without_v", requested: "", tag: "0.19.0", want: "0.19.0", wantCalls: 1},
		{name: "explicit_version", requested: "1.2.3", tag: "v9.9.9", want: "1.2.3", wantCalls: 0},
		{name: "explicit_not_validated", requested: "nightly-2", tag: "v9.9.9", want: "nightly-2", wantCalls: 0},
		{name: "explicit_padded", requested: " 0.18.1\n", tag: "v9.9.9", want: "0.18.1", wantCalls: 0},
		{name: "latest_padded", requested: "  latest ", tag: "v0.18.1", want: "0.18.1", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &countingSource{tag: tt.tag}
			r := NewResolver(src, nil)

			got, err := r.Resolve(context.Background(), tt.requested)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
			if src.calls != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", src.calls, tt.wantCalls)
			}
		})
	}
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name      string
		tag       string
		err       error
		wantNoTag bool
	}{
		{name: "empty_tag", tag: "", wantNoTag: true},
		{name: "bare_v", tag: "v", wantNoTag: true},
		{name: "garbage_tag", tag: "release-candidate", wantNoTag: true},
		{name: "lookup_error", err: errors.New("network down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&countingSource{tag: tt.tag, err: tt.err}, nil)

			_, err := r.Resolve(context.Background(), LatestTag)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if got := errors.Is(err, ErrNoReleaseTag); got != tt.wantNoTag {
				t.Errorf("errors.Is(err, ErrNoReleaseTag) = %v, want %v (err: %v)", got, tt.wantNoTag, err)
			}
		})
	}
}

func TestResolveWithoutSource(t *testing.T) {
	r := NewResolver(nil, nil)

	if _, err := r.Resolve(context.Background(), ""); err == nil {
		t.Error("expected error without a source")
	}
	if v, err := r.Resolve(context.Background(), "0.1.0"); err != nil || v != "0.1.0" {
		t.Errorf("Resolve(explicit) = %q, %v", v, err)
	}
}

func TestTagSet(t *testing.T) {
	tests := []struct {
		version Version
		want    []string
	}{
		{"2.5.1", []string{"2.5.1", "2.5", "2", "latest"}},
		{"0.18.1", []string{"0.18.1", "0.18", "0", "latest"}},
		{"1.4", []string{"1.4", "1", "latest"}},
		{"3", []string{"3", "latest"}},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			got := tt.version.TagSet()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("TagSet() = %v, want %v", got, tt.want)
			}
			// Deterministic across invocations.
			if again := tt.version.TagSet(); !reflect.DeepEqual(again, got) {
				t.Errorf("TagSet() not deterministic: %v vs %v", again, got)
			}
		})
	}
}

func TestMajorMinor(t *testing.T) {
	v := Version("2.5.1")
	if v.Major() != "2" {
		t.Errorf("Major() = %q", v.Major())
	}
	if v.Minor() != "2.5" {
		t.Errorf("Minor() = %q", v.Minor())
	}
}

func TestGitHubSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("unexpected Authorization header: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("unexpected User-Agent: %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"tag_name":"v0.18.1","name":"0.18.1","draft":false}`)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	defer server.Close()

	tag, err := NewGitHubSource(server.URL, "secret").LatestTag(context.Background())
	if err != nil {
		t.Fatalf("LatestTag() error = %v", err)
	}
	if tag != "v0.18.1" {
		t.Errorf("LatestTag() = %q, want v0.18.1", tag)
	}
}

func TestGitHubSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "rate_limited", status: http.StatusForbidden, body: `{"message":"rate limit"}`},
		{name: "bad_json", status: http.StatusOK, body: `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			if _, err := NewGitHubSource(server.URL, "").LatestTag(context.Background()); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}
