package sites

import (
	"errors"
	"testing"
)

// --- Matches ---

func TestMatches(t *testing.T) {
	tests := []struct {
		domain string
		site   string
		want   bool
	}{
		{"example.com", "example.com", true},
		{"www.example.com", "example.com", true},
		{"blog.example.com", "example.com", true},
		{"api.v2.example.com", "example.com", true},
		{"ExAmPlE.CoM", "example.com", true},
		{"www.example.com", "EXAMPLE.com", true},
		{"example.org", "example.com", false},
		{"examplesite.com", "example.com", false},
		{"ample.com", "example.com", false},
		{"example.com", "ample.com", false},
		{"example.comx", "example.com", false},
		{"example.com.evil.net", "example.com", false},
		{"example.com", "", false},
	}

	for _, tt := range tests {
		if got := Matches(tt.domain, tt.site); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.domain, tt.site, got, tt.want)
		}
	}
}

func TestMatches_Properties(t *testing.T) {
	for _, s := range []string{"a.com", "example.co.uk", "localhost", "x.y.z.dev"} {
		if !Matches(s, s) {
			t.Errorf("Matches(%q, %q) should be true", s, s)
		}
		if !Matches("www."+s, s) {
			t.Errorf("Matches(www.%s, %s) should be true", s, s)
		}
		for _, label := range []string{"x", "mail", "a-b"} {
			if !Matches(label+"."+s, s) {
				t.Errorf("Matches(%s.%s, %s) should be true", label, s, s)
			}
		}
		if Matches(s+"x", s) {
			t.Errorf("Matches(%sx, %s) should be false", s, s)
		}
	}
}

// --- MatchAny ---

func TestMatchAny(t *testing.T) {
	tracked := []string{"a.com", "b.org"}

	site, ok := MatchAny("sub.b.org", tracked)
	if !ok || site != "b.org" {
		t.Errorf("MatchAny(sub.b.org) = %q, %v; want b.org, true", site, ok)
	}

	if _, ok := MatchAny("c.net", tracked); ok {
		t.Error("MatchAny(c.net) should not match")
	}
	if _, ok := MatchAny("a.com", nil); ok {
		t.Error("MatchAny with no tracked sites should not match")
	}
}

// --- ExtractDomain ---

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/", "www.example.com"},
		{"http://example.com:8080/path?q=1", "example.com"},
		{"https://Sub.Example.com/x", "Sub.Example.com"},
		{"http://[::1]:3000/", "::1"},
	}
	for _, tt := range tests {
		got, err := ExtractDomain(tt.url)
		if err != nil {
			t.Errorf("ExtractDomain(%q) error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractDomain_Invalid(t *testing.T) {
	for _, raw := range []string{"", "not a url", "chrome://", "http://%zz", "about:blank"} {
		if _, err := ExtractDomain(raw); err == nil {
			t.Errorf("ExtractDomain(%q) should fail", raw)
		}
	}
}

func TestExtractDomain_NoHostIsErrNoHost(t *testing.T) {
	_, err := ExtractDomain("about:blank")
	if !errors.Is(err, ErrNoHost) {
		t.Errorf("error = %v, want ErrNoHost", err)
	}
}

// --- NormalizeSite ---

func TestNormalizeSite(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"  Example.COM ", "example.com"},
		{"https://www.Example.com/some/path", "www.example.com"},
		{"example.com/path", "example.com"},
		{"example.com:443", "example.com"},
		{"example.com.", "example.com"},
		{"bbc.co.uk", "bbc.co.uk"},
		{"localhost", "localhost"},
		{"127.0.0.1", "127.0.0.1"},
	}
	for _, tt := range tests {
		got, err := NormalizeSite(tt.in)
		if err != nil {
			t.Errorf("NormalizeSite(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeSite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSite_Rejects(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrEmptySite},
		{"   ", ErrEmptySite},
		{".", ErrEmptySite},
		{"com", ErrPublicSuffix},
		{"co.uk", ErrPublicSuffix},
		{"https://com/", ErrPublicSuffix},
	}
	for _, tt := range tests {
		_, err := NormalizeSite(tt.in)
		if !errors.Is(err, tt.want) {
			t.Errorf("NormalizeSite(%q) error = %v, want %v", tt.in, err, tt.want)
		}
	}

	if _, err := NormalizeSite("exa mple.com"); err == nil {
		t.Error("NormalizeSite with inner whitespace should fail")
	}
}

// --- Add / Remove / Contains ---

func TestAdd_Dedupes(t *testing.T) {
	list, changed := Add(nil, "a.com")
	if !changed || len(list) != 1 {
		t.Fatalf("Add to empty = %v, %v", list, changed)
	}

	list, changed = Add(list, "A.COM")
	if changed {
		t.Error("Add of case-variant should not change the list")
	}
	if len(list) != 1 {
		t.Errorf("len = %d, want 1", len(list))
	}

	list, changed = Add(list, "b.com")
	if !changed || len(list) != 2 || list[1] != "b.com" {
		t.Errorf("Add(b.com) = %v, %v", list, changed)
	}
}

func TestAdd_DoesNotAliasInput(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "a.com"
	first, _ := Add(base, "b.com")
	second, _ := Add(base, "c.com")
	if first[1] != "b.com" || second[1] != "c.com" {
		t.Errorf("Add aliased its input: first=%v second=%v", first, second)
	}
}

func TestRemove(t *testing.T) {
	list := []string{"a.com", "b.com", "c.com"}

	out, changed := Remove(list, "B.com")
	if !changed {
		t.Error("Remove should report change")
	}
	if len(out) != 2 || out[0] != "a.com" || out[1] != "c.com" {
		t.Errorf("Remove = %v", out)
	}

	out, changed = Remove(out, "zzz.com")
	if changed || len(out) != 2 {
		t.Errorf("Remove of absent site = %v, %v", out, changed)
	}
}

func TestContains(t *testing.T) {
	if !Contains([]string{"Example.com"}, "example.COM") {
		t.Error("Contains should be case-insensitive")
	}
	if Contains(nil, "x.com") {
		t.Error("Contains on nil should be false")
	}
}
