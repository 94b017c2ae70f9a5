package fs

import (
	"reflect"
	"testing"
)

func TestPathToKey(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", ""},
		{"/a", "a"},
		{"/a/b/c", "a/b/c"},
		{"/data/file.txt", "data/file.txt"},
	}
	for _, tc := range cases {
		if got := pathToKey(tc.path); got != tc.want {
			t.Errorf("pathToKey(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestKeyToPath(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"", "/"},
		{"a", "/a"},
		{"a/b/c", "/a/b/c"},
		{"a/b/", "/a/b"},
		{"a/b_$folder$", "/a/b"},
	}
	for _, tc := range cases {
		if got := keyToPath(tc.key); got != tc.want {
			t.Errorf("keyToPath(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestPathKeyRoundTrip(t *testing.T) {
	for _, path := range []string{"/", "/a", "/a/b/c", "/data/logs/2026/app.log"} {
		if got := keyToPath(pathToKey(path)); got != path {
			t.Errorf("keyToPath(pathToKey(%q)) = %q", path, got)
		}
	}
}

func TestParentPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/a", "/"},
		{"/a/b", "/a"},
		{"/a/b/c", "/a/b"},
		{"/a/b/", "/a"},
	}
	for _, tc := range cases {
		if got := parentPath(tc.path); got != tc.want {
			t.Errorf("parentPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestAncestors(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"/", []string{"/"}},
		{"/a", []string{"/", "/a"}},
		{"/a/b/c", []string{"/", "/a", "/a/b", "/a/b/c"}},
	}
	for _, tc := range cases {
		if got := ancestors(tc.path); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("ancestors(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestBaseName(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/a", "a"},
		{"/a/b/file.txt", "file.txt"},
	}
	for _, tc := range cases {
		if got := baseName(tc.path); got != tc.want {
			t.Errorf("baseName(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestIsDescendant(t *testing.T) {
	cases := []struct {
		dir       string
		candidate string
		want      bool
	}{
		{"/", "/a", true},
		{"/", "/", false},
		{"/a", "/a/b", true},
		{"/a", "/a", false},
		{"/a", "/ab", false},
		{"/a/b", "/a", false},
	}
	for _, tc := range cases {
		if got := isDescendant(tc.dir, tc.candidate); got != tc.want {
			t.Errorf("isDescendant(%q, %q) = %v, want %v", tc.dir, tc.candidate, got, tc.want)
		}
	}
}
