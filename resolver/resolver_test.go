package resolver

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rawPath string
		want    ParsedPath
	}{
		{
			name:    "root",
			rawPath: "/",
			want:    ParsedPath{Path: "/"},
		},
		{
			name:    "query is dropped",
			rawPath: "/about?lang=en&x=1",
			want:    ParsedPath{Path: "/about"},
		},
		{
			name:    "only the first question mark splits",
			rawPath: "/assets/app.js?v=1?2",
			want:    ParsedPath{Path: "/assets/app.js", IsAssetPrefixed: true},
		},
		{
			name:    "favicon",
			rawPath: "/favicon.ico?size=32",
			want:    ParsedPath{Path: "/favicon.ico", IsFaviconProbe: true},
		},
		{
			name:    "percent decoding",
			rawPath: "/caf%C3%A9",
			want:    ParsedPath{Path: "/café"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Parse(tt.rawPath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_InvalidEscape(t *testing.T) {
	_, err := Parse("/bad%zzpath")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r := New("assets", "pages")

	tests := []struct {
		name    string
		rawPath string
		want    Target
	}{
		{
			name:    "index page",
			rawPath: "/",
			want:    Target{Kind: PageFile, Path: filepath.Join("pages", "index.html")},
		},
		{
			name:    "index page with query",
			rawPath: "/?q=1",
			want:    Target{Kind: PageFile, Path: filepath.Join("pages", "index.html")},
		},
		{
			name:    "named page",
			rawPath: "/about",
			want:    Target{Kind: PageFile, Path: filepath.Join("pages", "about.html")},
		},
		{
			name:    "nested page with trailing slash",
			rawPath: "/docs/intro/",
			want:    Target{Kind: PageFile, Path: filepath.Join("pages", "docs", "intro.html")},
		},
		{
			name:    "page name containing dots",
			rawPath: "/v1.2/notes",
			want:    Target{Kind: PageFile, Path: filepath.Join("pages", "v1.2", "notes.html")},
		},
		{
			name:    "asset",
			rawPath: "/assets/app.js",
			want:    Target{Kind: AssetFile, Path: filepath.Join("assets", "app.js")},
		},
		{
			name:    "nested asset with query",
			rawPath: "/assets/css/site.css?v=3",
			want:    Target{Kind: AssetFile, Path: filepath.Join("assets", "css", "site.css")},
		},
		{
			name:    "asset with inner dot segments",
			rawPath: "/assets/js/../css/./site.css",
			want:    Target{Kind: AssetFile, Path: filepath.Join("assets", "css", "site.css")},
		},
		{
			name:    "asset traversal out of root",
			rawPath: "/assets/../../secret",
			want:    Target{Kind: NotFound},
		},
		{
			name:    "encoded asset traversal",
			rawPath: "/assets/%2e%2e/%2e%2e/etc/passwd",
			want:    Target{Kind: NotFound},
		},
		{
			name:    "prefix without separator",
			rawPath: "/assetsfoo/app.js",
			want:    Target{Kind: NotFound},
		},
		{
			name:    "favicon",
			rawPath: "/favicon.ico",
			want:    Target{Kind: NotFound},
		},
		{
			name:    "undecodable path",
			rawPath: "/bad%zz",
			want:    Target{Kind: NotFound},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.Resolve(tt.rawPath))
		})
	}
}

func TestResolve_AssetsNeverLeaveRoot(t *testing.T) {
	root := filepath.Join("srv", "assets")
	r := New(root, "pages")

	paths := []string{
		"/assets/../secret",
		"/assets/../../secret",
		"/assets/a/../../../../etc/passwd",
		"/assets/./../assets/../x",
		"/assets//..//..//x",
		"/assets/%2E%2E/x",
		"/assets/a/b/../../../",
		"/assets/..",
	}

	for _, p := range paths {
		target := r.Resolve(p)
		if target.Kind == NotFound {
			continue
		}

		require.Equal(t, AssetFile, target.Kind, p)
		rel, err := filepath.Rel(root, target.Path)
		require.NoError(t, err, p)
		assert.False(t, rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)),
			"%s resolved outside the assets root: %s", p, target.Path)
	}
}

func TestResolve_PagesGetExactlyOneSuffix(t *testing.T) {
	r := New("assets", "pages")

	want := map[string]string{
		"/a":                filepath.Join("pages", "a.html"),
		"/a.b":              filepath.Join("pages", "a.b.html"),
		"/a.html":           filepath.Join("pages", "a.html.html"),
		"/x/y.z/":           filepath.Join("pages", "x", "y.z.html"),
		"/../../etc/passwd": filepath.Join("pages", "etc", "passwd.html"),
		"/.hidden":          filepath.Join("pages", ".hidden.html"),
	}

	for p, expected := range want {
		target := r.Resolve(p)
		require.Equal(t, PageFile, target.Kind, p)
		assert.Equal(t, expected, target.Path, p)

		rel, err := filepath.Rel("pages", target.Path)
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(rel, ".."), "%s escaped the pages root", p)
	}
}

func TestResolve_FaviconWinsOverEverything(t *testing.T) {
	// The roots point at the same directory, so a favicon.ico.html page or an
	// assets file would both be candidates if the short-circuit were missing.
	r := New(".", ".")

	assert.Equal(t, Target{Kind: NotFound}, r.Resolve("/favicon.ico"))
	assert.Equal(t, Target{Kind: NotFound}, r.Resolve("/favicon.ico?x=1"))
}

func TestResolve_Deterministic(t *testing.T) {
	r := New("assets", "pages")

	for _, p := range []string{"/", "/about", "/assets/app.js", "/favicon.ico"} {
		assert.Equal(t, r.Resolve(p), r.Resolve(p), p)
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "not_found", NotFound.String())
	assert.Equal(t, "asset", AssetFile.String())
	assert.Equal(t, "page", PageFile.String())
}

func TestNew_CleansRoots(t *testing.T) {
	r := New("./static/assets/", "pages/")

	assert.Equal(t, filepath.Join("static", "assets"), r.AssetsRoot())
	assert.Equal(t, "pages", r.PagesRoot())
}
