// Package resolver classifies request paths into favicon probes, static assets
// and HTML pages, and maps them onto the filesystem.
package resolver

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	// FaviconPath is never served, whatever exists on disk.
	FaviconPath = "/favicon.ico"
	// AssetPrefix marks requests served from the assets root.
	AssetPrefix = "/assets"
	// PageSuffix is appended to every page lookup.
	PageSuffix = ".html"
	// IndexPage is the page served for "/".
	IndexPage = "index"
)

// Kind is the classification of a request path.
type Kind int

const (
	NotFound Kind = iota
	AssetFile
	PageFile
)

func (k Kind) String() string {
	switch k {
	case AssetFile:
		return "asset"
	case PageFile:
		return "page"
	default:
		return "not_found"
	}
}

// Target is the outcome of resolution. Path is empty for NotFound.
type Target struct {
	Kind Kind
	Path string
}

// ParsedPath is the request path with the query removed.
type ParsedPath struct {
	Path            string
	IsAssetPrefixed bool
	IsFaviconProbe  bool
}

// Parse strips the query string from rawPath and percent-decodes the rest.
func Parse(rawPath string) (ParsedPath, error) {
	p, _, _ := strings.Cut(rawPath, "?")

	decoded, err := url.PathUnescape(p)
	if err != nil {
		return ParsedPath{}, err
	}

	return ParsedPath{
		Path:            decoded,
		IsAssetPrefixed: strings.HasPrefix(decoded, AssetPrefix),
		IsFaviconProbe:  decoded == FaviconPath,
	}, nil
}

// Resolver maps request paths under two filesystem roots.
type Resolver struct {
	assetsRoot string
	pagesRoot  string
}

// New returns a Resolver serving /assets/... from assetsRoot and pages from
// pagesRoot.
func New(assetsRoot, pagesRoot string) *Resolver {
	return &Resolver{
		assetsRoot: filepath.Clean(assetsRoot),
		pagesRoot:  filepath.Clean(pagesRoot),
	}
}

// AssetsRoot returns the directory assets are served from.
func (r *Resolver) AssetsRoot() string {
	return r.assetsRoot
}

// PagesRoot returns the directory pages are served from.
func (r *Resolver) PagesRoot() string {
	return r.pagesRoot
}

// Resolve classifies rawPath. The favicon check runs first, then the asset
// prefix, and everything else is a page.
func (r *Resolver) Resolve(rawPath string) Target {
	parsed, err := Parse(rawPath)
	if err != nil {
		return Target{Kind: NotFound}
	}

	switch {
	case parsed.IsFaviconProbe:
		return Target{Kind: NotFound}
	case parsed.IsAssetPrefixed:
		return r.resolveAsset(parsed.Path)
	default:
		return r.resolvePage(parsed.Path)
	}
}

func (r *Resolver) resolveAsset(p string) Target {
	// Clean on a rooted path drops any ".." that would climb above "/", so a
	// cleaned path still under AssetPrefix cannot leave the assets root.
	rest, ok := strings.CutPrefix(path.Clean(p), AssetPrefix)
	if !ok {
		return Target{Kind: NotFound}
	}
	if rest != "" && rest[0] != '/' {
		// "/assetsfoo" shares the prefix but is not inside the assets tree.
		return Target{Kind: NotFound}
	}

	return Target{
		Kind: AssetFile,
		Path: filepath.Join(r.assetsRoot, filepath.FromSlash(strings.TrimPrefix(rest, "/"))),
	}
}

func (r *Resolver) resolvePage(p string) Target {
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = IndexPage
	}

	return Target{
		Kind: PageFile,
		Path: filepath.Join(r.pagesRoot, filepath.FromSlash(name)) + PageSuffix,
	}
}
