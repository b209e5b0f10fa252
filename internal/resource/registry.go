package resource

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"panelkit/internal/action"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrUnknownPage     = errors.New("unknown page")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Registry is the panel's resource configuration, built once at startup.
type Registry struct {
	resources []*Resource
	bySlug    map[string]*Resource
	routes    []RouteInfo
}

// RouteInfo is one named, mounted page route.
type RouteInfo struct {
	// Name is "{slug}.{page}".
	Name     string `json:"name"`
	Resource string `json:"resource"`
	Page     string `json:"page"`
	Kind     Kind   `json:"kind"`
	// Path is the full path below the panel base path.
	Path string `json:"path"`
}

// NewRegistry validates resources and indexes their routes.
func NewRegistry(resources ...*Resource) (*Registry, error) {
	reg := &Registry{bySlug: map[string]*Resource{}}
	for i, res := range resources {
		if res == nil {
			return nil, fmt.Errorf("resource %d is nil", i)
		}
		if err := validate(res); err != nil {
			return nil, err
		}
		if _, dup := reg.bySlug[res.Slug]; dup {
			return nil, fmt.Errorf("resource %q registered twice", res.Slug)
		}
		reg.bySlug[res.Slug] = res
		reg.resources = append(reg.resources, res)
		reg.routes = append(reg.routes, routesOf(res)...)
	}
	return reg, nil
}

func validate(res *Resource) error {
	if !slugPattern.MatchString(res.Slug) {
		return fmt.Errorf("resource slug %q is invalid", res.Slug)
	}
	if res.Model == nil {
		return fmt.Errorf("resource %q has no model", res.Slug)
	}
	paths := map[string]string{}
	for name, route := range res.Pages {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("resource %q has a page without a name", res.Slug)
		}
		if !route.Kind.Valid() {
			return fmt.Errorf("resource %q page %q has unknown kind %q", res.Slug, name, route.Kind)
		}
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("resource %q page %q path %q must start with /", res.Slug, name, route.Path)
		}
		hasRecord := strings.Contains(route.Path, RecordParam)
		if route.Kind.NeedsRecord() && !hasRecord {
			return fmt.Errorf("resource %q page %q: %s pages need %s in the path", res.Slug, name, route.Kind, RecordParam)
		}
		if !route.Kind.NeedsRecord() && hasRecord {
			return fmt.Errorf("resource %q page %q: %s pages cannot take %s", res.Slug, name, route.Kind, RecordParam)
		}
		if other, dup := paths[route.Path]; dup {
			return fmt.Errorf("resource %q pages %q and %q share path %q", res.Slug, other, name, route.Path)
		}
		paths[route.Path] = name
	}
	return nil
}

func routesOf(res *Resource) []RouteInfo {
	out := make([]RouteInfo, 0, len(res.Pages))
	for name, route := range res.Pages {
		out = append(out, RouteInfo{
			Name:     res.Slug + "." + name,
			Resource: res.Slug,
			Page:     name,
			Kind:     route.Kind,
			Path:     joinPath(res.Slug, route.Path),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind.rank() != out[j].Kind.rank() {
			return out[i].Kind.rank() < out[j].Kind.rank()
		}
		return out[i].Page < out[j].Page
	})
	return out
}

func joinPath(slug, path string) string {
	if path == "/" {
		return "/" + slug
	}
	return "/" + slug + path
}

// Resources returns the resources in registration order.
func (r *Registry) Resources() []*Resource {
	return append([]*Resource(nil), r.resources...)
}

func (r *Registry) Resource(slug string) (*Resource, error) {
	res, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, slug)
	}
	return res, nil
}

// Page returns the route called page on the resource slug.
func (r *Registry) Page(slug, page string) (*Resource, PageRoute, error) {
	res, err := r.Resource(slug)
	if err != nil {
		return nil, PageRoute{}, err
	}
	route, ok := res.Pages[page]
	if !ok {
		return nil, PageRoute{}, fmt.Errorf("%w: %s.%s", ErrUnknownPage, slug, page)
	}
	return res, route, nil
}

// Routes enumerates every page route, resources in registration order and
// pages by kind then name.
func (r *Registry) Routes() []RouteInfo {
	return append([]RouteInfo(nil), r.routes...)
}

// URL builds the path of a page, substituting recordID.
func (r *Registry) URL(slug, page, recordID string) (string, error) {
	res, route, err := r.Page(slug, page)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(joinPath(res.Slug, route.Path), RecordParam, recordID), nil
}

// NavigationItem links to a resource's index page.
type NavigationItem struct {
	Resource string `json:"resource"`
	Label    string `json:"label"`
	Icon     string `json:"icon,omitempty"`
	URL      string `json:"url"`
}

// NavigationGroup is a labelled list of items.
type NavigationGroup struct {
	Label string           `json:"label,omitempty"`
	Items []NavigationItem `json:"items"`
}

// Navigation groups resources with an index page by navigation group,
// groups in first-registered order and items by sort then slug.
func (r *Registry) Navigation(loc action.Localizer) []NavigationGroup {
	var groups []NavigationGroup
	index := map[string]int{}
	sorts := map[string]int{}
	for _, res := range r.resources {
		page, ok := res.PageOfKind(Index)
		if !ok {
			continue
		}
		url, _ := r.URL(res.Slug, page, "")
		i, seen := index[res.NavigationGroup]
		if !seen {
			i = len(groups)
			index[res.NavigationGroup] = i
			groups = append(groups, NavigationGroup{Label: translate(loc, res.NavigationGroup)})
		}
		sorts[res.Slug] = res.NavigationSort
		groups[i].Items = append(groups[i].Items, NavigationItem{
			Resource: res.Slug,
			Label:    translate(loc, res.PluralLabel),
			Icon:     res.NavigationIcon,
			URL:      url,
		})
	}
	for _, g := range groups {
		sort.SliceStable(g.Items, func(a, b int) bool {
			sa, sb := sorts[g.Items[a].Resource], sorts[g.Items[b].Resource]
			if sa != sb {
				return sa < sb
			}
			return g.Items[a].Resource < g.Items[b].Resource
		})
	}
	return groups
}

func translate(loc action.Localizer, key string) string {
	if key == "" {
		return ""
	}
	if loc == nil {
		return key
	}
	return loc.T(key, nil)
}
