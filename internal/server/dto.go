package server

import (
	"panelkit/internal/events"
	"panelkit/internal/panel"
	"panelkit/internal/resource"
)

// Request payloads

// RecordInput is raw form state keyed by field name. Relationship groups
// nest their own state under the relationship name.
type RecordInput map[string]any

// Response payloads

type PanelInfo struct {
	ID    string `json:"id"`
	Path  string `json:"path"`
	Brand string `json:"brand,omitempty"`
}

type PanelResponse struct {
	Panel      PanelInfo                  `json:"panel"`
	Locale     string                     `json:"locale"`
	Locales    []string                   `json:"locales"`
	Navigation []resource.NavigationGroup `json:"navigation"`
	Routes     []resource.RouteInfo       `json:"routes"`
}

type EventList struct {
	Items      []events.Event `json:"items"`
	NextBefore int64          `json:"next_before,omitempty"`
}

type pageOutput struct {
	Body panel.PageView `json:"body"`
}

type recordListOutput struct {
	Body panel.RecordList `json:"body"`
}

type resultOutput struct {
	Body panel.Result `json:"body"`
}

func panelResponse(p panel.Panel, req panel.Request) PanelResponse {
	res := PanelResponse{
		Locale:     req.Locale.String(),
		Locales:    p.I18n.Locales(),
		Navigation: nonNilSlice(p.Navigation(req)),
		Routes:     nonNilSlice(p.Registry.Routes()),
	}
	if p.Config != nil {
		res.Panel = PanelInfo{ID: p.Config.Panel.ID, Path: p.Config.Panel.Path, Brand: p.Config.Panel.Brand}
	}
	return res
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
