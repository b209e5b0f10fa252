// Package action implements declarative record actions: a label, an icon,
// a confirmation modal, a visibility predicate and an effect, bound at
// runtime to one record and the page hosting it.
package action

import (
	"context"
	"errors"

	"panelkit/internal/orm"
)

var (
	ErrUnbound     = errors.New("action is not mounted on a page")
	ErrHidden      = errors.New("action is not available for this record")
	ErrUnsupported = errors.New("record does not support this action")
)

// Localizer resolves translation keys.
type Localizer interface {
	T(key string, params map[string]string) string
}

// Host is the page an action is mounted on.
type Host interface {
	Localizer() Localizer
	Notify(n Notification)
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusDanger  Status = "danger"
)

// Notification is a message surfaced to the user after an action runs.
type Notification struct {
	Status Status `json:"status" enum:"success,danger"`
	Title  string `json:"title"`
}

type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	}
	return "none"
}

// Text produces a display string once the action is mounted.
type Text func(a *Action) string

// Literal is fixed text.
func Literal(s string) Text {
	return func(*Action) string { return s }
}

// Trans looks key up with the host's localizer.
func Trans(key string) Text {
	return func(a *Action) string { return a.translate(key, nil) }
}

// TransWithRecordTitle looks key up with :label set to the record title.
func TransWithRecordTitle(key string) Text {
	return func(a *Action) string {
		return a.translate(key, map[string]string{"label": a.RecordTitle()})
	}
}

// Process is the work an action performs on its record.
type Process func(ctx context.Context, rec orm.Record) error

// Action is configured through its exported fields and mounted with Mount.
type Action struct {
	Name                 string
	Label                Text
	Icon                 string
	GroupedIcon          string
	Color                string
	URL                  string
	RequiresConfirmation bool
	ModalHeading         Text
	ModalDescription     Text
	ModalSubmitLabel     Text
	SuccessTitle         Text
	FailureTitle         Text
	// Visible and Hidden are evaluated against the bound record.
	Visible func(rec orm.Record) bool
	Hidden  func(rec orm.Record) bool
	// Effect runs when the action is called.
	Effect func(ctx context.Context, a *Action) error
	// Using replaces the default process passed to Process.
	Using Process
	// RecordTitle overrides how the record is named in modal headings.
	RecordTitleFunc func(rec orm.Record) string

	host    Host
	record  orm.Record
	outcome Outcome
}

// Mount binds the action to its host. A mounted action keeps its first host.
func (a *Action) Mount(host Host) *Action {
	if a.host == nil {
		a.host = host
	}
	return a
}

// Host returns the page the action is mounted on, or nil.
func (a *Action) Host() Host { return a.host }

// For binds the record the action operates on.
func (a *Action) For(rec orm.Record) *Action {
	a.record = rec
	return a
}

func (a *Action) Record() orm.Record { return a.record }
func (a *Action) Outcome() Outcome   { return a.outcome }

func (a *Action) RecordTitle() string {
	if a.record == nil {
		return ""
	}
	if a.RecordTitleFunc != nil {
		return a.RecordTitleFunc(a.record)
	}
	return a.record.Title()
}

func (a *Action) IsVisible() bool {
	if a.Visible != nil && !a.Visible(a.record) {
		return false
	}
	if a.Hidden != nil && a.Hidden(a.record) {
		return false
	}
	return true
}

// Call runs the action's effect. Hidden actions are refused.
func (a *Action) Call(ctx context.Context) error {
	if a.host == nil {
		return ErrUnbound
	}
	if !a.IsVisible() {
		return ErrHidden
	}
	a.outcome = OutcomeNone
	if a.Effect == nil {
		return nil
	}
	return a.Effect(ctx, a)
}

// Process runs Using when set, otherwise fallback, against the bound record.
func (a *Action) Process(ctx context.Context, fallback Process) error {
	if a.Using != nil {
		return a.Using(ctx, a.record)
	}
	if fallback == nil {
		return nil
	}
	return fallback(ctx, a.record)
}

// Success records a successful outcome and notifies the host.
func (a *Action) Success() {
	a.outcome = OutcomeSuccess
	a.notify(StatusSuccess, a.SuccessTitle)
}

// Failure records a failed outcome and notifies the host.
func (a *Action) Failure() {
	a.outcome = OutcomeFailure
	a.notify(StatusDanger, a.FailureTitle)
}

func (a *Action) notify(status Status, title Text) {
	if a.host == nil || title == nil {
		return
	}
	if text := title(a); text != "" {
		a.host.Notify(Notification{Status: status, Title: text})
	}
}

func (a *Action) translate(key string, params map[string]string) string {
	if a.host == nil || a.host.Localizer() == nil {
		return key
	}
	return a.host.Localizer().T(key, params)
}

func (a *Action) resolve(t Text) string {
	if t == nil {
		return ""
	}
	return t(a)
}

// Modal describes the confirmation dialog.
type Modal struct {
	Heading     string `json:"heading"`
	Description string `json:"description,omitempty"`
	SubmitLabel string `json:"submit_label"`
}

// View is the rendered, serializable form of a mounted action.
type View struct {
	Name                 string `json:"name"`
	Label                string `json:"label"`
	Icon                 string `json:"icon,omitempty"`
	GroupedIcon          string `json:"grouped_icon,omitempty"`
	Color                string `json:"color,omitempty"`
	URL                  string `json:"url,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Modal                *Modal `json:"modal,omitempty"`
}

// View resolves every text of the action for display.
func (a *Action) View() View {
	v := View{
		Name:                 a.Name,
		Label:                a.resolve(a.Label),
		Icon:                 a.Icon,
		GroupedIcon:          a.GroupedIcon,
		Color:                a.Color,
		URL:                  a.URL,
		RequiresConfirmation: a.RequiresConfirmation,
	}
	if v.Label == "" {
		v.Label = a.Name
	}
	if a.RequiresConfirmation {
		v.Modal = &Modal{
			Heading:     a.resolve(a.ModalHeading),
			Description: a.resolve(a.ModalDescription),
			SubmitLabel: a.resolve(a.ModalSubmitLabel),
		}
		if v.Modal.Heading == "" {
			v.Modal.Heading = v.Label
		}
		if v.Modal.SubmitLabel == "" {
			v.Modal.SubmitLabel = v.Label
		}
	}
	return v
}
