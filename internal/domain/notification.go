package domain

import (
	json "github.com/goccy/go-json"
)

// PushKind discriminates the known push payload variants.
type PushKind int

const (
	// PushUnknown marks a malformed or unrecognized payload. Handling it is
	// a safe no-op: nothing is rendered.
	PushUnknown PushKind = iota

	// PushLesson targets a specific course (new lesson, course update).
	PushLesson

	// PushLink carries an explicit target URL.
	PushLink
)

// String returns a human-readable representation of the kind.
func (k PushKind) String() string {
	switch k {
	case PushLesson:
		return "lesson"
	case PushLink:
		return "link"
	default:
		return "unknown"
	}
}

// Fixed notification actions attached to every rendered notification.
const (
	ActionView    = "view"
	ActionDismiss = "dismiss"
)

// DefaultTargetPath is where a notification click lands when the payload
// names neither a URL nor a course.
const DefaultTargetPath = "/dashboard"

// PushMessage is a push payload validated at parse time into one of the
// known variants. Ephemeral: it exists only for the duration of push
// handling and the user's interaction with the notification.
type PushMessage struct {
	Kind  PushKind
	Title string
	Body  string
	Image string

	// Tag is the dedupe tag: a new notification with the same tag replaces
	// the previous one instead of stacking.
	Tag string

	// CourseID is set for PushLesson payloads.
	CourseID string

	// URL is set for PushLink payloads.
	URL string
}

// pushWire mirrors the JSON shape delivered by the push service.
type pushWire struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Data  struct {
		CourseID string `json:"courseId,omitempty"`
		URL      string `json:"url,omitempty"`
	} `json:"data"`
}

// ParsePushMessage validates a raw push payload into a PushMessage.
// It never returns an error: anything that cannot be understood comes back
// as PushUnknown, which downstream handling ignores.
func ParsePushMessage(raw []byte) PushMessage {
	var w pushWire
	if err := json.Unmarshal(raw, &w); err != nil || w.Title == "" {
		return PushMessage{Kind: PushUnknown}
	}

	m := PushMessage{
		Title: w.Title,
		Body:  w.Body,
		Image: w.Image,
		Tag:   w.Tag,
	}
	switch {
	case w.Data.URL != "":
		m.Kind = PushLink
		m.URL = w.Data.URL
	case w.Data.CourseID != "":
		m.Kind = PushLesson
		m.CourseID = w.Data.CourseID
	default:
		// A bare title/body notification is still renderable; it just
		// falls through to the default target on click.
		m.Kind = PushLink
	}
	return m
}

// Notification is a user-visible notification rendered from a push message,
// carrying the fixed actions and renotify semantics keyed by the dedupe tag.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`

	// Tag keys renotify behavior: a notification with the same tag replaces
	// the previous one.
	Tag      string   `json:"tag,omitempty"`
	Renotify bool     `json:"renotify"`
	Actions  []string `json:"actions"`

	// TargetURL is where interaction with the notification navigates.
	TargetURL string `json:"target_url"`
}

// Render builds the user-visible notification for a parsed push message.
// Rendering an unknown payload yields ok=false and nothing is shown.
func (m PushMessage) Render() (Notification, bool) {
	if m.Kind == PushUnknown {
		return Notification{}, false
	}
	return Notification{
		Title:     m.Title,
		Body:      m.Body,
		Image:     m.Image,
		Tag:       m.Tag,
		Renotify:  m.Tag != "",
		Actions:   []string{ActionView, ActionDismiss},
		TargetURL: m.TargetURL(),
	}, true
}

// TargetURL resolves where a click on the notification should navigate:
// an explicit URL wins, then the course page, then the dashboard.
func (m PushMessage) TargetURL() string {
	switch {
	case m.URL != "":
		return m.URL
	case m.CourseID != "":
		return "/courses/" + m.CourseID
	default:
		return DefaultTargetPath
	}
}
