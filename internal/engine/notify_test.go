package engine

import (
	"context"
	"testing"

	"github.com/skillforge/edgecache/internal/domain"
)

func TestDispatcher_HandlePush_Lesson(t *testing.T) {
	sink := &mockSink{}
	d := NewDispatcher(sink, &mockOpener{}, mockLogger{})

	raw := []byte(`{"title":"New lesson","body":"Module 4 is live","tag":"course-aws-101","data":{"courseId":"aws-101"}}`)
	if err := d.HandlePush(context.Background(), raw); err != nil {
		t.Fatalf("HandlePush() error = %v", err)
	}

	if len(sink.shown) != 1 {
		t.Fatalf("notifications shown = %d, want 1", len(sink.shown))
	}
	n := sink.shown[0]
	if n.Title != "New lesson" {
		t.Errorf("title = %q", n.Title)
	}
	if n.TargetURL != "/courses/aws-101" {
		t.Errorf("target = %q, want /courses/aws-101", n.TargetURL)
	}
	if !n.Renotify {
		t.Error("tagged notification should renotify")
	}
}

// A courseId outside the data envelope is not a lesson payload; the
// notification still renders but clicks land on the dashboard.
func TestDispatcher_HandlePush_CourseIDOutsideData(t *testing.T) {
	sink := &mockSink{}
	d := NewDispatcher(sink, &mockOpener{}, mockLogger{})

	raw := []byte(`{"title":"New lesson","courseId":"aws-101"}`)
	if err := d.HandlePush(context.Background(), raw); err != nil {
		t.Fatalf("HandlePush() error = %v", err)
	}

	if len(sink.shown) != 1 {
		t.Fatalf("notifications shown = %d, want 1", len(sink.shown))
	}
	if got := sink.shown[0].TargetURL; got != domain.DefaultTargetPath {
		t.Errorf("target = %q, want %q", got, domain.DefaultTargetPath)
	}
}

// Malformed payloads are a safe no-op: no error, no notification.
func TestDispatcher_HandlePush_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"not json", []byte("push!")},
		{"json without title", []byte(`{"body":"no title"}`)},
		{"wrong shape", []byte(`[1,2,3]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &mockSink{}
			d := NewDispatcher(sink, &mockOpener{}, mockLogger{})
			if err := d.HandlePush(context.Background(), tt.raw); err != nil {
				t.Errorf("HandlePush() error = %v, want nil", err)
			}
			if len(sink.shown) != 0 {
				t.Errorf("notifications shown = %d, want 0", len(sink.shown))
			}
		})
	}
}

func TestDispatcher_HandleClick(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		data     ClickData
		wantOpen string
	}{
		{"view with course id", domain.ActionView, ClickData{CourseID: "aws-101"}, "/courses/aws-101"},
		{"view with explicit url", domain.ActionView, ClickData{URL: "/live/session-9", CourseID: "aws-101"}, "/live/session-9"},
		{"body click defaults to dashboard", "", ClickData{}, domain.DefaultTargetPath},
		{"dismiss opens nothing", domain.ActionDismiss, ClickData{CourseID: "aws-101"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := &mockOpener{}
			d := NewDispatcher(&mockSink{}, opener, mockLogger{})

			if err := d.HandleClick(context.Background(), tt.action, tt.data); err != nil {
				t.Fatalf("HandleClick() error = %v", err)
			}
			if tt.wantOpen == "" {
				if len(opener.opened) != 0 {
					t.Errorf("opened %v, want nothing", opener.opened)
				}
				return
			}
			if len(opener.opened) != 1 || opener.opened[0] != tt.wantOpen {
				t.Errorf("opened %v, want [%s]", opener.opened, tt.wantOpen)
			}
		})
	}
}
