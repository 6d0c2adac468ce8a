package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/history"
	"github.com/marinapotashenkova/SCPlayer/internal/server"
)

func TestDescribeStatus(t *testing.T) {
	track := &catalog.Track{ID: 5, Title: "Night Drive", Owner: "Kavinsky"}

	tests := []struct {
		name string
		st   server.StatusMessage
		want string
	}{
		{"idle", server.StatusMessage{Phase: "idle", Index: -1}, "idle"},
		{
			"first track loading",
			server.StatusMessage{Phase: "idle", Index: -1, Track: track},
			"loading: Kavinsky - Night Drive",
		},
		{
			"playing with progress",
			server.StatusMessage{Phase: "playing", Index: 1, Track: track, Progress: 0.25, Duration: 240},
			"playing 2: Kavinsky - Night Drive [1:00/4:00]",
		},
		{
			"paused without duration",
			server.StatusMessage{Phase: "paused", Index: 0, Track: track},
			"paused 1: Kavinsky - Night Drive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeStatus(tt.st); got != tt.want {
				t.Errorf("describeStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDescribeMessage(t *testing.T) {
	track := &catalog.Track{ID: 5, Title: "Night Drive", Owner: "Kavinsky"}

	mustMessage := func(typ server.MessageType, payload any) *server.Message {
		t.Helper()
		m, err := server.NewMessage(typ, payload)
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		return m
	}

	tests := []struct {
		name string
		msg  *server.Message
		want string
	}{
		{
			"hello",
			mustMessage(server.MessageTypeHello, server.HelloMessage{SessionID: "x", Status: server.StatusMessage{Phase: "idle"}}),
			"connected: idle",
		},
		{
			"event",
			mustMessage(server.MessageTypeEvent, server.EventMessage{Kind: "started", Phase: "playing", Index: 2, Track: track}),
			"started 3: Kavinsky - Night Drive",
		},
		{
			"failure",
			mustMessage(server.MessageTypeEvent, server.EventMessage{Kind: "failed", Index: 0, Track: track, Error: "no stream"}),
			"failed 1: Kavinsky - Night Drive (no stream)",
		},
		{
			"stopped",
			mustMessage(server.MessageTypeEvent, server.EventMessage{Kind: "stopped", Index: -1}),
			"stopped",
		},
		{
			"error",
			mustMessage(server.MessageTypeError, server.ErrorMessage{Reason: "bad command"}),
			"error: bad command",
		},
		{
			"progress is silent",
			mustMessage(server.MessageTypeProgress, server.ProgressMessage{Progress: 0.5}),
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := describeMessage(tt.msg)
			if err != nil {
				t.Fatalf("describeMessage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("describeMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintTracks_MarksCurrent(t *testing.T) {
	tracks := []catalog.Track{
		{ID: 1, Title: "One", Owner: "a"},
		{ID: 2, Title: "Two", Owner: "b"},
	}
	st := server.StatusMessage{Phase: "playing", Index: 1, Track: &tracks[1]}

	var buf bytes.Buffer
	printTracks(&buf, tracks, st)

	want := "    1  a - One\n*   2  b - Two\n"
	if buf.String() != want {
		t.Errorf("printTracks() = %q, want %q", buf.String(), want)
	}
}

func TestPrintPlays(t *testing.T) {
	var buf bytes.Buffer
	printPlays(&buf, nil)
	if buf.String() != "No plays recorded yet\n" {
		t.Errorf("printPlays(nil) = %q", buf.String())
	}

	buf.Reset()
	ts := time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local)
	printPlays(&buf, []history.Play{{Title: "One", Owner: "a", Played: 95 * time.Second, Timestamp: ts}})
	if want := "2026-03-01 12:30  a - One (1:35)\n"; buf.String() != want {
		t.Errorf("printPlays() = %q, want %q", buf.String(), want)
	}
}
