package views

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"laughgame/internal/viewmodel"
)

func renderString(t *testing.T, render func(*bytes.Buffer) error) string {
	t.Helper()
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestStatus_EscapesAndShowsFields(t *testing.T) {
	v := viewmodel.View{
		State:      "running",
		ScoreLabel: viewmodel.LabelSerious,
		MediaURL:   `http://media.test/a.gif?x=<script>`,
		Round:      2,
		Message:    "<b>hi</b>",
	}
	out := renderString(t, func(b *bytes.Buffer) error { return Status(v).Render(context.Background(), b) })

	if strings.Contains(out, "<script>") || strings.Contains(out, "<b>hi</b>") {
		t.Errorf("output not escaped: %s", out)
	}
	for _, want := range []string{`data-state="running"`, "Round 2", viewmodel.LabelSerious, `class="media"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestStatus_HidesMediaOutsideRunning(t *testing.T) {
	v := viewmodel.View{State: "loading", StateLabel: viewmodel.LabelLoading, MediaURL: "http://m/x.gif", ActivityVisible: true}
	out := renderString(t, func(b *bytes.Buffer) error { return Status(v).Render(context.Background(), b) })
	if strings.Contains(out, "<img") {
		t.Errorf("media shown while loading: %s", out)
	}
	if !strings.Contains(out, "activity") || !strings.Contains(out, viewmodel.LabelLoading) {
		t.Errorf("loading view incomplete: %s", out)
	}
}

func TestPage_FeedControls(t *testing.T) {
	page := viewmodel.GamePage{Title: "LaughGame", RoundDuration: 5 * time.Second}
	out := renderString(t, func(b *bytes.Buffer) error { return Page(page).Render(context.Background(), b) })
	if !strings.Contains(out, "<title>LaughGame</title>") || !strings.Contains(out, `data-round-ms="5000"`) || !strings.Contains(out, `new EventSource("/api/stream")`) {
		t.Errorf("page head or script wrong")
	}
	if strings.Contains(out, `id="laugh"`) {
		t.Error("feed controls rendered without feed sensor")
	}

	page.FeedSensor = true
	out = renderString(t, func(b *bytes.Buffer) error { return Page(page).Render(context.Background(), b) })
	if !strings.Contains(out, `id="laugh"`) {
		t.Error("feed controls missing")
	}
}
