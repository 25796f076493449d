package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/clubledger-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		project string
		name    string
		want    string
	}{
		{project: "club-prod", name: "club-ledger-events", want: "projects/club-prod/topics/club-ledger-events"},
		{project: "club-prod", name: " projects/other/topics/ledger ", want: "projects/other/topics/ledger"},
		{project: "", name: "club-ledger-events", want: ""},
		{project: "club-prod", name: "  ", want: ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestNewClientValidatesInputs(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, "club-ledger-events", nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.GCPConfig{ProjectID: "club-prod"}, " ", nil); err != errTopicRequired {
		t.Fatalf("expected topic error, got %v", err)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if c.Publisher("x") != nil {
		t.Fatal("nil client should not return a publisher")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close returned %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error on nil client")
	}
}
