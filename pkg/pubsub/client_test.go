package pubsub

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	c := &Client{projectID: "cm-dev"}

	cases := []struct {
		name    string
		kind    resourceKind
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare subscription", kind: kindSubscription, input: "cm-notifications", want: "projects/cm-dev/subscriptions/cm-notifications"},
		{name: "bare topic trimmed", kind: kindTopic, input: " cm-lifecycle-events ", want: "projects/cm-dev/topics/cm-lifecycle-events"},
		{name: "full name passes", kind: kindSubscription, input: "projects/other/subscriptions/xyz", want: "projects/other/subscriptions/xyz"},
		{name: "kind mismatch", kind: kindTopic, input: "projects/other/subscriptions/xyz", wantErr: true},
		{name: "blank", kind: kindTopic, input: "", wantErr: true},
		{name: "too short", kind: kindTopic, input: "ab", wantErr: true},
		{name: "reserved prefix", kind: kindTopic, input: "google-events", wantErr: true},
		{name: "leading digit", kind: kindSubscription, input: "1crops", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.resourceName(tc.kind, tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q got %q", tc.want, got)
			}
		})
	}
}

func TestConfiguredNamesSkipsBlank(t *testing.T) {
	if names := configuredNames("", "  "); len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
	names := configuredNames(" cm-notifications ")
	if len(names) != 1 || names[0] != "cm-notifications" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestDescribeLookup(t *testing.T) {
	if err := describeLookup(kindTopic, "events", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := describeLookup(kindSubscription, "cm-notifications", status.Error(codes.NotFound, "gone"))
	if err == nil || !strings.Contains(err.Error(), `subscription "cm-notifications" does not exist`) {
		t.Fatalf("unexpected not-found message: %v", err)
	}
	cause := status.Error(codes.Unavailable, "down")
	if err := describeLookup(kindTopic, "events", cause); !errors.Is(err, cause) {
		t.Fatalf("expected cause to be wrapped, got %v", err)
	}
}

func TestClientOptionsEmulator(t *testing.T) {
	if opts := clientOptions(config.GCPConfig{}); len(opts) != 0 {
		t.Fatalf("expected no options without emulator, got %d", len(opts))
	}
	if opts := clientOptions(config.GCPConfig{PubSubEmulatorURL: "localhost:8085"}); len(opts) != 3 {
		t.Fatalf("expected emulator options, got %d", len(opts))
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("topic") != nil {
		t.Fatalf("nil client should return nil publisher")
	}
	if c.Subscription("sub") != nil {
		t.Fatalf("nil client should return nil subscriber")
	}
	if err := c.Ping(context.Background()); !errors.Is(err, errNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
}
