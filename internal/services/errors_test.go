package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrInvalidResponse, "generate", "decode", "empty narration", base)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "cache", "lookup", "", nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected default ErrRequestFailed marker, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout sentinel", Wrap(ErrTimeout, "generate", "", "", nil), KindTimeout},
		{"context deadline", context.DeadlineExceeded, KindTimeout},
		{"api key", ErrAPIKeyMissing, KindAPIKeyMissing},
		{"invalid config", fmt.Errorf("load: %w", ErrInvalidConfiguration), KindInvalidConfiguration},
		{"invalid response", ErrInvalidResponse, KindInvalidResponse},
		{"image", ErrImageProcessing, KindImageProcessing},
		{"upstream", &UpstreamError{StatusCode: 502, Message: "bad gateway"}, KindUpstream},
		{"rate limited", &UpstreamError{StatusCode: 429}, KindRateLimited},
		{"unknown", errors.New("mystery"), KindRequestFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestUpstreamErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("cache save: %w", &UpstreamError{StatusCode: 429, Message: "slow down"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("429 should unwrap to ErrRateLimited: %v", err)
	}
	err = fmt.Errorf("cache save: %w", &UpstreamError{StatusCode: 500})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("500 should unwrap to ErrUpstream: %v", err)
	}
}

func TestUserMessageCoversAllKinds(t *testing.T) {
	kinds := []Kind{
		KindAPIKeyMissing, KindInvalidConfiguration, KindRequestFailed,
		KindInvalidResponse, KindImageProcessing, KindTimeout,
		KindNetworkUnavailable, KindRateLimited, KindUpstream,
	}
	seen := map[string]Kind{}
	for _, kind := range kinds {
		msg := UserMessage(kind)
		if msg == "" {
			t.Fatalf("empty message for kind %q", kind)
		}
		if prev, dup := seen[msg]; dup {
			t.Fatalf("kinds %q and %q share message %q", prev, kind, msg)
		}
		seen[msg] = kind
	}
}

func TestSessionContextRoundTrip(t *testing.T) {
	ctx := WithSessionID(context.Background(), "abc-123")
	ctx = WithStage(ctx, "generate")

	if id, ok := SessionIDFromContext(ctx); !ok || id != "abc-123" {
		t.Fatalf("session id round trip failed: %q %v", id, ok)
	}
	if stage, ok := StageFromContext(ctx); !ok || stage != "generate" {
		t.Fatalf("stage round trip failed: %q %v", stage, ok)
	}
	if _, ok := SessionIDFromContext(context.Background()); ok {
		t.Fatal("expected no session id on empty context")
	}
}
