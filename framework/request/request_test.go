package request

import (
	"context"
	"testing"
	"time"

	"github.com/lahuca/lane/framework/codec"
)

func TestRequestResolveOnce(t *testing.T) {
	h := NewHandler()
	defer h.Close()

	pending, err := h.Request(time.Minute)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !h.Resolve(pending.ID(), codec.OK(nil)) {
		t.Fatal("first resolve must win")
	}
	if h.Resolve(pending.ID(), codec.Fail(codec.ResultTimedOut)) {
		t.Fatal("second resolve must be discarded")
	}

	result, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !result.IsOK() {
		t.Errorf("result = %q, want OK", result.Code)
	}
}

func TestRequestIDsIncrease(t *testing.T) {
	h := NewHandler()
	defer h.Close()

	a, _ := h.Request(time.Minute)
	b, _ := h.Request(time.Minute)
	if b.ID() <= a.ID() {
		t.Errorf("ids must be monotonic: %d then %d", a.ID(), b.ID())
	}
}

func TestRequestTimeout(t *testing.T) {
	h := NewHandler()
	defer h.Close()

	pending, err := h.Request(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	result, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result.Code != codec.ResultTimedOut {
		t.Errorf("code = %q, want %q", result.Code, codec.ResultTimedOut)
	}
	if h.PendingCount() != 0 {
		t.Errorf("pending count = %d after timeout", h.PendingCount())
	}
}

func TestRequestUnknownID(t *testing.T) {
	h := NewHandler()
	defer h.Close()
	if h.Resolve(99999, codec.OK(nil)) {
		t.Fatal("resolving an unknown id must fail")
	}
}

func TestRequestThen(t *testing.T) {
	h := NewHandler()
	defer h.Close()

	pending, _ := h.Request(time.Minute)
	chained := pending.Then(func(r codec.Result) codec.Result {
		if !r.IsOK() {
			return r
		}
		return codec.Fail("TRANSFORMED")
	})
	h.Resolve(pending.ID(), codec.OK(nil))

	result, err := chained.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result.Code != "TRANSFORMED" {
		t.Errorf("code = %q", result.Code)
	}
}

func TestRequestWaitHonorsContext(t *testing.T) {
	h := NewHandler()
	defer h.Close()

	pending, _ := h.Request(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := pending.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestHandlerCloseFailsPending(t *testing.T) {
	h := NewHandler()
	pending, _ := h.Request(time.Minute)
	h.Close()

	result, err := pending.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result.Code != codec.ResultControllerDisconnected {
		t.Errorf("code = %q, want %q", result.Code, codec.ResultControllerDisconnected)
	}
	if _, err := h.Request(time.Minute); err == nil {
		t.Fatal("requests after close must fail")
	}
}
