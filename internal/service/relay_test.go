package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cryams/cryams/internal/mail"
	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/store"
	"github.com/cryams/cryams/internal/validate"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStores(t *testing.T) (*store.ProfileStore, *store.RequestQueue) {
	t.Helper()
	dir := t.TempDir()
	profiles := store.OpenProfiles(filepath.Join(dir, "profiles.json"), testLogger())
	requests := store.OpenRequests(filepath.Join(dir, "requests.json"), profiles, testLogger())
	return profiles, requests
}

func TestRelaySend(t *testing.T) {
	profiles, _ := newTestStores(t)
	p, _ := model.NewProfile(model.ProfileFields{UUID: "u1", Name: "Anna", Email: "anna@example.com"})
	if _, err := profiles.Create(p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sender := &recordingSender{}
	relay := NewRelay(profiles, sender, validate.New(), testLogger())

	if err := relay.Send(context.Background(), "u1", validate.MessageInput{Content: "Danke!"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "anna@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Text, "Danke!") || !strings.Contains(msg.Text, validate.DefaultSenderName) {
		t.Errorf("unexpected body: %s", msg.Text)
	}
}

func TestRelayErrors(t *testing.T) {
	profiles, _ := newTestStores(t)
	p, _ := model.NewProfile(model.ProfileFields{UUID: "u1", Name: "Anna", Email: "anna@example.com"})
	profiles.Create(p)

	sender := &recordingSender{}
	relay := NewRelay(profiles, sender, validate.New(), testLogger())
	ctx := context.Background()

	if err := relay.Send(ctx, "missing", validate.MessageInput{Content: "hi"}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("unknown profile: got %v", err)
	}
	if err := relay.Send(ctx, "u1", validate.MessageInput{Content: ""}); !errors.Is(err, validate.ErrInvalid) {
		t.Errorf("empty message: got %v", err)
	}

	sender.err = errors.New("connection refused")
	if err := relay.Send(ctx, "u1", validate.MessageInput{Content: "hi"}); !errors.Is(err, ErrDelivery) {
		t.Errorf("delivery failure: got %v", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestSubmitRequest(t *testing.T) {
	profiles, requests := newTestStores(t)
	sender := &recordingSender{}
	svc := NewProfiles(profiles, requests, validate.New(), sender, testLogger())
	svc.NotifyAddress = "ops@example.com"
	svc.AdminURL = "https://qr.example.com/admin"

	r, err := svc.SubmitRequest(context.Background(), validate.ProfileInput{
		Name:    "Anna",
		Email:   "Anna@Example.com",
		Sticker: "2x2",
	})
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if r.UUID == "" || r.Status != model.StatusPending || r.CreatedAt.IsZero() {
		t.Errorf("unexpected request: %+v", r)
	}
	if r.Email != "anna@example.com" {
		t.Errorf("email not normalized: %q", r.Email)
	}
	if requests.Len() != 1 {
		t.Errorf("queue length = %d, want 1", requests.Len())
	}
	if len(sender.sent) != 1 || sender.sent[0].To != "ops@example.com" {
		t.Errorf("admin notice not sent: %+v", sender.sent)
	}

	if _, err := svc.SubmitRequest(context.Background(), validate.ProfileInput{Name: "A"}); !errors.Is(err, validate.ErrInvalid) {
		t.Errorf("invalid input: got %v", err)
	}
	if requests.Len() != 1 {
		t.Error("invalid input must not be queued")
	}
}

func TestSubmitRequestNotifyFailureIgnored(t *testing.T) {
	profiles, requests := newTestStores(t)
	sender := &recordingSender{err: errors.New("smtp down")}
	svc := NewProfiles(profiles, requests, validate.New(), sender, testLogger())
	svc.NotifyAddress = "ops@example.com"

	if _, err := svc.SubmitRequest(context.Background(), validate.ProfileInput{Name: "Anna", Email: "a@example.com"}); err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}
	if requests.Len() != 1 {
		t.Error("request not queued")
	}
}

func TestCreateProfile(t *testing.T) {
	profiles, requests := newTestStores(t)
	svc := NewProfiles(profiles, requests, validate.New(), nil, testLogger())

	p, err := svc.CreateProfile(validate.ProfileInput{Name: "Anna", Email: "a@example.com", Description: "hi"})
	if err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}
	if !profiles.Has(p.UUID) {
		t.Error("profile not stored")
	}
	if p.CreatedAt.IsZero() {
		t.Error("CreatedAt not stamped")
	}
	if requests.Len() != 0 {
		t.Error("direct creation must bypass the queue")
	}
}
