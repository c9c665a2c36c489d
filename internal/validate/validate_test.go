package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestProfile(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		input   ProfileInput
		isValid bool
		field   string
	}{
		{
			name:    "valid",
			input:   ProfileInput{Name: "Jörg Müller-Weiß", Email: "joerg@example.com", Description: "Klasse 10b"},
			isValid: true,
		},
		{
			name:    "valid_with_sticker",
			input:   ProfileInput{Name: "Anna", Email: "anna@example.com", Sticker: "3x3"},
			isValid: true,
		},
		{
			name:  "name_too_short",
			input: ProfileInput{Name: "A", Email: "a@example.com"},
			field: "name",
		},
		{
			name:  "name_with_digits",
			input: ProfileInput{Name: "Anna2", Email: "a@example.com"},
			field: "name",
		},
		{
			name:  "name_too_long",
			input: ProfileInput{Name: strings.Repeat("a", 51), Email: "a@example.com"},
			field: "name",
		},
		{
			name:  "bad_email",
			input: ProfileInput{Name: "Anna", Email: "not-an-email"},
			field: "email",
		},
		{
			name:  "email_too_long",
			input: ProfileInput{Name: "Anna", Email: strings.Repeat("a", 95) + "@example.com"},
			field: "email",
		},
		{
			name:  "description_too_long",
			input: ProfileInput{Name: "Anna", Email: "a@example.com", Description: strings.Repeat("x", 501)},
			field: "description",
		},
		{
			name:  "bad_sticker",
			input: ProfileInput{Name: "Anna", Email: "a@example.com", Sticker: "9x9"},
			field: "sticker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Profile(tt.input)
			if tt.isValid {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			found := false
			for _, p := range verr.Problems {
				if p.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no problem reported for %q: %+v", tt.field, verr.Problems)
			}
		})
	}
}

func TestProfileSanitizes(t *testing.T) {
	v := New()

	f, err := v.Profile(ProfileInput{
		Name:        "  Anna <b>Berg</b> ",
		Email:       " Anna@Example.COM ",
		Description: `Hi <script>alert("x")</script>there & more`,
		Sticker:     "2X3",
	})
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if f.Name != "Anna Berg" {
		t.Errorf("name = %q", f.Name)
	}
	if f.Email != "anna@example.com" {
		t.Errorf("email = %q", f.Email)
	}
	if strings.Contains(f.Description, "<script>") || !strings.Contains(f.Description, "there & more") {
		t.Errorf("description = %q", f.Description)
	}
	if f.StickerPDF == nil || f.StickerPDF.Label != "2x3" || f.StickerPDF.Count != 6 {
		t.Errorf("sticker = %+v", f.StickerPDF)
	}
	if f.UUID != "" {
		t.Errorf("uuid = %q, want empty", f.UUID)
	}
}

func TestMessage(t *testing.T) {
	v := New()

	m, err := v.Message(MessageInput{Content: "  Danke für alles!  "})
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if m.Content != "Danke für alles!" || m.SenderName != DefaultSenderName {
		t.Errorf("got %+v", m)
	}

	m, err = v.Message(MessageInput{Content: "hi", SenderName: "<i>Max</i>"})
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if m.SenderName != "Max" {
		t.Errorf("sender = %q, want Max", m.SenderName)
	}

	tests := []struct {
		name  string
		input MessageInput
		valid bool
	}{
		{"blank", MessageInput{Content: "   "}, false},
		{"markup only", MessageInput{Content: "<b></b>"}, false},
		{"too long", MessageInput{Content: strings.Repeat("ä", 2001)}, false},
		{"limit counts characters", MessageInput{Content: strings.Repeat("ä", 2000)}, true},
		{"sender too long", MessageInput{Content: "hi", SenderName: strings.Repeat("a", 51)}, false},
	}
	for _, tt := range tests {
		_, err := v.Message(tt.input)
		if tt.valid && err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tt.name, err)
		}
	}
}

func TestLogin(t *testing.T) {
	v := New()

	tests := []struct {
		username string
		isValid  bool
	}{
		{"admin", true},
		{"site_admin-2", true},
		{"ab", false},
		{strings.Repeat("a", 31), false},
		{"admin!", false},
		{"ädmin", false},
	}
	for _, tt := range tests {
		_, err := v.Login(LoginInput{Username: tt.username, Password: "x"})
		if tt.isValid && err != nil {
			t.Errorf("Login(%q): unexpected error %v", tt.username, err)
		}
		if !tt.isValid && !errors.Is(err, ErrInvalid) {
			t.Errorf("Login(%q): expected ErrInvalid, got %v", tt.username, err)
		}
	}

	if _, err := v.Login(LoginInput{Username: "admin"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("missing password: expected ErrInvalid, got %v", err)
	}
}

func TestErrorMessage(t *testing.T) {
	v := New()
	_, err := v.Profile(ProfileInput{})
	if err == nil {
		t.Fatal("expected error for empty input")
	}
	for _, want := range []string{"name is required", "email is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}
