// Package validate checks and sanitizes user input from the public forms, the
// admin pages and the JSON API before it reaches the stores.
package validate

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/cryams/cryams/internal/model"
)

// DefaultSenderName is used when a visitor leaves the sender field empty.
const DefaultSenderName = "Anonym"

var (
	personNamePattern = regexp.MustCompile(`^[a-zA-ZäöüÄÖÜß\s\-.]+$`)
	usernamePattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ErrInvalid matches every *Error.
var ErrInvalid = errors.New("invalid input")

// Problem is a single field failure, phrased for the submitting user.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error collects all problems found in one submission.
type Error struct {
	Problems []Problem
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Message
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() error { return ErrInvalid }

// ProfileInput is a profile request or a direct profile creation.
type ProfileInput struct {
	Name        string `json:"name" validate:"required,min=2,max=50,person_name"`
	Email       string `json:"email" validate:"required,max=100,email"`
	Description string `json:"description" validate:"max=500"`
	Sticker     string `json:"sticker"`
}

// MessageInput is an anonymous message for a profile owner.
type MessageInput struct {
	Content    string `json:"content" validate:"required,min=1,max=2000"`
	SenderName string `json:"senderName" validate:"max=50"`
}

// LoginInput carries admin credentials.
type LoginInput struct {
	Username string `json:"username" validate:"required,min=3,max=30,username"`
	Password string `json:"password" validate:"required"`
}

// Validator wraps a configured go-playground validator and an HTML stripping
// policy. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	strip    *bluemonday.Policy
}

// New returns a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New()

	v.RegisterValidation("person_name", func(fl validator.FieldLevel) bool {
		return personNamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})

	return &Validator{validate: v, strip: bluemonday.StrictPolicy()}
}

// Sanitize removes all markup from s and trims surrounding whitespace.
func (v *Validator) Sanitize(s string) string {
	// bluemonday escapes what it keeps; templates escape again on output.
	return strings.TrimSpace(html.UnescapeString(v.strip.Sanitize(s)))
}

// Profile sanitizes and validates in. The returned fields carry no uuid;
// the caller assigns one.
func (v *Validator) Profile(in ProfileInput) (model.ProfileFields, error) {
	in.Name = v.Sanitize(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Description = v.Sanitize(in.Description)

	var problems []Problem
	if err := v.validate.Struct(in); err != nil {
		problems = append(problems, v.problems(err)...)
	}

	f := model.ProfileFields{
		Name:        in.Name,
		Email:       in.Email,
		Description: in.Description,
	}
	if label := strings.TrimSpace(in.Sticker); label != "" {
		spec, err := model.ParseStickerSpec(label)
		if err != nil {
			problems = append(problems, Problem{Field: "sticker", Message: fmt.Sprintf("sticker layout must be RxC with 1 to %d rows and columns", model.MaxStickerGrid)})
		} else {
			f.StickerPDF = &spec
		}
	}

	if len(problems) > 0 {
		return model.ProfileFields{}, &Error{Problems: problems}
	}
	return f, nil
}

// Message sanitizes and validates in. An empty sender becomes
// DefaultSenderName.
func (v *Validator) Message(in MessageInput) (MessageInput, error) {
	in.Content = v.Sanitize(in.Content)
	in.SenderName = v.Sanitize(in.SenderName)

	if err := v.validate.Struct(in); err != nil {
		return MessageInput{}, &Error{Problems: v.problems(err)}
	}
	if in.SenderName == "" {
		in.SenderName = DefaultSenderName
	}
	return in, nil
}

// Login validates the shape of a login or setup submission. The password is
// passed through untouched.
func (v *Validator) Login(in LoginInput) (LoginInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := v.validate.Struct(in); err != nil {
		return LoginInput{}, &Error{Problems: v.problems(err)}
	}
	return in, nil
}

func (v *Validator) problems(err error) []Problem {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Problem{{Message: err.Error()}}
	}
	out := make([]Problem, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		out = append(out, Problem{Field: field, Message: message(field, fe)})
	}
	return out
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case "email":
		return "a valid e-mail address is required"
	case "person_name":
		return field + " may only contain letters, spaces, hyphens and dots"
	case "username":
		return field + " may only contain letters, digits, underscores and hyphens"
	default:
		return field + " is invalid"
	}
}
