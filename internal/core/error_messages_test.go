package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "empty input",
			err:         inputError("read csv", ErrEmptyInput, nil),
			wantCode:    "INP001",
			wantMessage: "The uploaded file is empty",
		},
		{
			name:        "bad encoding",
			err:         inputError("read csv", ErrInvalidEncoding, nil),
			wantCode:    "INP002",
			wantMessage: "File contains invalid characters",
		},
		{
			name:        "header only",
			err:         inputError("parse records", ErrNoDataRows, nil),
			wantCode:    "INP004",
			wantMessage: "The file has a header row but no recipients",
		},
		{
			name:        "template decode",
			err:         inputError("decode template", ErrTemplateDecode, errors.New("image: unknown format")),
			wantCode:    "INP006",
			wantMessage: "The template image could not be read",
		},
		{
			name:        "layout",
			err:         newError(KindConfigParse, "resolve layout", ErrInvalidLayout),
			wantCode:    "CFG001",
			wantMessage: "The layout settings are invalid",
		},
		{
			name:        "nothing generated",
			err:         newError(KindEmptyResult, "generate", ErrNoCertificates),
			wantCode:    "GEN001",
			wantMessage: "No certificates could be generated",
		},
		{
			name:        "assembly",
			err:         assemblyError("assemble zip", errors.New("disk full")),
			wantCode:    "ASM001",
			wantMessage: "The certificates could not be packaged",
		},
		{
			name:        "busy",
			err:         fmt.Errorf("generate: %w", ErrTooManyBatches),
			wantCode:    "BAT001",
			wantMessage: "System is busy generating other batches",
		},
		{
			name:        "deadline",
			err:         context.DeadlineExceeded,
			wantCode:    "BAT003",
			wantMessage: "Generation timed out",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("EMPTY FILE uploaded"),
			wantCode:    "INP001",
			wantMessage: "The uploaded file is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{
			"known",
			inputError("parse records", ErrNoDataRows, nil),
			"The file has a header row but no recipients (INP004). Add one row per recipient below the header",
		},
		{
			"unknown keeps technical text",
			errors.New("open /tmp/out: permission denied"),
			"An unexpected error occurred (ERR000): open /tmp/out: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUserError(tt.err); got != tt.want {
				t.Errorf("FormatUserError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantKind  ErrorKind
		wantFatal bool
		wantKnown bool
	}{
		{"fatal input", inputError("read csv", ErrInvalidTabular, errors.New("parse error on line 3")), "INP003", KindInputFormat, true, true},
		{"recoverable layout", newError(KindConfigParse, "resolve layout", ErrInvalidLayout), "CFG001", KindConfigParse, false, true},
		{"busy", ErrTooManyBatches, "BAT001", "", true, true},
		{"unmapped", errors.New("disk on fire"), "ERR000", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ue := NewUserError(tt.err)
			if ue.User.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", ue.User.Code, tt.wantCode)
			}
			if ue.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", ue.Kind, tt.wantKind)
			}
			if ue.Fatal != tt.wantFatal {
				t.Errorf("Fatal = %v, want %v", ue.Fatal, tt.wantFatal)
			}
			if ue.Known() != tt.wantKnown {
				t.Errorf("Known() = %v, want %v", ue.Known(), tt.wantKnown)
			}
			if ue.Error() != ue.User.Message {
				t.Errorf("Error() = %q, want user message", ue.Error())
			}
			if !errors.Is(ue, tt.err) {
				t.Error("Unwrap() should reach the technical error")
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  ErrorKind
		wantFatal bool
	}{
		{"input", inputError("x", ErrEmptyInput, nil), KindInputFormat, true},
		{"wrapped input", fmt.Errorf("upload: %w", inputError("x", ErrNoDataRows, nil)), KindInputFormat, true},
		{"config", newError(KindConfigParse, "x", ErrInvalidLayout), KindConfigParse, false},
		{"skip", newError(KindRecordSkipped, "x", ErrRecordSkipped), KindRecordSkipped, false},
		{"empty", newError(KindEmptyResult, "x", ErrNoCertificates), KindEmptyResult, true},
		{"plain", errors.New("boom"), "", true},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", got, tt.wantKind)
			}
			if got := IsFatal(tt.err); got != tt.wantFatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.wantFatal)
			}
		})
	}
}
