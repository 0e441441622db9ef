package vaultcrypt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &ValidationError{
				Field:   "staging_dir",
				Value:   "tmp",
				Message: "must be an absolute path",
			},
			wantMsg: "validation error: staging_dir: must be an absolute path",
		},
		{
			name: "without field",
			err: &ValidationError{
				Message: "invalid configuration",
			},
			wantMsg: "validation error: invalid configuration",
		},
		{
			name: "with wrapped error",
			err: &ValidationError{
				Field:   "password",
				Message: "password cannot be empty",
				Err:     ErrEmptyPassword,
			},
			wantMsg: "validation error: password: password cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
			if unwrapped := tt.err.Unwrap(); unwrapped != tt.err.Err {
				t.Errorf("ValidationError.Unwrap() = %v, want %v", unwrapped, tt.err.Err)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	base := errors.New("disk full")

	err := NewStorageError("write", "notes/a.png", base)
	if got := err.Error(); got != "storage error: write notes/a.png: disk full" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("StorageError does not unwrap to its cause")
	}

	err = NewStorageError("purge", "", base)
	if got := err.Error(); got != "storage error: purge: disk full" {
		t.Errorf("Error() without path = %q", got)
	}
}

func TestAuthenticationError(t *testing.T) {
	err := newWrongPasswordError("")
	if !errors.Is(err, ErrWrongPassword) {
		t.Error("wrong password error does not unwrap to ErrWrongPassword")
	}

	annotated := withPath(fmt.Errorf("open: %w", err), "notes/trip.md")
	var ae *AuthenticationError
	if !errors.As(annotated, &ae) || ae.Path != "notes/trip.md" {
		t.Errorf("withPath did not set the path: %v", annotated)
	}
	if !strings.Contains(annotated.Error(), "notes/trip.md") {
		t.Errorf("Error() = %q lacks the path", annotated.Error())
	}

	// An existing path is kept
	again := withPath(annotated, "other.md")
	if !errors.As(again, &ae) || ae.Path != "notes/trip.md" {
		t.Errorf("withPath replaced an existing path: %v", again)
	}

	plain := errors.New("plain")
	if withPath(plain, "x") != plain {
		t.Error("withPath changed an untyped error")
	}
}

func TestCorruptionError(t *testing.T) {
	err := NewCorruptionError("notes/trip.md", "unterminated mapping comment")
	if got := err.Error(); got != "corruption error: notes/trip.md: unterminated mapping comment" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrCorruptEnvelope) {
		t.Error("corruption error does not unwrap to ErrCorruptEnvelope")
	}
}

func TestPartialCommitError(t *testing.T) {
	cause := NewStorageError("write", "b.png", errors.New("denied"))
	err := &PartialCommitError{
		TransactionID: "tx-1",
		Committed:     []StagingEntry{{SourcePath: "a.png"}},
		Pending:       []StagingEntry{{SourcePath: "b.png"}, {SourcePath: "c.png"}},
		StagingDir:    "/staging/vaultcrypt-tx-1",
		Err:           cause,
	}

	msg := err.Error()
	for _, want := range []string{"tx-1", "1 committed", "2 pending", "document not written", "/staging/vaultcrypt-tx-1", "denied"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !IsStorageError(err) || !IsPartialCommitError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("partial commit error does not unwrap correctly")
	}
}

func TestErrorCheckers(t *testing.T) {
	ve := &ValidationError{Message: "test"}
	ae := &AuthenticationError{Message: "test"}
	ce := &CorruptionError{Message: "test"}
	se := &StorageError{Operation: "read"}
	re := &ResolutionError{Target: "a.png"}
	pe := &PartialCommitError{}
	genericErr := errors.New("generic error")

	tests := []struct {
		name string
		err  error
		fn   func(error) bool
		want bool
	}{
		{"IsValidationError with ValidationError", ve, IsValidationError, true},
		{"IsValidationError with other error", genericErr, IsValidationError, false},
		{"IsAuthenticationError with AuthenticationError", ae, IsAuthenticationError, true},
		{"IsAuthenticationError with other error", genericErr, IsAuthenticationError, false},
		{"IsCorruptionError with CorruptionError", ce, IsCorruptionError, true},
		{"IsCorruptionError with other error", genericErr, IsCorruptionError, false},
		{"IsStorageError with StorageError", se, IsStorageError, true},
		{"IsStorageError with other error", genericErr, IsStorageError, false},
		{"IsResolutionError with ResolutionError", re, IsResolutionError, true},
		{"IsResolutionError with other error", genericErr, IsResolutionError, false},
		{"IsPartialCommitError with PartialCommitError", pe, IsPartialCommitError, true},
		{"IsPartialCommitError with other error", genericErr, IsPartialCommitError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.err); got != tt.want {
				t.Errorf("error checker = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindUnknown},
		{errors.New("boom"), KindUnknown},
		{newWrongPasswordError("a.md"), KindWrongPassword},
		{fmt.Errorf("%w: a.md", ErrNotEncrypted), KindNotEncrypted},
		{fmt.Errorf("%w: a.md", ErrAlreadyEncrypted), KindAlreadyEncrypted},
		{&ResolutionError{Target: "x.png", Err: ErrAttachmentNotFound}, KindAttachmentResolution},
		{NewStorageError("read", "a.md", errors.New("eio")), KindStorage},
		{NewCorruptionError("", "bad"), KindCorruptEnvelope},
		{&CorruptionError{Err: ErrCorruptData}, KindCorruptEnvelope},
		{&PartialCommitError{Err: NewStorageError("write", "a", errors.New("eio"))}, KindPartialCommit},
		{fmt.Errorf("%w: a.md", ErrTransactionInProgress), KindBusy},
		{fmt.Errorf("transaction aborted: %w", context.Canceled), KindCanceled},
		{context.DeadlineExceeded, KindCanceled},
		{ValidatePassword(""), KindInvalidInput},
		{NewValidationError("path", "", "empty"), KindInvalidInput},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMessages(t *testing.T) {
	wrong := newWrongPasswordError("a.md")

	if got := Message(wrong, LangEnglish); got != "Wrong password" {
		t.Errorf("Message(en) = %q", got)
	}
	if got := Message(wrong, LangChinese); got != "密码错误" {
		t.Errorf("Message(zh) = %q", got)
	}
	if got := Message(ValidatePassword(""), LangEnglish); got != "No password entered" {
		t.Errorf("empty password message = %q", got)
	}
	if got := FailureMessage(OpDecrypt, wrong, LangEnglish); got != "Decryption failed: Wrong password" {
		t.Errorf("FailureMessage = %q", got)
	}
	if got := FailureMessage(OpEncrypt, fmt.Errorf("%w", ErrAlreadyEncrypted), LangChinese); got != "加密失败: 文件已加密" {
		t.Errorf("FailureMessage(zh) = %q", got)
	}

	res := &Result{Operation: OpEncrypt, Attachments: make([]StagingEntry, 2)}
	if got := SuccessMessage(res, LangEnglish); got != "File encrypted (2 attachments)" {
		t.Errorf("SuccessMessage = %q", got)
	}

	// Every kind has a message in every catalog
	for _, lang := range []Language{LangEnglish, LangChinese} {
		for k := KindUnknown; k <= KindInvalidInput; k++ {
			if catalogFor(lang).kinds[k] == "" {
				t.Errorf("no %s message for %v", lang, k)
			}
		}
	}
}

func TestParseLanguage(t *testing.T) {
	for in, want := range map[string]Language{
		"":      LangEnglish,
		"en":    LangEnglish,
		"fr":    LangEnglish,
		"zh":    LangChinese,
		"zh-CN": LangChinese,
	} {
		if got := ParseLanguage(in); got != want {
			t.Errorf("ParseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
