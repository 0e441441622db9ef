package vaultcrypt

import (
	"errors"
	"strings"
	"testing"
)

func testTable(t *testing.T, pairs ...string) *MappingTable {
	t.Helper()
	table := NewMappingTable()
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := table.Insert(NewFileMapping(pairs[i], pairs[i+1])); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	return table
}

func TestEmbedExtractMapping(t *testing.T) {
	table := testTable(t,
		"notes/img.png", "notes/trip_0123456789abcdef0123456789abcdef",
		"notes/a-->b.png", "notes/trip_fedcba9876543210fedcba9876543210",
	)
	body := "# Trip\n\n![[trip_0123456789abcdef0123456789abcdef]]\n"

	embedded, err := EmbedMapping(table, body)
	if err != nil {
		t.Fatalf("EmbedMapping failed: %v", err)
	}
	if !strings.HasPrefix(embedded, mappingCommentPrefix) {
		t.Fatalf("embedded body does not start with the mapping comment: %q", embedded)
	}
	if strings.Count(embedded, mappingCommentSuffix) != 1 {
		t.Error("mapping payload contains the comment terminator")
	}

	got, rest, err := ExtractMapping(embedded)
	if err != nil {
		t.Fatalf("ExtractMapping failed: %v", err)
	}
	if rest != body {
		t.Errorf("body = %q, want %q", rest, body)
	}
	if got.Len() != 2 {
		t.Fatalf("table has %d entries, want 2", got.Len())
	}
	m, ok := got.LookupOriginal("notes/a-->b.png")
	if !ok {
		t.Fatal("mapping for notes/a-->b.png lost")
	}
	if m.FileType != ".png" || m.OriginalName != "a-->b.png" {
		t.Errorf("unexpected mapping %+v", m)
	}
}

func TestExtractMapping_NoHeader(t *testing.T) {
	table, body, err := ExtractMapping("plain body")
	if err != nil {
		t.Fatalf("ExtractMapping failed: %v", err)
	}
	if table.Len() != 0 || body != "plain body" {
		t.Errorf("got %d entries, body %q", table.Len(), body)
	}
}

func TestExtractMapping_CRLF(t *testing.T) {
	_, body, err := ExtractMapping(mappingCommentPrefix + "{}" + mappingCommentSuffix + "\r\nbody")
	if err != nil {
		t.Fatal(err)
	}
	if body != "body" {
		t.Errorf("body = %q, want %q", body, "body")
	}
}

func TestExtractMapping_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unterminated", mappingCommentPrefix + `{"a":{}}` + "\nbody"},
		{"malformed json", mappingCommentPrefix + `{"a":` + mappingCommentSuffix + "\nbody"},
		{"not an object", mappingCommentPrefix + `null` + mappingCommentSuffix + "\nbody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ExtractMapping(tt.body)
			if !errors.Is(err, ErrCorruptEnvelope) {
				t.Errorf("ExtractMapping error = %v, want ErrCorruptEnvelope", err)
			}
			if !IsCorruptionError(err) {
				t.Errorf("expected *CorruptionError, got %T", err)
			}
		})
	}
}

func TestAttachmentFooter(t *testing.T) {
	content := Marker + "v2:AAAA"
	tokens := []string{"![[notes/trip_1]]", "![[notes/trip_2]]"}

	withFooter := AddAttachmentFooter(content, tokens)
	if withFooter != content+"\n\nATTACHMENTS: ![[notes/trip_1]], ![[notes/trip_2]]" {
		t.Errorf("unexpected footer: %q", withFooter)
	}

	sealed, got := SplitAttachmentFooter(withFooter)
	if sealed != content {
		t.Errorf("sealed = %q, want %q", sealed, content)
	}
	if len(got) != 2 || got[0] != tokens[0] || got[1] != tokens[1] {
		t.Errorf("tokens = %v, want %v", got, tokens)
	}

	if AddAttachmentFooter(content, nil) != content {
		t.Error("empty token list must not add a footer")
	}
	if s, toks := SplitAttachmentFooter(content); s != content || toks != nil {
		t.Errorf("split without footer = %q, %v", s, toks)
	}
}

func TestSealOpenEnvelope(t *testing.T) {
	table := testTable(t, "img.png", "trip_0123456789abcdef0123456789abcdef")
	body := "See ![[trip_0123456789abcdef0123456789abcdef]]"

	for _, withFooter := range []bool{true, false} {
		sealed, err := SealEnvelope(nil, body, table, withFooter, "hunter2")
		if err != nil {
			t.Fatalf("SealEnvelope failed: %v", err)
		}
		if got := strings.Contains(sealed, footerLabel); got != withFooter {
			t.Errorf("withFooter=%v: footer present = %v", withFooter, got)
		}
		if strings.Contains(sealed, body) {
			t.Error("sealed envelope leaks the body")
		}

		env, err := OpenEnvelope(nil, sealed, "hunter2")
		if err != nil {
			t.Fatalf("OpenEnvelope failed: %v", err)
		}
		if env.Body != body {
			t.Errorf("body = %q, want %q", env.Body, body)
		}
		if _, ok := env.Mapping.Get("trip_0123456789abcdef0123456789abcdef"); !ok {
			t.Error("mapping entry missing")
		}
		if withFooter && (len(env.Attachments) != 1 || env.Attachments[0] != "![[trip_0123456789abcdef0123456789abcdef]]") {
			t.Errorf("footer tokens = %v", env.Attachments)
		}

		if _, err := OpenEnvelope(nil, sealed, "wrong"); !errors.Is(err, ErrWrongPassword) {
			t.Errorf("wrong password error = %v", err)
		}
	}

	if _, err := OpenEnvelope(nil, body, "hunter2"); !errors.Is(err, ErrNotEncrypted) {
		t.Errorf("plain document error = %v, want ErrNotEncrypted", err)
	}
}
