package chat

import (
	"encoding/json"
	"testing"
)

func TestParseReactionsFieldArrayForm(t *testing.T) {
	raw := json.RawMessage(`[{"userId":"a","emoji":"👍"}]`)
	out, err := parseReactionsField(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out) != 1 || out[0].UserID != "a" || out[0].Emoji != "👍" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestParseReactionsFieldOderIDAlias(t *testing.T) {
	raw := json.RawMessage(`[{"oderId":"a","emoji":"👍"}]`)
	out, err := parseReactionsField(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out) != 1 || out[0].UserID != "a" {
		t.Fatalf("expected oderId to alias to userId, got %+v", out)
	}
}

func TestParseReactionsFieldLegacyMapForm(t *testing.T) {
	raw := json.RawMessage(`{"a":"👍","b":"❤"}`)
	out, err := parseReactionsField(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 reactions, got %+v", out)
	}
	// sorted by userId for deterministic output
	if out[0].UserID != "a" || out[1].UserID != "b" {
		t.Fatalf("expected sorted by userId, got %+v", out)
	}
}

func TestParseReactionsFieldNullAndEmpty(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(``)} {
		out, err := parseReactionsField(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if out != nil {
			t.Fatalf("expected nil result for %q, got %+v", raw, out)
		}
	}
}

func TestDirectMessageUnmarshalCanonicalizesReactions(t *testing.T) {
	raw := []byte(`{"id":"m1","chatId":"a:b","senderId":"a","receiverId":"b","text":"hi","status":"sent","reactions":{"b":"👍"}}`)
	var m DirectMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(m.Reactions) != 1 || m.Reactions[0].UserID != "b" {
		t.Fatalf("expected canonicalized reaction, got %+v", m.Reactions)
	}
}

func TestCanonicalizeRepairsNilMapsAndGroupFields(t *testing.T) {
	doc := &Document{
		Groups: map[string]*Group{
			"g1": {ID: "g1", CreatorID: "a"},
		},
	}
	canonicalize(doc)

	if doc.Users == nil || doc.Messages == nil || doc.Chats == nil || doc.GroupMessages == nil ||
		doc.Blocked == nil || doc.BlockedBy == nil || doc.PinnedChats == nil || doc.PinnedMessages == nil {
		t.Fatalf("expected all top-level maps repaired, got %+v", doc)
	}
	g := doc.Groups["g1"]
	if g.UnreadCounts == nil {
		t.Fatalf("expected UnreadCounts repaired")
	}
	if !containsString(g.Admins, "a") {
		t.Fatalf("expected creator added to admins, got %+v", g.Admins)
	}
	if g.PinnedMessageIDs == nil {
		t.Fatalf("expected PinnedMessageIDs repaired to empty slice")
	}
}

func TestCanonicalizeKeepsExistingAdminsAndAddsCreatorOnce(t *testing.T) {
	doc := &Document{
		Groups: map[string]*Group{
			"g1": {ID: "g1", CreatorID: "a", Admins: []string{"a", "b"}},
		},
	}
	canonicalize(doc)
	g := doc.Groups["g1"]
	if len(g.Admins) != 2 {
		t.Fatalf("expected admins unchanged when creator already present, got %+v", g.Admins)
	}
}
