package chat

import "testing"

func setupTrio(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	mustRegister(t, s, "a", "alice")
	mustRegister(t, s, "b", "bob")
	mustRegister(t, s, "c", "carol")
	return s
}

func TestCreateGroupDedupsAndFiltersToLiveUsers(t *testing.T) {
	s := setupTrio(t)
	g, _, err := s.CreateGroup("g1", "squad", "", "", "a", []string{"b", "b", "a", "ghost"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if len(g.MemberIDs) != 2 {
		t.Fatalf("expected members [a b], got %+v", g.MemberIDs)
	}
	if g.CreatorID != "a" {
		t.Fatalf("expected a as creator, got %s", g.CreatorID)
	}
	if !containsString(g.Admins, "a") || len(g.Admins) != 1 {
		t.Fatalf("expected a as sole initial admin, got %+v", g.Admins)
	}
}

// TestGroupMessagingUnreadAccounting is spec.md §8 scenario 4's core:
// sending zeroes the sender's own unread counter and increments everyone
// else's, and MarkGroupSeen zeroes it back out.
func TestGroupMessagingUnreadAccounting(t *testing.T) {
	s := setupTrio(t)
	g, _, err := s.CreateGroup("g1", "squad", "", "", "a", []string{"b", "c"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, _, err := s.SendGroupMessage("m1", g.ID, "a", "hi all", ""); err != nil {
		t.Fatalf("send group message: %v", err)
	}
	gp, err := s.group(g.ID)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if gp.UnreadCounts["a"] != 0 {
		t.Fatalf("expected sender unread 0, got %d", gp.UnreadCounts["a"])
	}
	if gp.UnreadCounts["b"] != 1 || gp.UnreadCounts["c"] != 1 {
		t.Fatalf("expected unread 1 for b and c, got %+v", gp.UnreadCounts)
	}

	if _, err := s.MarkGroupSeen(g.ID, "b"); err != nil {
		t.Fatalf("mark group seen: %v", err)
	}
	if gp.UnreadCounts["b"] != 0 {
		t.Fatalf("expected b unread 0 after mark seen, got %d", gp.UnreadCounts["b"])
	}
}

func TestMarkGroupMessagesSeenSelectiveDecrementsUnread(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b"})
	s.SendGroupMessage("m1", g.ID, "a", "one", "")
	s.SendGroupMessage("m2", g.ID, "a", "two", "")

	if _, err := s.MarkGroupMessagesSeen(g.ID, "b", []string{"m1"}); err != nil {
		t.Fatalf("mark messages seen: %v", err)
	}
	gp, _ := s.group(g.ID)
	if gp.UnreadCounts["b"] != 1 {
		t.Fatalf("expected unread 1 after partial seen, got %d", gp.UnreadCounts["b"])
	}
}

func TestEditGroupMessageSenderOnly(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b"})
	s.SendGroupMessage("m1", g.ID, "a", "hi", "")

	if _, _, err := s.EditGroupMessage(g.ID, "m1", "b", "hijack"); err != ErrNotSender {
		t.Fatalf("expected ErrNotSender, got %v", err)
	}
	msg, _, err := s.EditGroupMessage(g.ID, "m1", "a", "edited")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if msg.Text != "edited" {
		t.Fatalf("expected edited text, got %q", msg.Text)
	}
}

func TestDeleteGroupMessageBySenderOrAdmin(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b", "c"})
	s.SendGroupMessage("m1", g.ID, "b", "hi", "")

	if _, err := s.DeleteGroupMessage(g.ID, "m1", "c"); err != ErrNotAdmin {
		t.Fatalf("expected ErrNotAdmin for non-sender non-admin, got %v", err)
	}
	if _, err := s.DeleteGroupMessage(g.ID, "m1", "a"); err != nil {
		t.Fatalf("expected admin to delete, got %v", err)
	}
	if len(s.GroupMessagesFor("b")[g.ID]) != 0 {
		t.Fatalf("expected message removed")
	}
}

func TestPinGroupMessageAdminOnly(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b"})
	s.SendGroupMessage("m1", g.ID, "a", "hi", "")

	if _, _, err := s.PinGroupMessage(g.ID, "m1", "b", true); err != ErrNotAdmin {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	gp, _, err := s.PinGroupMessage(g.ID, "m1", "a", true)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if !containsString(gp.PinnedMessageIDs, "m1") {
		t.Fatalf("expected m1 pinned, got %+v", gp.PinnedMessageIDs)
	}
}

func TestAddGroupMemberRequiresAdmin(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", nil)

	if _, _, err := s.AddGroupMember(g.ID, "c", "b"); err != ErrNotAdmin {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	gp, _, err := s.AddGroupMember(g.ID, "b", "a")
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if !containsString(gp.MemberIDs, "b") {
		t.Fatalf("expected b added, got %+v", gp.MemberIDs)
	}
}

func TestRemoveGroupMemberCreatorImmutable(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b", "c"})

	if _, err := s.RemoveGroupMember(g.ID, "a", "a"); err != ErrCreatorImmutable {
		t.Fatalf("expected ErrCreatorImmutable, got %v", err)
	}
	if _, err := s.RemoveGroupMember(g.ID, "b", "a"); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	gp, _ := s.group(g.ID)
	if containsString(gp.MemberIDs, "b") {
		t.Fatalf("expected b removed, got %+v", gp.MemberIDs)
	}
	if gp.IsDeleted {
		t.Fatalf("expected group still live with c remaining")
	}
}

// TestRemoveGroupMemberDissolvesWhenCreatorBecomesSoleMember is spec.md §3's
// "only a creator may dissolve implicitly by becoming sole member" rule.
func TestRemoveGroupMemberDissolvesWhenCreatorBecomesSoleMember(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b"})

	events, err := s.RemoveGroupMember(g.ID, "b", "a")
	if err != nil {
		t.Fatalf("remove b: %v", err)
	}
	gp, err := s.group(g.ID)
	if err == nil || gp != nil {
		t.Fatalf("expected dissolved group to read as unknown, got %+v err=%v", gp, err)
	}
	for _, e := range events {
		if e.UserID == "a" && e.Event.Type == "group_updated" && e.Event.Data == nil {
			return
		}
	}
	t.Fatalf("expected a null group_updated to the creator, got %+v", events)
}

func TestSetGroupAdminCreatorCannotBeDemoted(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b"})

	if _, _, err := s.SetGroupAdmin(g.ID, "a", "a", false); err != ErrCreatorImmutable {
		t.Fatalf("expected ErrCreatorImmutable, got %v", err)
	}
	gp, _, err := s.SetGroupAdmin(g.ID, "b", "a", true)
	if err != nil {
		t.Fatalf("promote b: %v", err)
	}
	if !containsString(gp.Admins, "b") {
		t.Fatalf("expected b promoted, got %+v", gp.Admins)
	}
	if _, _, err := s.SetGroupAdmin(g.ID, "a", "b", false); err != ErrCreatorImmutable {
		t.Fatalf("expected ErrCreatorImmutable even when actor is another admin, got %v", err)
	}
}

func TestGroupReactionToggle(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b"})
	s.SendGroupMessage("m1", g.ID, "a", "hi", "")

	if _, err := s.AddGroupReaction(g.ID, "m1", "b", "👍"); err != nil {
		t.Fatalf("react: %v", err)
	}
	m, _ := s.doc.findGroupMessage(g.ID, "m1")
	if len(m.Reactions) != 1 {
		t.Fatalf("expected 1 reaction, got %+v", m.Reactions)
	}
	if _, err := s.AddGroupReaction(g.ID, "m1", "b", "👍"); err != nil {
		t.Fatalf("react again: %v", err)
	}
	if len(m.Reactions) != 0 {
		t.Fatalf("expected reaction toggled off, got %+v", m.Reactions)
	}
}

func TestGroupTypingExcludesTyper(t *testing.T) {
	s := setupTrio(t)
	g, _, _ := s.CreateGroup("g1", "squad", "", "", "a", []string{"b", "c"})
	events := s.GroupTyping(g.ID, "a", true)
	for _, e := range events {
		if e.UserID == "a" {
			t.Fatalf("expected typer excluded from recipients")
		}
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(events))
	}
}
