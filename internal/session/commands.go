package session

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/pliu/chattycore/internal/chat"
)

// --- identity & directory -------------------------------------------------

type registerPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (h *Handler) register(raw json.RawMessage) Result {
	var p registerPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ID == "" || p.Username == "" {
		return invalid("register", "missing id or username")
	}
	u, code, err := h.store.Register(p.ID, p.Username)
	if err != nil {
		if errors.Is(err, chat.ErrUsernameTaken) {
			return direct("register_error", map[string]any{"reason": "username_taken"})
		}
		log.Printf("session: register: %v", err)
		return direct("register_error", map[string]any{"reason": "internal_error"})
	}
	return h.bindAndSnapshot(u, code, "register_success")
}

type loginPayload struct {
	UserID string `json:"userId"`
}

func (h *Handler) login(raw json.RawMessage) Result {
	var p loginPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.UserID == "" {
		return invalid("login", "missing userId")
	}
	u, err := h.store.Login(p.UserID)
	if err != nil {
		return direct("login_error", map[string]any{"reason": "user_not_found"})
	}
	return h.bindAndSnapshot(u, "", "login_success")
}

type loginRecoveryPayload struct {
	RecoveryCode string `json:"recoveryCode"`
}

func (h *Handler) loginRecovery(raw json.RawMessage) Result {
	var p loginRecoveryPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.RecoveryCode == "" {
		return invalid("login_recovery", "missing recoveryCode")
	}
	u, err := h.store.LoginRecovery(p.RecoveryCode)
	if err != nil {
		return direct("login_error", map[string]any{"reason": "invalid_recovery_code"})
	}
	return h.bindAndSnapshot(u, "", "login_success")
}

type checkUsernamePayload struct {
	Username string `json:"username"`
}

func (h *Handler) checkUsername(raw json.RawMessage) Result {
	var p checkUsernamePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.Username == "" {
		return invalid("check_username", "missing username")
	}
	available := h.store.CheckUsername(p.Username)
	return direct("username_check_result", map[string]any{"username": p.Username, "available": available})
}

type searchUserPayload struct {
	Query string `json:"query"`
}

func (h *Handler) searchUser(raw json.RawMessage) Result {
	var p searchUserPayload
	if !decode(raw, &p) {
		return Result{}
	}
	return direct("search_result", map[string]any{"users": h.store.SearchUser(p.Query)})
}

// --- profile & account -----------------------------------------------------

type updateProfilePayload struct {
	DisplayName *string `json:"displayName"`
	Avatar      *string `json:"avatar"`
	Bio         *string `json:"bio"`
}

func (h *Handler) updateProfile(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p updateProfilePayload
	if !decode(raw, &p) {
		return Result{}
	}
	_, events, err := h.store.UpdateProfile(userID, p.DisplayName, p.Avatar, p.Bio)
	if err != nil {
		return direct("profile_error", map[string]any{"reason": "user_not_found"})
	}
	return routed(events)
}

func (h *Handler) deleteAccount(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	events, err := h.store.DeleteAccount(userID)
	if err != nil {
		log.Printf("session: delete_account %s: %v", userID, err)
		return Result{}
	}
	return routed(events)
}

type blockUserPayload struct {
	UserID    string `json:"userId"`
	IsBlocked bool   `json:"isBlocked"`
}

func (h *Handler) blockUser(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p blockUserPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.UserID == "" {
		return invalid("block_user", "missing userId")
	}
	events, err := h.store.BlockUser(userID, p.UserID, p.IsBlocked)
	if err != nil {
		log.Printf("session: block_user: %v", err)
		return Result{}
	}
	return routed(events)
}

// --- direct chat -----------------------------------------------------------

type sendMessagePayload struct {
	ID         string `json:"id"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
	ReplyTo    string `json:"replyTo"`
}

func (h *Handler) sendMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p sendMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ID == "" || p.ReceiverID == "" {
		return invalid("send_message", "missing id or receiverId")
	}
	_, events, err := h.store.SendMessage(p.ID, userID, p.ReceiverID, p.Text, p.ReplyTo, "")
	return h.directChatResult(userID, events, err)
}

type forwardMessagePayload struct {
	ID            string `json:"id"`
	ReceiverID    string `json:"receiverId"`
	Text          string `json:"text"`
	ForwardedFrom string `json:"forwardedFrom"`
}

func (h *Handler) forwardMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p forwardMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ID == "" || p.ReceiverID == "" {
		return invalid("forward_message", "missing id or receiverId")
	}
	_, events, err := h.store.ForwardMessage(p.ID, userID, p.ReceiverID, p.Text, p.ForwardedFrom)
	return h.directChatResult(userID, events, err)
}

// directChatResult maps SendMessage/ForwardMessage's policy errors to the
// message_blocked reply spec.md §7 names; every other error class is
// Validation and drops silently.
func (h *Handler) directChatResult(senderID string, events []chat.Outbound, err error) Result {
	if err != nil {
		if errors.Is(err, chat.ErrBlocked) || errors.Is(err, chat.ErrReceiverDeleted) {
			return Result{Routed: []chat.Outbound{chat.ToUserEvent(senderID, "message_blocked", map[string]any{})}}
		}
		log.Printf("session: send/forward message: %v", err)
		return Result{}
	}
	return routed(events)
}

type editMessagePayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

func (h *Handler) editMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p editMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ChatID == "" || p.MessageID == "" {
		return invalid("edit_message", "missing chatId or messageId")
	}
	_, events, err := h.store.EditMessage(p.ChatID, p.MessageID, userID, p.Text)
	if err != nil {
		log.Printf("session: edit_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type deleteMessagePayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}

func (h *Handler) deleteMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p deleteMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ChatID == "" || len(p.MessageIDs) == 0 {
		return invalid("delete_message", "missing chatId or messageIds")
	}
	events, err := h.store.DeleteMessage(p.ChatID, p.MessageIDs, userID)
	if err != nil {
		log.Printf("session: delete_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type markSeenPayload struct {
	ChatID    string `json:"chatId"`
	PartnerID string `json:"partnerId"`
}

func (h *Handler) markSeen(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p markSeenPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ChatID == "" || p.PartnerID == "" {
		return invalid("mark_seen", "missing chatId or partnerId")
	}
	events, err := h.store.MarkSeen(p.ChatID, userID, p.PartnerID)
	if err != nil {
		log.Printf("session: mark_seen: %v", err)
		return Result{}
	}
	return routed(events)
}

type markMessagesSeenPayload struct {
	ChatID     string   `json:"chatId"`
	PartnerID  string   `json:"partnerId"`
	MessageIDs []string `json:"messageIds"`
}

func (h *Handler) markMessagesSeen(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p markMessagesSeenPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ChatID == "" || p.PartnerID == "" {
		return invalid("mark_messages_seen", "missing chatId or partnerId")
	}
	events, err := h.store.MarkMessagesSeen(p.ChatID, userID, p.PartnerID, p.MessageIDs)
	if err != nil {
		log.Printf("session: mark_messages_seen: %v", err)
		return Result{}
	}
	return routed(events)
}

type typingPayload struct {
	PartnerID string `json:"partnerId"`
	IsTyping  bool   `json:"isTyping"`
}

func (h *Handler) typing(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p typingPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.PartnerID == "" {
		return invalid("typing", "missing partnerId")
	}
	return routed(h.store.Typing(userID, p.PartnerID, p.IsTyping))
}

type pinChatPayload struct {
	PartnerID string `json:"partnerId"`
	IsPinned  bool   `json:"isPinned"`
}

func (h *Handler) pinChat(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p pinChatPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.PartnerID == "" {
		return invalid("pin_chat", "missing partnerId")
	}
	events, err := h.store.PinChat(userID, p.PartnerID, p.IsPinned)
	if err != nil {
		log.Printf("session: pin_chat: %v", err)
		return Result{}
	}
	return routed(events)
}

type deleteChatPayload struct {
	PartnerID string `json:"partnerId"`
}

func (h *Handler) deleteChat(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p deleteChatPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.PartnerID == "" {
		return invalid("delete_chat", "missing partnerId")
	}
	events, err := h.store.DeleteChat(userID, p.PartnerID)
	if err != nil {
		log.Printf("session: delete_chat: %v", err)
		return Result{}
	}
	return routed(events)
}

type pinMessagePayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	ActorID   string `json:"actorId"`
	IsPinned  bool   `json:"isPinned"`
}

// pinMessage requires actorId == currentUserId, spec.md §9's explicit
// resolution of the source's "notifies currentUserId, not actorId" bug.
func (h *Handler) pinMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p pinMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ChatID == "" || p.MessageID == "" {
		return invalid("pin_message", "missing chatId or messageId")
	}
	if p.ActorID != "" && p.ActorID != userID {
		return Result{}
	}
	actor, ok := h.store.GetUser(userID)
	if !ok {
		return invalid("pin_message", "bound user not found")
	}
	events, _, err := h.store.PinMessage(p.ChatID, p.MessageID, userID, actor.DisplayName, p.IsPinned)
	if err != nil {
		log.Printf("session: pin_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type addReactionPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func (h *Handler) addReaction(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p addReactionPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ChatID == "" || p.MessageID == "" || p.Emoji == "" {
		return invalid("add_reaction", "missing chatId, messageId or emoji")
	}
	events, err := h.store.AddReaction(p.ChatID, p.MessageID, userID, p.Emoji)
	if err != nil {
		log.Printf("session: add_reaction: %v", err)
		return Result{}
	}
	return routed(events)
}

// --- groups -----------------------------------------------------------------

type createGroupPayload struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Avatar      string   `json:"avatar"`
	MemberIDs   []string `json:"memberIds"`
}

func (h *Handler) createGroup(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p createGroupPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ID == "" || p.Name == "" {
		return invalid("create_group", "missing id or name")
	}
	_, events, err := h.store.CreateGroup(p.ID, p.Name, p.Description, p.Avatar, userID, p.MemberIDs)
	if err != nil {
		log.Printf("session: create_group: %v", err)
		return Result{}
	}
	return routed(events)
}

type sendGroupMessagePayload struct {
	ID      string `json:"id"`
	GroupID string `json:"groupId"`
	Text    string `json:"text"`
	ReplyTo string `json:"replyTo"`
}

func (h *Handler) sendGroupMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p sendGroupMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ID == "" || p.GroupID == "" {
		return invalid("send_group_message", "missing id or groupId")
	}
	_, events, err := h.store.SendGroupMessage(p.ID, p.GroupID, userID, p.Text, p.ReplyTo)
	if err != nil {
		log.Printf("session: send_group_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type forwardGroupMessagePayload struct {
	ID            string `json:"id"`
	GroupID       string `json:"groupId"`
	Text          string `json:"text"`
	ForwardedFrom string `json:"forwardedFrom"`
}

func (h *Handler) forwardGroupMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p forwardGroupMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.ID == "" || p.GroupID == "" {
		return invalid("forward_group_message", "missing id or groupId")
	}
	_, events, err := h.store.ForwardGroupMessage(p.ID, p.GroupID, userID, p.Text, p.ForwardedFrom)
	if err != nil {
		log.Printf("session: forward_group_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type markGroupSeenPayload struct {
	GroupID string `json:"groupId"`
}

func (h *Handler) markGroupSeen(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p markGroupSeenPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" {
		return invalid("mark_group_seen", "missing groupId")
	}
	events, err := h.store.MarkGroupSeen(p.GroupID, userID)
	if err != nil {
		log.Printf("session: mark_group_seen: %v", err)
		return Result{}
	}
	return routed(events)
}

type markGroupMessagesSeenPayload struct {
	GroupID    string   `json:"groupId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
}

// markGroupMessagesSeen requires userId == currentUserId (spec.md §4.4,
// §4.5's named exception list).
func (h *Handler) markGroupMessagesSeen(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p markGroupMessagesSeenPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" {
		return invalid("mark_group_messages_seen", "missing groupId")
	}
	if p.UserID != "" && p.UserID != userID {
		return Result{}
	}
	events, err := h.store.MarkGroupMessagesSeen(p.GroupID, userID, p.MessageIDs)
	if err != nil {
		log.Printf("session: mark_group_messages_seen: %v", err)
		return Result{}
	}
	return routed(events)
}

type editGroupMessagePayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
	Text      string `json:"text"`
}

func (h *Handler) editGroupMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p editGroupMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MessageID == "" {
		return invalid("edit_group_message", "missing groupId or messageId")
	}
	_, events, err := h.store.EditGroupMessage(p.GroupID, p.MessageID, userID, p.Text)
	if err != nil {
		log.Printf("session: edit_group_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type deleteGroupMessagePayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
}

func (h *Handler) deleteGroupMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p deleteGroupMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MessageID == "" {
		return invalid("delete_group_message", "missing groupId or messageId")
	}
	events, err := h.store.DeleteGroupMessage(p.GroupID, p.MessageID, userID)
	if err != nil {
		log.Printf("session: delete_group_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type pinGroupMessagePayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
	IsPinned  bool   `json:"isPinned"`
}

func (h *Handler) pinGroupMessage(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p pinGroupMessagePayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MessageID == "" {
		return invalid("pin_group_message", "missing groupId or messageId")
	}
	_, events, err := h.store.PinGroupMessage(p.GroupID, p.MessageID, userID, p.IsPinned)
	if err != nil {
		log.Printf("session: pin_group_message: %v", err)
		return Result{}
	}
	return routed(events)
}

type addGroupMemberPayload struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
	ActorID  string `json:"actorId"`
}

func (h *Handler) addGroupMember(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p addGroupMemberPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MemberID == "" {
		return invalid("add_group_member", "missing groupId or memberId")
	}
	if p.ActorID != "" && p.ActorID != userID {
		return Result{}
	}
	_, events, err := h.store.AddGroupMember(p.GroupID, p.MemberID, userID)
	if err != nil {
		log.Printf("session: add_group_member: %v", err)
		return Result{}
	}
	return routed(events)
}

type removeGroupMemberPayload struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
	ActorID  string `json:"actorId"`
}

func (h *Handler) removeGroupMember(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p removeGroupMemberPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MemberID == "" {
		return invalid("remove_group_member", "missing groupId or memberId")
	}
	if p.ActorID != "" && p.ActorID != userID {
		return Result{}
	}
	events, err := h.store.RemoveGroupMember(p.GroupID, p.MemberID, userID)
	if err != nil {
		log.Printf("session: remove_group_member: %v", err)
		return Result{}
	}
	return routed(events)
}

type setGroupAdminPayload struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
	ActorID  string `json:"actorId"`
	IsAdmin  bool   `json:"isAdmin"`
}

func (h *Handler) setGroupAdmin(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p setGroupAdminPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MemberID == "" {
		return invalid("set_group_admin", "missing groupId or memberId")
	}
	if p.ActorID != "" && p.ActorID != userID {
		return Result{}
	}
	_, events, err := h.store.SetGroupAdmin(p.GroupID, p.MemberID, userID, p.IsAdmin)
	if err != nil {
		log.Printf("session: set_group_admin: %v", err)
		return Result{}
	}
	return routed(events)
}

type addGroupReactionPayload struct {
	GroupID   string `json:"groupId"`
	MessageID string `json:"messageId"`
	Emoji     string `json:"emoji"`
}

func (h *Handler) addGroupReaction(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p addGroupReactionPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" || p.MessageID == "" || p.Emoji == "" {
		return invalid("add_group_reaction", "missing groupId, messageId or emoji")
	}
	events, err := h.store.AddGroupReaction(p.GroupID, p.MessageID, userID, p.Emoji)
	if err != nil {
		log.Printf("session: add_group_reaction: %v", err)
		return Result{}
	}
	return routed(events)
}

type groupTypingPayload struct {
	GroupID  string `json:"groupId"`
	IsTyping bool   `json:"isTyping"`
}

func (h *Handler) groupTyping(raw json.RawMessage) Result {
	userID, ok := h.bound()
	if !ok {
		return Result{}
	}
	var p groupTypingPayload
	if !decode(raw, &p) {
		return Result{}
	}
	if p.GroupID == "" {
		return invalid("group_typing", "missing groupId")
	}
	return routed(h.store.GroupTyping(p.GroupID, userID, p.IsTyping))
}
