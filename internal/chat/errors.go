package chat

import "errors"

// Sentinel errors, one per spec.md §7 taxonomy entry a mutator can raise.
// internal/session maps these to outbound error events with errors.Is,
// generalizing the teacher's ad-hoc fmt.Errorf strings (sqlstore/store.go's
// VerifyUser returns fmt.Errorf("invalid token")) into values callers can
// switch on without parsing text.
var (
	ErrUsernameTaken    = errors.New("username already taken")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidRecovery  = errors.New("invalid recovery code")
	ErrReceiverDeleted  = errors.New("receiver deleted")
	ErrBlocked          = errors.New("blocked")
	ErrNotSender        = errors.New("not the sender")
	ErrNotMember        = errors.New("not a member")
	ErrNotAdmin         = errors.New("not an admin")
	ErrCreatorImmutable = errors.New("creator cannot be removed or demoted")
	ErrEmptyText        = errors.New("message text is empty")
	ErrUnknownUser      = errors.New("unknown user")
	ErrUnknownGroup     = errors.New("unknown group")
	ErrUnknownMessage   = errors.New("unknown message")
)
