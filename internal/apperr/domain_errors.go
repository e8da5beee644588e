package apperr

var (
	ErrUnauthenticated = Unauthorized("could not validate credentials")

	// Chat
	ErrSelfConversation     = InvalidArg("cannot chat with yourself")
	ErrEmptyMessage         = InvalidArg("message content cannot be empty")
	ErrUserNotFound         = NotFound("user not found")
	ErrConversationNotFound = NotFound("chat not found")
	ErrMessageNotFound      = NotFound("message not found")
	ErrNotParticipant       = Forbidden("not a participant of this chat")
	ErrForbidden            = Forbidden("not authorized to perform this action")

	// Connection requests
	ErrSelfRequest           = InvalidArg("cannot send connection request to yourself")
	ErrAlreadyConnected      = AlreadyExists("you are already connected")
	ErrRequestAlreadyPending = AlreadyExists("connection request already pending")
	ErrRequestNotFound       = NotFound("connection request not found")
	ErrInvalidState          = FailedPrecondition("connection request is not in a valid state for this action")
)
