package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUsernameRequired   = errors.New("username is required")
	ErrUserNotFound       = errors.New("user not found")

	ErrBookNotFound      = errors.New("book not found")
	ErrInvalidCondition  = errors.New("invalid book condition")
	ErrNotBookOwner      = errors.New("only the lister can modify this book")
	ErrBookAlreadySold   = errors.New("book is already sold")
	ErrInvalidBookInput  = errors.New("title, author, genre, condition and price are required")
	ErrInvalidBookPrice  = errors.New("price must be positive")
	ErrCoverImageTooBig  = errors.New("cover image exceeds size limit")
	ErrCoverImageInvalid = errors.New("cover image must be a JPEG, PNG or WebP file")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a participant of this conversation")
	ErrOwnListingChat       = errors.New("cannot start a conversation about your own listing")
	ErrEmptyMessage         = errors.New("message text is required")
	ErrMessageTooLong       = errors.New("message text exceeds length limit")

	ErrOrderNotFound     = errors.New("order not found")
	ErrOwnBookOrder      = errors.New("cannot order your own listing")
	ErrBookUnavailable   = errors.New("book has already been ordered")
	ErrInvalidTransition = errors.New("invalid delivery status transition")
	ErrWishlistDuplicate = errors.New("book is already on the wishlist")
)
