package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when an action is not valid from the
	// record's current approval status.
	ErrInvalidTransition = errors.New("action not allowed in the current approval status")
	// ErrEmptyContent is returned when a comment, response or revision reason is blank.
	ErrEmptyContent = errors.New("content is required")
	// ErrCommentNotFound is returned when a comment id is not in the ledger.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrNotCommentAuthor is returned when someone other than the author edits or deletes a comment.
	ErrNotCommentAuthor = errors.New("only the comment author may change it")
)
