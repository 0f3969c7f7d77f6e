package cheer

import "errors"

var (
	ErrSelfRecognition  = errors.New("cannot recognize yourself")
	ErrAmountAboveLimit = errors.New("amount exceeds the per-cheer limit")
	ErrMessageTooLong   = errors.New("message is too long")
	ErrCheerNotFound    = errors.New("cheer not found")
	ErrCommentNotFound  = errors.New("comment not found")
	ErrEmptyComment     = errors.New("comment text is required")
	ErrCommentTooLong   = errors.New("comment is too long")
	ErrForbidden        = errors.New("not allowed to modify this comment")
)
