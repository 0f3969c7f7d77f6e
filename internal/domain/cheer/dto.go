package cheer

// RecognizeRequest is the body of POST /cheers.
type RecognizeRequest struct {
	ToAccount string `json:"to_account" validate:"required,account"`
	Points    int64  `json:"points" validate:"required,gt=0"`
	Message   string `json:"message" validate:"max=1000"`
}

// CommentRequest is the body of comment create and edit.
type CommentRequest struct {
	Text string `json:"text" validate:"required,notblank,max=1000"`
}

// LikeResponse reports the caller's like state after a toggle.
type LikeResponse struct {
	LikeResult
	Action string `json:"action"`
}

func NewLikeResponse(res *LikeResult) LikeResponse {
	action := "unliked"
	if res.Liked {
		action = "liked"
	}
	return LikeResponse{LikeResult: *res, Action: action}
}
