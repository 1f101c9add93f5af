package model

// JudgeEvent announces a resolved judging pass to subscribers.
type JudgeEvent struct {
	ExpID          int64  `json:"expid"`
	SubID          int64  `json:"subid"`
	UID            int64  `json:"uid"`
	Title          string `json:"title"`
	CompileSuccess bool   `json:"compileSuccess"`
	Time           int64  `json:"time"`
	Memory         int64  `json:"memory"`
	Accepted       bool   `json:"accepted"`
	AcceptedCount  int64  `json:"acceptedCount"`
}

// CongratsEvent is broadcast when a user first passes all checkpoints of an
// experiment. Unlike JudgeEvent it carries the display name, since every
// subscriber renders it, not just the submitter.
type CongratsEvent struct {
	ExpID    int64  `json:"expid"`
	SubID    int64  `json:"subid"`
	UID      int64  `json:"uid"`
	Title    string `json:"title"`
	Username string `json:"username"`
	Time     int64  `json:"time"`
	Memory   int64  `json:"memory"`
}
