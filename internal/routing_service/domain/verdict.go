package domain

// Verdict is the content processor's decision for one message body.
type Verdict string

const (
	VerdictAccept        Verdict = "accept"
	VerdictRejectEmpty   Verdict = "reject-empty"
	VerdictRejectTooLong Verdict = "reject-too-long"
	VerdictRejectSpam    Verdict = "reject-spam-score"
)

// RejectionReason maps a rejecting verdict onto the routing taxonomy.
// Calling it on VerdictAccept is a programming error and returns the spam
// reason as a conservative fallback.
func (v Verdict) RejectionReason() RejectionReason {
	switch v {
	case VerdictRejectEmpty:
		return ReasonRejectEmpty
	case VerdictRejectTooLong:
		return ReasonRejectTooLong
	default:
		return ReasonRejectedSpam
	}
}
