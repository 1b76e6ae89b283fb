package campaign

import "errors"

// Kind is the machine-readable class of a campaign error.
type Kind string

const (
	KindUnauthorized                Kind = "UNAUTHORIZED"
	KindInsufficientFee             Kind = "INSUFFICIENT_FEE"
	KindNoVerifiersAvailable        Kind = "NO_VERIFIERS_AVAILABLE"
	KindNotAssignedVerifier         Kind = "NOT_ASSIGNED_VERIFIER"
	KindThresholdNotMet             Kind = "THRESHOLD_NOT_MET"
	KindInsufficientContractBalance Kind = "INSUFFICIENT_CONTRACT_BALANCE"
	KindAlreadySubmitted            Kind = "ALREADY_SUBMITTED"
	KindAlreadyVerified             Kind = "ALREADY_VERIFIED"
	KindCampaignClosed              Kind = "CAMPAIGN_CLOSED"
	KindCampaignOpen                Kind = "CAMPAIGN_OPEN"
	KindAmountOverflow              Kind = "AMOUNT_OVERFLOW"
	KindInvalidArgument             Kind = "INVALID_ARGUMENT"
)

// Error is returned by every failed campaign operation. A failed operation
// leaves the campaign untouched.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches errors by kind, so errors.Is(err, ErrInsufficientFee) holds for
// any insufficient fee error regardless of its reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrUnauthorized                = &Error{Kind: KindUnauthorized, Reason: "Caller is not the owner"}
	ErrInsufficientFee             = &Error{Kind: KindInsufficientFee, Reason: "Insufficient fee"}
	ErrNoVerifiersAvailable        = &Error{Kind: KindNoVerifiersAvailable, Reason: "No verifiers available"}
	ErrNotAssignedVerifier         = &Error{Kind: KindNotAssignedVerifier, Reason: "Not assigned verifier"}
	ErrThresholdNotMet             = &Error{Kind: KindThresholdNotMet, Reason: "Threshold not met"}
	ErrInsufficientContractBalance = &Error{Kind: KindInsufficientContractBalance, Reason: "Insufficient contract balance"}
	ErrAlreadySubmitted            = &Error{Kind: KindAlreadySubmitted, Reason: "Data already submitted"}
	ErrAlreadyVerified             = &Error{Kind: KindAlreadyVerified, Reason: "Data already verified"}
	ErrCampaignClosed              = &Error{Kind: KindCampaignClosed, Reason: "Campaign is closed"}
	ErrCampaignOpen                = &Error{Kind: KindCampaignOpen, Reason: "Campaign is still open"}
	ErrAmountOverflow              = &Error{Kind: KindAmountOverflow, Reason: "Amount overflow"}
	ErrInvalidArgument             = &Error{Kind: KindInvalidArgument, Reason: "Invalid argument"}
)

func invalidArgument(reason string) *Error {
	return &Error{Kind: KindInvalidArgument, Reason: reason}
}

// KindOf returns the kind of a campaign error or an empty kind for any other
// error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
