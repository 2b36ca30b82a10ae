package license

// PipelineError is a coded error surfaced by the license pipeline.
// The code is stable API surface; the message is for humans.
type PipelineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e PipelineError) Error() string {
	return e.Message
}

// Validation errors
var (
	ErrInvalidPlan      = PipelineError{Code: "INVALID_PLAN", Message: "unknown plan, expected starter, pro or enterprise"}
	ErrMissingReference = PipelineError{Code: "MISSING_REFERENCE", Message: "payment reference is required"}
)

// Conflict errors: the operation's precondition does not hold.
var (
	ErrDuplicateReference = PipelineError{Code: "DUPLICATE_REFERENCE", Message: "payment reference already used"}
	ErrAlreadyVerified    = PipelineError{Code: "ALREADY_VERIFIED", Message: "license payment is already verified"}
	ErrNotYetVerified     = PipelineError{Code: "NOT_YET_VERIFIED", Message: "license payment has not been verified"}
	ErrAlreadySent        = PipelineError{Code: "ALREADY_SENT", Message: "activation email has already been sent"}
	ErrAlreadyActive      = PipelineError{Code: "ALREADY_ACTIVE", Message: "license is already active"}
	ErrLicenseRejected    = PipelineError{Code: "LICENSE_REJECTED", Message: "license has been rejected"}
)

// Lookup and delivery errors
var (
	ErrLicenseNotFound = PipelineError{Code: "LICENSE_NOT_FOUND", Message: "license not found"}
	ErrOwnerNotFound   = PipelineError{Code: "OWNER_NOT_FOUND", Message: "license owner not found"}
	ErrDeliveryFailed  = PipelineError{Code: "EMAIL_DELIVERY_FAILED", Message: "failed to deliver activation email"}
)

// IsConflict reports whether err is a precondition conflict that maps
// to HTTP 409.
func IsConflict(err error) bool {
	pe, ok := err.(PipelineError)
	if !ok {
		return false
	}
	switch pe.Code {
	case ErrDuplicateReference.Code, ErrAlreadyVerified.Code, ErrNotYetVerified.Code,
		ErrAlreadySent.Code, ErrAlreadyActive.Code, ErrLicenseRejected.Code:
		return true
	}
	return false
}
