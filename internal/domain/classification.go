package domain

// ClassificationResult is what the inference collaborator returns for
// one successfully classified asset.
type ClassificationResult struct {
	Description string
	Tags        []string
	Confidence  float64

	// Optional structured attributes for interior imagery.
	RoomType      string
	StyleElements []string
	Colors        []string
	Materials     []string
	Objects       []string
}

// FailureCode categorizes a classification failure.
type FailureCode string

const (
	FailureUnsupportedFormat FailureCode = "UNSUPPORTED_FORMAT"
	FailureAPIError          FailureCode = "API_ERROR"
	FailureInvalidImage      FailureCode = "INVALID_IMAGE"
	FailureQuotaExceeded     FailureCode = "QUOTA_EXCEEDED"
)

// ClassificationError is a typed classification failure.
type ClassificationError struct {
	Code      FailureCode
	Retryable bool
	Message   string
}

func (e *ClassificationError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Message
}

func (e *ClassificationError) Unwrap() error { return ErrInferenceFailed }

// NewClassificationError creates a typed classification failure.
func NewClassificationError(code FailureCode, retryable bool, msg string) *ClassificationError {
	return &ClassificationError{Code: code, Retryable: retryable, Message: msg}
}
