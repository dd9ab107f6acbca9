package images

// Validation failure reasons returned to clients.
const (
	ReasonNoFilePart      = "No file part"
	ReasonNoFileSelected  = "No file selected"
	ReasonInvalidFileType = "Invalid file type; only images allowed"
)

// ValidationError is a rejected upload. It maps to HTTP 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StorageError wraps any object store failure. Its message is the underlying
// error's, unchanged. It maps to HTTP 500.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

