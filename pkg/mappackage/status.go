package mappackage

import "github.com/mapaction/mapimport/pkg/errors"

// Status is the lifecycle status declared by a map package. It decides
// whether the reconciler creates, updates or rejects the catalog record.
type Status string

// Lifecycle statuses.
const (
	StatusNew        Status = "New"
	StatusUpdate     Status = "Update"
	StatusCorrection Status = "Correction"
)

// ParseStatus validates a status value read from the metadata document.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNew, StatusUpdate, StatusCorrection:
		return Status(s), nil
	default:
		return "", &errors.InvalidStatusError{Value: s}
	}
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}
