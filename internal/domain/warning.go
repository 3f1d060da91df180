package domain

import (
	"errors"
	"fmt"
)

// WarningKind classifies a non-fatal degradation recorded during conversion.
type WarningKind string

const (
	// WarningNoResourcesFound means the document had no classifiable operations.
	WarningNoResourcesFound WarningKind = "NoResourcesFound"
	// WarningUnresolvedReference means a reference pointed at nothing; the
	// field fell back to String.
	WarningUnresolvedReference WarningKind = "UnresolvedReference"
	// WarningRecursionLimitExceeded means a cycle or the depth bound was hit;
	// the field fell back to String at that point.
	WarningRecursionLimitExceeded WarningKind = "RecursionLimitExceeded"
	// WarningUnsupportedNativeType means a native type had no mapping and
	// became String.
	WarningUnsupportedNativeType WarningKind = "UnsupportedNativeType"
	// WarningSupplementaryOperation means an operation lost the primary slot
	// to an earlier one and was kept as an additional operation.
	WarningSupplementaryOperation WarningKind = "SupplementaryOperation"
	// WarningDroppedField means a member normalized to an empty name.
	WarningDroppedField WarningKind = "DroppedField"
)

// Warning is a non-fatal issue attached to a Result.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Resource string      `json:"resource,omitempty"`
	// Field is the dotted path of the field that degraded, if any.
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	loc := w.Resource
	if w.Field != "" {
		if loc != "" {
			loc += "."
		}
		loc += w.Field
	}
	if loc == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s at %s: %s", w.Kind, loc, w.Message)
}

// ErrDocumentMalformed is the only fatal conversion failure: the input
// document violates its structural precondition and no IR is produced.
var ErrDocumentMalformed = errors.New("document malformed")

// ErrInvalidIR is returned when an assembled service fails construction
// validation.
var ErrInvalidIR = errors.New("invalid intermediate representation")

// ConversionError reports a fatal conversion failure with its reason.
type ConversionError struct {
	Format SchemaFormat
	Reason string
	Err    error
}

// Malformed builds a ConversionError for a structurally invalid document.
func Malformed(format SchemaFormat, reason string, cause error) *ConversionError {
	return &ConversionError{Format: format, Reason: reason, Err: cause}
}

func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("%s document malformed: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports ErrDocumentMalformed as the kind of every ConversionError.
func (e *ConversionError) Is(target error) bool {
	return target == ErrDocumentMalformed
}

func (e *ConversionError) Unwrap() error { return e.Err }
