package invoice

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateCreate checks a create request before it leaves the process.
func ValidateCreate(req CreateRequest) error {
	if err := toValidationError(validate.Struct(req)); err != nil {
		return err
	}
	if !req.DueDate.IsZero() && req.DueDate.Before(req.IssueDate) {
		return &ValidationError{Field: "DueDate", Reason: "must not be before IssueDate"}
	}
	return nil
}

func ValidateUpdate(req UpdateRequest) error {
	if req.Empty() {
		return &ValidationError{Reason: "update request has no fields"}
	}
	if req.Status != nil && !req.Status.Valid() {
		return &ValidationError{Field: "Status", Reason: fmt.Sprintf("unknown status %q", *req.Status)}
	}
	return nil
}

func ValidatePayment(p Payment) error {
	return toValidationError(validate.Struct(p))
}

func ValidateTemplate(req TemplateRequest) error {
	return toValidationError(validate.Struct(req))
}

// ValidateID rejects empty identifiers for operations addressed by id.
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Reason: err.Error(), Err: err}
	}
	fe := verrs[0]
	field := fe.Namespace()
	// pomiń nazwę struktury głównej
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	reason := "failed on " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &ValidationError{Field: field, Reason: reason, Err: err}
}
