package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// ValidateDraft checks a draft and the calling user. It returns nil or a
// joined error of ValidationErrors.
func ValidateDraft(d model.Draft, userID string) error {
	var errs []error

	if strings.TrimSpace(userID) == "" {
		errs = append(errs, ValidationError{Field: "user", Description: "user id is required"})
	}
	if !d.Amount.IsPositive() {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("amount %s must be positive", d.Amount)})
	}
	if !d.Type.Valid() {
		errs = append(errs, ValidationError{Field: "type", Description: fmt.Sprintf("unknown type %q", d.Type)})
	}
	if d.Date.IsZero() {
		errs = append(errs, ValidationError{Field: "date", Description: "date is required"})
	}
	if strings.TrimSpace(d.AccountID) == "" {
		errs = append(errs, ValidationError{Field: "account", Description: "account id is required"})
	}
	for _, t := range d.Tags {
		if strings.Contains(t, ";") {
			errs = append(errs, ValidationError{Field: "tags", Description: fmt.Sprintf("tag %q contains ';'", t)})
		}
	}
	return errors.Join(errs...)
}
