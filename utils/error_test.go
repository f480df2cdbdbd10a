package utils_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tichlabs/tichpay_backend/utils"
)

func TestErrorTaxonomyHelpers(t *testing.T) {
	validation := utils.NewValidationError("amount must be %s", "positive")
	if validation.Error() != "amount must be positive" {
		t.Fatalf("validation message = %q", validation.Error())
	}
	if !utils.IsValidation(validation) {
		t.Fatal("IsValidation failed on ValidationError")
	}
	if utils.IsValidation(errors.New("other")) {
		t.Fatal("IsValidation matched a plain error")
	}

	notFound := &utils.NotFoundError{Entity: "invoice", Id: "abc"}
	if !utils.IsNotFound(notFound) {
		t.Fatal("IsNotFound failed on NotFoundError")
	}
	if !errors.Is(notFound, utils.ErrorRecordNotFound) {
		t.Fatal("NotFoundError should match ErrorRecordNotFound sentinel")
	}

	cause := errors.New("duplicate key")
	conflict := &utils.ConflictError{Constraint: "invoice_number", Err: cause}
	if !utils.IsConflict(conflict) {
		t.Fatal("IsConflict failed on ConflictError")
	}
	if !errors.Is(conflict, cause) {
		t.Fatal("ConflictError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("handler: %w", notFound)
	if !utils.IsNotFound(wrapped) {
		t.Fatal("IsNotFound failed through wrapping")
	}
}

func TestUpstreamAndSignatureErrors(t *testing.T) {
	cause := errors.New("connection refused")
	upstream := &utils.UpstreamError{Provider: "stripe", Err: cause}
	if !errors.Is(upstream, cause) {
		t.Fatal("UpstreamError should unwrap")
	}

	sig := &utils.InvalidSignatureError{Err: errors.New("no v1 signature")}
	var target *utils.InvalidSignatureError
	if !errors.As(fmt.Errorf("webhook: %w", sig), &target) {
		t.Fatal("InvalidSignatureError not found through wrapping")
	}

	exhausted := &utils.NumberingExhaustedError{Attempts: 5}
	if exhausted.Error() != "invoice numbering exhausted after 5 attempts" {
		t.Fatalf("message = %q", exhausted.Error())
	}
}
