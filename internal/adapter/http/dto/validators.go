package dto

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var operationIDRe = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("operation_id", validateOperationID)
	}
}

// validateOperationID allows letters, digits and "_.:-", which covers UUIDs
// and ULIDs.
func validateOperationID(fl validator.FieldLevel) bool {
	return operationIDRe.MatchString(fl.Field().String())
}
