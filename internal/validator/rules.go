package validator

import (
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/marcusgoll/cfipros-web-sub000/internal/models"
)

func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// startup misconfiguration
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("is-user-role", validateUserRole)
}

func validateUserRole(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // left to 'required'
	}
	return models.UserRole(value).IsValid()
}
