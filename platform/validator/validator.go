// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"strings"

	"field_inventory_backend/platform/textnorm"

	"github.com/go-playground/validator/v10"
)

// FeatureStatuses lists the accepted values for a feature's estado.
var FeatureStatuses = []string{"PENDIENTE", "ACTIVO", "INACTIVO", "EN_REPARACION", "RETIRADO"}

// FieldKinds lists the accepted attribute kinds.
var FieldKinds = []string{"text", "number", "decimal", "boolean", "date", "select", "multiselect"}

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the inventory tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("estado", validateEstado)
	_ = v.RegisterValidation("fieldkind", validateFieldKind)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// IsFeatureStatus reports whether value folds to one of FeatureStatuses.
func IsFeatureStatus(value string) bool {
	folded := textnorm.Fold(value)
	for _, status := range FeatureStatuses {
		if folded == status {
			return true
		}
	}
	return false
}

// empty passes; pair with "required" when the value is mandatory
func validateEstado(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if strings.TrimSpace(value) == "" {
		return true
	}
	return IsFeatureStatus(value)
}

func validateFieldKind(fl validator.FieldLevel) bool {
	value := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	for _, kind := range FieldKinds {
		if value == kind {
			return true
		}
	}
	return false
}
