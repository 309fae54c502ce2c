// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"chainlog/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("audit_category", validateCategory)
		_ = v.RegisterValidation("audit_action", validateAction)
		_ = v.RegisterValidation("audit_severity", validateSeverity)
		_ = v.RegisterValidation("audit_channel", validateChannel)
		_ = v.RegisterValidation("export_format", validateExportFormat)
	}
}

func validateCategory(fl validator.FieldLevel) bool {
	return models.ValidCategory(models.Category(fl.Field().String()))
}

func validateAction(fl validator.FieldLevel) bool {
	return models.ValidAction(fl.Field().String())
}

func validateSeverity(fl validator.FieldLevel) bool {
	return models.ValidSeverity(models.Severity(fl.Field().String()))
}

func validateChannel(fl validator.FieldLevel) bool {
	return models.ValidChannel(models.Channel(fl.Field().String()))
}

func validateExportFormat(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "json", "csv":
		return true
	}
	return false
}
