// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any failure
// aborts startup, so the binary never runs with malformed configuration.
//
// Field tags cover single values.  Rules that span sections, such as "the
// store action needs a DSN", are registered here as a struct-level rule.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(crossSectionRules, Config{})
	_ = val.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
		return sqlIdent.MatchString(fl.Field().String())
	})
	return val
}

// sqlIdent matches table names safe to splice into DDL and INSERTs.
var sqlIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// crossSectionRules reports dependencies between sections.
func crossSectionRules(sl validator.StructLevel) {
	c := sl.Current().Interface().(Config)

	if c.Delivery.Store.Enabled && c.Database.DSN == "" {
		sl.ReportError(c.Database.DSN, "DSN", "dsn", "required_with_store", "")
	}
	if len(c.Delivery.Email.To) > 0 {
		if c.SMTP.Host == "" {
			sl.ReportError(c.SMTP.Host, "Host", "host", "required_with_email", "")
		}
		if c.SMTP.From == "" {
			sl.ReportError(c.SMTP.From, "From", "from", "required_with_email", "")
		}
	}
}

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
