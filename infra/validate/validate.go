package validate

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mstgnz/idpay/infra/config"
)

// CustomValidate registers the custom rules on the application validator
func CustomValidate() {
	Register(config.App().Validator)
}

// New returns a validator with the custom rules registered
func New() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

// Register names fields after their json tags and adds the httpurl rule
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("httpurl", isHTTPURL)
}

// isHTTPURL accepts absolute http and https URLs only. Redirect targets end up in
// a script, so other schemes such as javascript: are refused.
func isHTTPURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
