// Cartotile - Map Tile and Metadata Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartotile

// Package validation wraps go-playground/validator v10 with the custom
// rules used by configuration.
//
// Field names in messages are taken from the koanf tag, so an error reads
// the way the YAML file is written:
//
//	type SourceConfig struct {
//	    Kind   string    `koanf:"kind" validate:"required,oneof=directory archive"`
//	    Format string    `koanf:"format" validate:"omitempty,tileformat"`
//	    Bounds []float64 `koanf:"bounds" validate:"omitempty,lonlatbounds"`
//	}
//
// Custom tags:
//   - sourceid: a usable source ID (see source.ValidateID)
//   - tileformat: a known tile format or extension
//   - tileencoding: a known tile encoding
//   - lonlatbounds: [minlon, minlat, maxlon, maxlat] within WGS84 limits
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/cartotile/internal/source"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Namespace string
	Tag       string
	Param     string
	Message   string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors collects every FieldError of one ValidateStruct call.
type Errors []FieldError

func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator, registering custom rules on
// first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})

		mustRegister(v, "sourceid", func(fl validator.FieldLevel) bool {
			return source.ValidateID(fl.Field().String()) == nil
		})
		mustRegister(v, "tileformat", func(fl validator.FieldLevel) bool {
			_, err := source.ParseFormat(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "tileencoding", func(fl validator.FieldLevel) bool {
			_, err := source.ParseEncoding(fl.Field().String())
			return err == nil
		})
		mustRegister(v, "lonlatbounds", validLonLatBounds)

		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func validLonLatBounds(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.Slice || f.Len() != 4 {
		return false
	}
	b := make([]float64, 4)
	for i := range b {
		b[i] = f.Index(i).Float()
	}
	return b[0] >= -180 && b[2] <= 180 && b[0] <= b[2] &&
		b[1] >= -90 && b[3] <= 90 && b[1] <= b[3]
}

// ValidateStruct validates s and returns nil or an Errors value.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(Errors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Namespace: fe.Namespace(),
			Tag:       fe.Tag(),
			Param:     fe.Param(),
			Message:   translateError(fe),
		}
	}
	return out
}

var errorMessageTemplates = map[string]string{
	"required":     "%s is required",
	"url":          "%s must be an absolute URL",
	"sourceid":     "%s is not a usable source id (reserved keyword, dot-number suffix, or illegal character)",
	"tileformat":   "%s must be one of pbf, mvt, png, jpg, jpeg, webp, json",
	"tileencoding": "%s must be gzip or identity",
	"lonlatbounds": "%s must be [minlon, minlat, maxlon, maxlat] within -180..180 and -90..90",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
	"len":   "%s must have exactly %s items",
}

func translateError(fe validator.FieldError) string {
	field := fe.Field()
	if template, ok := errorMessageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(template, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
