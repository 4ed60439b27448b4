package env

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Validator is implemented by config structs that need validation.
type Validator interface {
	Validate() error
}

// ErrInvalidValue is returned when an environment variable value cannot be parsed.
type ErrInvalidValue struct {
	Field  string
	EnvVar string
	Value  string
	Err    error
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value for %s=%q (field: %s): %v", e.EnvVar, e.Value, e.Field, e.Err)
}

func (e ErrInvalidValue) Unwrap() error {
	return e.Err
}

// ErrNotStructPointer is returned when Load is called with a non-pointer or non-struct argument.
type ErrNotStructPointer struct {
	Type string
}

func (e ErrNotStructPointer) Error() string {
	return fmt.Sprintf("env.Load: argument must be a pointer to struct, got %s", e.Type)
}

// ErrUnsupportedType is returned when a field has an unsupported type.
type ErrUnsupportedType struct {
	Kind string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported type: %s", e.Kind)
}

// Load loads configuration from environment variables into the provided struct pointer.
// After parsing, it automatically validates any nested struct that implements Validator.
//
// Supported struct tags:
//   - env:"VAR_NAME" - maps field to environment variable VAR_NAME
//
// Supported field types:
//   - string
//   - int, int8, int16, int32, int64
//   - bool
//   - time.Duration (parses Go duration strings like "5s", "1m30s")
//   - []string (comma-separated; items are trimmed and empty items dropped)
//
// Nested structs are loaded recursively. If a nested struct implements Validator,
// its Validate() method is called automatically after loading.
//
// Zero values are used for unset fields. Defaults should be handled by the
// consuming code (application/infrastructure layer).
func Load(v any) error {
	ptrVal := reflect.ValueOf(v)
	if ptrVal.Kind() != reflect.Pointer || ptrVal.Elem().Kind() != reflect.Struct {
		return ErrNotStructPointer{Type: fmt.Sprintf("%T", v)}
	}

	if err := parseStruct(ptrVal.Elem()); err != nil {
		return err
	}

	// Validate the root struct if it implements Validator
	if validator, ok := v.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return err
		}
	}

	return nil
}

var timeType = reflect.TypeFor[time.Time]()

func parseStruct(val reflect.Value) error {
	typ := val.Type()

	for i := range val.NumField() {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != timeType {
			if err := loadNested(field); err != nil {
				return err
			}
			continue
		}

		if err := loadField(field, typ.Field(i)); err != nil {
			return err
		}
	}

	return nil
}

// loadNested parses a nested section, then validates it if it implements Validator.
func loadNested(field reflect.Value) error {
	if err := parseStruct(field); err != nil {
		return err
	}
	if !field.CanAddr() {
		return nil
	}
	if validator, ok := field.Addr().Interface().(Validator); ok {
		return validator.Validate()
	}
	return nil
}

// loadField sets a tagged field from its environment variable. Unset
// variables leave the zero value in place.
func loadField(field reflect.Value, sf reflect.StructField) error {
	key := sf.Tag.Get("env")
	if key == "" {
		return nil
	}

	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}

	if err := setField(field, raw); err != nil {
		return ErrInvalidValue{
			Field:  sf.Name,
			EnvVar: key,
			Value:  raw,
			Err:    err,
		}
	}
	return nil
}

var durationType = reflect.TypeFor[time.Duration]()

// parseFunc converts a raw value into a value assignable to a field.
type parseFunc func(raw string, typ reflect.Type) (reflect.Value, error)

// parsers maps field kinds to their parser. time.Duration and []string are
// matched before the kind lookup.
var parsers = map[reflect.Kind]parseFunc{
	reflect.String: func(raw string, typ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(raw).Convert(typ), nil
	},
	reflect.Bool: func(raw string, typ reflect.Type) (reflect.Value, error) {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b).Convert(typ), nil
	},
	reflect.Int:   parseInt,
	reflect.Int8:  parseInt,
	reflect.Int16: parseInt,
	reflect.Int32: parseInt,
	reflect.Int64: parseInt,
}

func parseInt(raw string, typ reflect.Type) (reflect.Value, error) {
	i, err := strconv.ParseInt(raw, 10, typ.Bits())
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(i).Convert(typ), nil
}

func parseDuration(raw string, typ reflect.Type) (reflect.Value, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(d).Convert(typ), nil
}

// parseList splits a comma-separated list, trimming items and dropping empty ones.
func parseList(raw string, typ reflect.Type) (reflect.Value, error) {
	items := []string{}
	for item := range strings.SplitSeq(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return reflect.ValueOf(items).Convert(typ), nil
}

func parserFor(typ reflect.Type) (parseFunc, error) {
	switch {
	case typ == durationType:
		return parseDuration, nil
	case typ.Kind() == reflect.Slice:
		if typ.Elem().Kind() != reflect.String {
			return nil, ErrUnsupportedType{Kind: "[]" + typ.Elem().Kind().String()}
		}
		return parseList, nil
	}
	parse, ok := parsers[typ.Kind()]
	if !ok {
		return nil, ErrUnsupportedType{Kind: typ.Kind().String()}
	}
	return parse, nil
}

func setField(field reflect.Value, value string) error {
	parse, err := parserFor(field.Type())
	if err != nil {
		return err
	}
	v, err := parse(value, field.Type())
	if err != nil {
		return err
	}
	field.Set(v)
	return nil
}
