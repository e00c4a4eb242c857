// Package env writes config structs back out as .env files that the loader in
// cmd reads again.
package env

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var durationType = reflect.TypeOf(time.Duration(0))

// MarshalAll renders one block per config struct, blocks separated by a blank
// line. Structs with nothing set produce no block.
func MarshalAll(cs ...any) (string, error) {
	blocks := make([]string, 0, len(cs))
	for _, c := range cs {
		out, err := MarshalEnv(c)
		if err != nil {
			return "", err
		}
		if out != "" {
			blocks = append(blocks, strings.TrimSuffix(out, "\n"))
		}
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return strings.Join(blocks, "\n\n") + "\n", nil
}

// MarshalEnv renders the non-zero `env` tagged fields of the struct c points to.
// Keys come out sorted.
func MarshalEnv(c any) (string, error) {
	values, err := Values(c)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}

	out, err := godotenv.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("env: %w", err)
	}
	return out + "\n", nil
}

// Values collects the non-zero `env` tagged fields of the struct c points to.
func Values(c any) (map[string]string, error) {
	rv := reflect.ValueOf(c)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("env: expected pointer to struct, got %T", c)
	}

	v := rv.Elem()
	values := make(map[string]string)
	for _, field := range reflect.VisibleFields(v.Type()) {
		if !field.IsExported() || len(field.Index) > 1 {
			continue
		}
		key, _, _ := strings.Cut(field.Tag.Get("env"), ",")
		if key == "" {
			continue
		}

		fv := v.FieldByIndex(field.Index)
		if fv.IsZero() || (fv.Kind() == reflect.Slice && fv.Len() == 0) {
			continue
		}
		values[key] = format(fv)
	}
	return values, nil
}

func format(v reflect.Value) string {
	if v.Type() == durationType {
		return time.Duration(v.Int()).String()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, v.Type().Bits())
	case reflect.Slice:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = format(v.Index(i))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v.Interface())
}
