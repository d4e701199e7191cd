package cf

import (
	"fmt"
	"github.com/pkg/errors"
	"reflect"
	"time"
)

// Load populates the exported fields of the struct pointed to by cf from data,
// matching map keys against `cf:"key"` tags (falling back to the field name).
func Load(data map[string]interface{}, cf interface{}) error {
	cfV := reflect.ValueOf(cf)
	if cfV.Kind() == reflect.Ptr {
		cfV = cfV.Elem()
	}
	if cfV.Kind() != reflect.Struct {
		return errors.Errorf("cf type [%s] not struct", cfV.Type())
	}
	for i := 0; i < cfV.NumField(); i++ {
		if cfV.Field(i).CanInterface() {
			key := keyName(cfV.Type().Field(i))
			if v, found := data[key]; found {
				if cfV.Field(i).CanSet() {
					switch cfV.Field(i).Interface().(type) {
					case time.Duration:
						d, err := durationValue(v)
						if err != nil {
							return errors.Wrapf(err, "field '%s'", key)
						}
						cfV.Field(i).SetInt(int64(d))

					case int:
						if j, ok := v.(int); ok {
							cfV.Field(i).SetInt(int64(j))
						} else {
							return errors.Errorf("field '%s' type mismatch, got [%s], expected [%s]", key, reflect.TypeOf(v), cfV.Field(i).Type())
						}

					case float64:
						if f, ok := v.(float64); ok {
							cfV.Field(i).SetFloat(f)
						} else {
							return errors.Errorf("field '%s' type mismatch, got [%s], expected [%s]", key, reflect.TypeOf(v), cfV.Field(i).Type())
						}

					case bool:
						if b, ok := v.(bool); ok {
							cfV.Field(i).SetBool(b)
						} else {
							return errors.Errorf("field '%s' type mismatch, got [%s], expected [%s]", key, reflect.TypeOf(v), cfV.Field(i).Type())
						}

					case string:
						if s, ok := v.(string); ok {
							cfV.Field(i).SetString(s)
						} else {
							return errors.Errorf("field '%s' type mismatch, got [%s], expected [%s]", key, reflect.TypeOf(v), cfV.Field(i).Type())
						}

					case []string:
						ss, err := stringSliceValue(v)
						if err != nil {
							return errors.Wrapf(err, "field '%s'", key)
						}
						cfV.Field(i).Set(reflect.ValueOf(ss))

					default:
						return errors.Errorf("unsupported field type [%s]", cfV.Field(i).Type())
					}
				}
			}
		}
	}
	return nil
}

// durationValue accepts either a time.ParseDuration string ("30s") or a bare
// int, interpreted as milliseconds.
func durationValue(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, errors.Wrap(err, "parse duration")
		}
		return d, nil
	case int:
		return time.Duration(t) * time.Millisecond, nil
	default:
		return 0, errors.Errorf("type mismatch, got [%s], expected duration string or int", reflect.TypeOf(v))
	}
}

func stringSliceValue(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case []string:
		return t, nil
	case []interface{}:
		ss := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Errorf("element type mismatch, got [%s], expected string", reflect.TypeOf(e))
			}
			ss = append(ss, s)
		}
		return ss, nil
	default:
		return nil, errors.Errorf("type mismatch, got [%s], expected string slice", reflect.TypeOf(v))
	}
}

func Dump(label string, cf interface{}) string {
	cfV := reflect.ValueOf(cf)
	if cfV.Kind() == reflect.Ptr {
		cfV = cfV.Elem()
	}
	if cfV.Kind() != reflect.Struct {
		return ""
	}
	out := label + " {\n"
	format := fmt.Sprintf("\t%%-%ds %%v\n", maxKeyLength(cfV))
	for i := 0; i < cfV.NumField(); i++ {
		if cfV.Field(i).CanInterface() {
			key := keyName(cfV.Type().Field(i))
			out += fmt.Sprintf(format, key, cfV.Field(i).Interface())
		}
	}
	out += "}\n"
	return out
}

// MapIToMapS converts the map[interface{}]interface{} trees produced by YAML
// unmarshalling into the map[string]interface{} form Load expects.
func MapIToMapS(in map[interface{}]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range in {
		result[fmt.Sprintf("%v", k)] = cleanUpMapValue(v)
	}
	return result
}

func cleanUpInterfaceArray(in []interface{}) []interface{} {
	result := make([]interface{}, len(in))
	for i, v := range in {
		result[i] = cleanUpMapValue(v)
	}
	return result
}

func cleanUpMapValue(v interface{}) interface{} {
	switch v := v.(type) {
	case []interface{}:
		return cleanUpInterfaceArray(v)

	case map[interface{}]interface{}:
		return MapIToMapS(v)

	default:
		return v
	}
}

func keyName(v reflect.StructField) string {
	key := v.Name
	tag := v.Tag.Get("cf")
	if tag != "" {
		key = tag
	}
	return key
}

func maxKeyLength(cfV reflect.Value) int {
	maxKeyLength := 0
	for i := 0; i < cfV.NumField(); i++ {
		if cfV.Field(i).CanInterface() {
			key := keyName(cfV.Type().Field(i))
			if len(key) > maxKeyLength {
				maxKeyLength = len(key)
			}
		}
	}
	return maxKeyLength
}
