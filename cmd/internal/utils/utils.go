package utils

import (
	"reflect"
	"strings"
	"time"
)

// FormatEpoch renders stored epoch milliseconds as RFC 3339 in UTC.
func FormatEpoch(millis int64) string {
	return time.UnixMilli(millis).UTC().Format(time.RFC3339)
}

// NowUTC is the current time in epoch milliseconds, the unit every stored
// timestamp uses.
func NowUTC() int64 {
	return time.Now().UTC().UnixMilli()
}

// Sanitize trims the strings of a request struct in place: string fields,
// *string fields, []string elements and nested structs. Fields tagged
// `sanitize:"-"` are left as sent.
func Sanitize(o any) {
	v := reflect.ValueOf(o)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		panic("sanitize: expected pointer to struct")
	}
	sanitizeStruct(v.Elem())
}

func sanitizeStruct(v reflect.Value) {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() || t.Field(i).Tag.Get("sanitize") == "-" {
			continue
		}
		sanitizeValue(field)
	}
}

func sanitizeValue(field reflect.Value) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(strings.TrimSpace(field.String()))
	case reflect.Pointer:
		if !field.IsNil() {
			sanitizeValue(field.Elem())
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			for j := range field.Len() {
				field.Index(j).SetString(strings.TrimSpace(field.Index(j).String()))
			}
		}
	case reflect.Struct:
		sanitizeStruct(field)
	}
}
