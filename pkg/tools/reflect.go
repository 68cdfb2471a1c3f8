package tools

import (
	"reflect"
	"regexp"
	"strconv"

	"github.com/modern-go/reflect2"
)

// DoTagFunc applies each fn to every field of the struct v points to (or
// implements), passing along its reflect.StructField (for tag lookups) and
// its addressable reflect.Value (for in-place mutation). v must be a
// pointer or interface to a struct; anything else is a no-op.
func DoTagFunc(v interface{}, fn []func(reflect.StructField, reflect.Value)) {
	if reflect2.IsNil(v) {
		return
	}

	vType := reflect2.TypeOf(v)
	vType1 := vType.Type1()

	switch vType1.Kind() {
	case reflect.Interface, reflect.Ptr:
	default:
		return
	}

	indirect := reflect.Indirect(reflect.ValueOf(v))
	for i := 0; i < indirect.NumField(); i++ {
		field := indirect.Field(i)
		fieldStruct := vType1.Elem().Field(i)

		for _, f := range fn {
			f(fieldStruct, field)
		}
	}
}

// SetDefaultValueIfNil fills a zero-valued field from its `default:"..."`
// struct tag. Struct and pointer fields recurse regardless of their own
// tag, since the interesting defaults usually live on their children.
func SetDefaultValueIfNil(structField reflect.StructField, vValue reflect.Value) {
	structTag := structField.Tag
	if containTag(structTag, "default") || vValue.Kind() == reflect.Struct || vValue.Kind() == reflect.Ptr {
		switch vValue.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			if vValue.Int() == 0 {
				v, _ := strconv.Atoi(structTag.Get("default"))
				vValue.SetInt(int64(v))
			}
		case reflect.String:
			if vValue.String() == "" {
				vValue.SetString(structTag.Get("default"))
			}
		case reflect.Float64:
			if vValue.Float() == 0 {
				v, _ := strconv.ParseFloat(structTag.Get("default"), 64)
				vValue.SetFloat(v)
			}
		case reflect.Struct:
			t := structField.Type
			for i := 0; i < t.NumField(); i++ {
				fieldStruct := t.Field(i)
				SetDefaultValueIfNil(fieldStruct, vValue.Field(i))
			}
		case reflect.Ptr:
			pValue := reflect.New(structField.Type.Elem()).Elem()
			for i := 0; i < pValue.NumField(); i++ {
				field := vValue.Elem().Field(i)
				fieldStruct := pValue.Type().Field(i)
				SetDefaultValueIfNil(fieldStruct, field)
			}
		default:
			// Bool and other kinds have no meaningful "zero means unset"
			// signal, so a default tag on them is ignored rather than
			// silently misapplied.
		}
	}
}

func containTag(tag reflect.StructTag, tagName string) bool {
	return regexp.MustCompile(`\b` + tagName + `\b`).Match([]byte(tag))
}
