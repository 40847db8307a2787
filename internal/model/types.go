package model

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// VoidType is the return type recorded for functions without a result.
const VoidType = "void"

// IsPointer reports whether a dump type expression is a pointer.
func IsPointer(cType string) bool {
	return strings.HasPrefix(cType, "*")
}

// IsDoublePointer reports whether a dump type expression is a pointer-to-pointer.
func IsDoublePointer(cType string) bool {
	return strings.HasPrefix(cType, "**")
}

// Pointee strips every level of indirection: "**aeron_t" -> "aeron_t".
func Pointee(cType string) string {
	return strings.TrimLeft(cType, "*")
}

// ClassName derives the Go type name of a C type: the record suffix is
// dropped, "on" segments are skipped and the rest is PascalCased.
// "aeron_on_new_publication_t" -> "AeronNewPublication".
func ClassName(typeName, recordSuffix string) string {
	base := strings.TrimSuffix(typeName, recordSuffix)
	words := strings.Split(base, "_")
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if w == "on" || w == "" {
			continue
		}
		kept = append(kept, w)
	}
	return strcase.ToCamel(strings.Join(kept, "_"))
}

// GoName PascalCases a snake_case C identifier.
func GoName(snake string) string {
	return strcase.ToCamel(snake)
}

// GoParamName lowerCamelCases a snake_case C identifier.
func GoParamName(snake string) string {
	return strcase.ToLowerCamel(snake)
}
