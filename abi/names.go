package abi

import "strings"

// ResultTypeName returns the C name of the tagged result record carrying ok
// on success and err on failure. Empty names stand for void:
// ResultTypeName("double", "") == "diplomat_result_double_void".
func ResultTypeName(ok, err string) string {
	return "diplomat_result_" + cIdent(ok) + "_" + cIdent(err)
}

func cIdent(name string) string {
	if name == "" {
		return "void"
	}
	// "unsigned char" and friends become a single identifier segment.
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}
