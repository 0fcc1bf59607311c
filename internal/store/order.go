package store

import "fmt"

// SQL fragments that order decimal-string ids numerically. They mirror
// ids.Compare: length first, then byte-wise.

func newestFirst(col string) string {
	return fmt.Sprintf("length(%[1]s) DESC, %[1]s DESC", col)
}

func oldestFirst(col string) string {
	return fmt.Sprintf("length(%[1]s) ASC, %[1]s ASC", col)
}

// idAfter is "col > id".
func idAfter(col, id string) (string, []any) {
	return fmt.Sprintf("(length(%[1]s) > ? OR (length(%[1]s) = ? AND %[1]s > ?))", col),
		[]any{len(id), len(id), id}
}

// idAtOrAfter is "col >= id".
func idAtOrAfter(col, id string) (string, []any) {
	return fmt.Sprintf("(length(%[1]s) > ? OR (length(%[1]s) = ? AND %[1]s >= ?))", col),
		[]any{len(id), len(id), id}
}

// idBefore is "col < id".
func idBefore(col, id string) (string, []any) {
	return fmt.Sprintf("(length(%[1]s) < ? OR (length(%[1]s) = ? AND %[1]s < ?))", col),
		[]any{len(id), len(id), id}
}

// idAtOrBefore is "col <= id".
func idAtOrBefore(col, id string) (string, []any) {
	return fmt.Sprintf("(length(%[1]s) < ? OR (length(%[1]s) = ? AND %[1]s <= ?))", col),
		[]any{len(id), len(id), id}
}
