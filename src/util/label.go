// label.go provides the naming scheme for scope boundary labels and frames.
// Every scope owns a START_/END_ label pair built from the first letter of its
// kind and its identifier, e.g. START_M3 and END_M3 for method scope 3.

package util

import (
	"fmt"
	"strings"
)

// ---------------------
// ----- Constants -----
// ---------------------

// Labels for scope boundaries.
const (
	LabelStart = iota
	LabelEnd
)

// -------------------
// ----- globals -----
// -------------------

// labelPrefixes stores the string literal prefixes for labels of types.
var labelPrefixes = [LabelEnd + 1]string{
	"START_",
	"END_",
}

// ---------------------
// ----- functions -----
// ---------------------

// FrameName returns the frame name of the scope with the given kind name and id:
// the capitalised first letter of kind followed by id.
func FrameName(kind string, id int) string {
	if len(kind) == 0 {
		return fmt.Sprintf("_%d", id)
	}
	return fmt.Sprintf("%s%d", strings.ToUpper(kind[:1]), id)
}

// NewLabel returns the boundary label of type typ for frame. An unknown type
// yields the bare frame name.
func NewLabel(typ int, frame string) string {
	if typ >= 0 && typ < len(labelPrefixes) {
		return labelPrefixes[typ] + frame
	}
	return frame
}

// SplitLabel splits a boundary label into its type and frame name. ok is false
// if label is not a boundary label.
func SplitLabel(label string) (typ int, frame string, ok bool) {
	for i1, e1 := range labelPrefixes {
		if strings.HasPrefix(label, e1) && len(label) > len(e1) {
			return i1, label[len(e1):], true
		}
	}
	return -1, "", false
}
