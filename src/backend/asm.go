package backend

import (
	"errors"

	"decafc/src/ir/tac"
	"decafc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// Emit writes the listing of code to the output writer. Labels are written flush left
// and instructions indented. The writer is flushed at the end of every class so that
// output of large units is streamed.
func Emit(code *tac.Code) error {
	if code == nil {
		return errors.New("instruction buffer is <nil>")
	}
	wr := util.NewWriter()
	defer wr.Close()

	for i1 := 0; i1 < code.Len(); i1++ {
		e1 := code.At(i1)
		if e1.Kind() != tac.LabelKind {
			wr.Ins(e1.String())
			continue
		}
		wr.Label(e1.String())
		if typ, frame, ok := util.SplitLabel(e1.Op()); ok && typ == util.LabelEnd && frame[0] == 'C' {
			wr.Flush()
		}
	}
	return nil
}
