package backend

import (
	"fmt"

	"decafc/src/ir"
	"decafc/src/ir/tac"
	"decafc/src/util"

	"github.com/jedib0t/go-pretty/v6/table"
)

// ScopeStats summarises the code generated for one scope.
type ScopeStats struct {
	Scope        *ir.Scope
	FrameSize    int // Bytes needed by the scope's frame.
	Instructions int // Instructions between the scope's labels, excluding nested scopes and labels.
	Calls        int // Jumps to method start labels.
}

// Stats attributes every instruction of code to the innermost scope whose labels
// enclose it. Scopes are returned in identifier order.
func Stats(code *tac.Code, t *ir.Table) ([]ScopeStats, error) {
	scopes := t.Scopes()
	res := make([]ScopeStats, len(scopes))
	byFrame := make(map[string]*ScopeStats, len(scopes))
	for i1, e1 := range scopes {
		size, err := ir.FrameSize(t, e1.ID)
		if err != nil {
			return nil, err
		}
		res[i1] = ScopeStats{Scope: e1, FrameSize: size}
		byFrame[e1.Label()] = &res[i1]
	}

	open := util.Stack[string]{}
	for i1 := 0; i1 < code.Len(); i1++ {
		e1 := code.At(i1)
		if e1.Kind() == tac.LabelKind {
			typ, frame, ok := util.SplitLabel(e1.Op())
			if !ok {
				continue
			}
			switch typ {
			case util.LabelStart:
				open.Push(frame)
			case util.LabelEnd:
				if top, ok := open.Peek(); ok && top == frame {
					open.Pop()
				} else if ok {
					return nil, fmt.Errorf("instruction %d: %s closes %s", i1, e1.Op(), top)
				}
			}
			continue
		}
		frame, ok := open.Peek()
		if !ok {
			return nil, fmt.Errorf("instruction %d: %q outside any scope", i1, e1.String())
		}
		s, ok := byFrame[frame]
		if !ok {
			return nil, fmt.Errorf("instruction %d: unknown frame %s", i1, frame)
		}
		s.Instructions++
		if e1.Op() == tac.OpGoto {
			if typ, target, ok := util.SplitLabel(e1.Arg1().Text()); ok && typ == util.LabelStart && target[0] == 'M' {
				s.Calls++
			}
		}
	}
	return res, nil
}

// StatsTable renders stats as a table.
func StatsTable(stats []ScopeStats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Frame", "Kind", "Name", "Parent", "Symbols", "Frame size", "Instructions", "Calls"})
	ins, calls := 0, 0
	for _, e1 := range stats {
		tw.AppendRow(table.Row{
			e1.Scope.Label(),
			e1.Scope.Kind,
			e1.Scope.Name,
			e1.Scope.Parent,
			len(e1.Scope.Symbols),
			e1.FrameSize,
			e1.Instructions,
			e1.Calls,
		})
		ins += e1.Instructions
		calls += e1.Calls
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "Total", ins, calls})
	return tw.Render()
}
