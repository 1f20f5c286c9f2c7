package tac

import (
	"fmt"
	"strings"
)

// Code is the ordered instruction buffer of a compilation unit. Order of insertion is
// the execution order.
type Code struct {
	lines []Instruction
}

// NewCode returns an empty buffer.
func NewCode() *Code {
	return &Code{lines: make([]Instruction, 0, 64)}
}

// Append adds instructions to the end of the buffer.
func (c *Code) Append(ins ...Instruction) {
	c.lines = append(c.lines, ins...)
}

// Extend appends every instruction of o.
func (c *Code) Extend(o *Code) {
	c.lines = append(c.lines, o.lines...)
}

// Insert inserts ins before position index. index may equal Len to append.
func (c *Code) Insert(ins Instruction, index int) error {
	if index < 0 || index > len(c.lines) {
		return fmt.Errorf("insert position %d out of range [0, %d]", index, len(c.lines))
	}
	c.lines = append(c.lines, Instruction{})
	copy(c.lines[index+1:], c.lines[index:])
	c.lines[index] = ins
	return nil
}

// Replace replaces the instruction at position index.
func (c *Code) Replace(ins Instruction, index int) error {
	if index < 0 || index >= len(c.lines) {
		return fmt.Errorf("replace position %d out of range [0, %d)", index, len(c.lines))
	}
	c.lines[index] = ins
	return nil
}

// Len returns the number of instructions.
func (c *Code) Len() int {
	return len(c.lines)
}

// At returns the instruction at position i.
func (c *Code) At(i int) Instruction {
	return c.lines[i]
}

// Instructions returns a copy of the buffer contents.
func (c *Code) Instructions() []Instruction {
	res := make([]Instruction, len(c.lines))
	copy(res, c.lines)
	return res
}

// String returns the listing of the buffer, one instruction per line.
func (c *Code) String() string {
	sb := strings.Builder{}
	for _, e1 := range c.lines {
		sb.WriteString(e1.String())
		sb.WriteRune('\n')
	}
	return sb.String()
}
