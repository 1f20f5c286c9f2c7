package tac_test

import (
	"decafc/src/backend/regfile"
	"decafc/src/ir/tac"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Instruction", func() {
	var (
		t0 regfile.Register
		m3 tac.Operand
	)

	BeforeEach(func() {
		t0 = regfile.NewPool(9).Temporaries()[0]
		m3 = tac.Mem(tac.Address{Scope: 3, Frame: "M3", Offset: 4})
	})

	It("should render labels and markers bare", func() {
		Expect(tac.NewLabel("START_M3").String()).To(Equal("START_M3"))
		Expect(tac.NewSingle(tac.OpSave).String()).To(Equal("PSHA"))
		Expect(tac.NewSingle(tac.OpRestore).String()).To(Equal("POPA"))
	})

	It("should render moves and jumps", func() {
		Expect(tac.Mov(m3, tac.Lit("5")).String()).To(Equal("MOV M3[4] 5"))
		Expect(tac.Goto("END_W5").String()).To(Equal("GOTO END_W5"))
		Expect(tac.If(regfile.FL, "START_W5").String()).To(Equal("IF FL GOTO START_W5"))
		Expect(tac.IfNot(regfile.FL, "END_I5").String()).To(Equal("IF NOT FL GOTO END_I5"))
		Expect(tac.Return().String()).To(Equal("BX LR"))
	})

	It("should render operators with and without destination", func() {
		ins := tac.NewExpr("+", tac.Reg(t0), tac.Lit("1"))
		Expect(ins.String()).To(Equal("+ _t0 1"))

		patched, err := ins.Patch(m3)
		Expect(err).NotTo(HaveOccurred())
		Expect(patched.String()).To(Equal("M3[4] := + _t0 1"))
		Expect(ins.Dest().IsZero()).To(BeTrue())

		neg := tac.NewExpr("-", tac.Lit("3"), tac.Operand{})
		Expect(neg.String()).To(Equal("- 3"))
	})

	It("should render dynamic addresses", func() {
		a := tac.Address{Frame: "C1", Offset: 4, Scale: 4, Index: t0}
		Expect(a.Static()).To(BeFalse())
		Expect(tac.Mem(a).String()).To(Equal("C1[4+4*_t0]"))
	})

	It("should patch the destination only once", func() {
		ins, err := tac.NewExpr("*", tac.Lit("2"), tac.Lit("3")).Patch(tac.Reg(regfile.EAX))
		Expect(err).NotTo(HaveOccurred())

		_, err = ins.Patch(m3)
		Expect(err).To(MatchError(tac.ErrMalformed))
	})

	It("should refuse destinations on control instructions", func() {
		_, err := tac.Goto("END_M3").Patch(tac.Reg(t0))
		Expect(err).To(MatchError(tac.ErrMalformed))

		_, err = tac.NewLabel("START_M3").Patch(tac.Reg(t0))
		Expect(err).To(MatchError(tac.ErrMalformed))
	})

	It("should refuse literal destinations", func() {
		_, err := tac.NewExpr("+", tac.Lit("1"), tac.Lit("2")).Patch(tac.Lit("3"))
		Expect(err).To(MatchError(tac.ErrMalformed))
	})
})

var _ = Describe("Code", func() {
	var code *tac.Code

	BeforeEach(func() {
		code = tac.NewCode()
		code.Append(tac.NewLabel("START_M1"), tac.NewLabel("END_M1"))
	})

	It("should insert in place", func() {
		Expect(code.Insert(tac.Return(), 1)).To(Succeed())
		Expect(code.Insert(tac.NewSingle(tac.OpSave), 3)).To(Succeed())
		Expect(code.String()).To(Equal("START_M1\nBX LR\nEND_M1\nPSHA\n"))
	})

	It("should replace in place", func() {
		Expect(code.Replace(tac.Return(), 0)).To(Succeed())
		Expect(code.At(0).String()).To(Equal("BX LR"))
		Expect(code.Len()).To(Equal(2))
	})

	It("should check bounds", func() {
		Expect(code.Insert(tac.Return(), 3)).NotTo(Succeed())
		Expect(code.Insert(tac.Return(), -1)).NotTo(Succeed())
		Expect(code.Replace(tac.Return(), 2)).NotTo(Succeed())
		Expect(code.Len()).To(Equal(2))
	})

	It("should return a copy of its instructions", func() {
		ins := code.Instructions()
		ins[0] = tac.Return()
		Expect(code.At(0).String()).To(Equal("START_M1"))
	})
})
