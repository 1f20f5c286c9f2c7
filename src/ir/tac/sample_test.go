package tac_test

import (
	"strings"

	"decafc/src/frontend"
	"decafc/src/ir"
	"decafc/src/ir/tac"
	"decafc/src/util"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sample unit", func() {
	It("should compile to the reference listing", func() {
		opt := util.DefaultOptions()
		opt.Src = "../../../resources/decaf/sample.yaml"
		src, err := util.ReadSource(opt)
		Expect(err).NotTo(HaveOccurred())

		p, t, err := frontend.Decode(src)
		Expect(err).NotTo(HaveOccurred())
		Expect(ir.ValidateTable(t)).To(Succeed())
		Expect(ir.ValidateProgram(p, t)).To(Succeed())

		code, err := tac.Generate(opt, t, p)
		Expect(err).NotTo(HaveOccurred())
		Expect(code.String()).To(Equal(strings.Join([]string{
			"START_C1",
			"START_S2",
			"END_S2",
			"START_M3",
			"EAX := + M3[0] M3[4]",
			"BX LR",
			"END_M3",
			"START_M4",
			"MOV M4[0] 0",
			"GOTO END_W5",
			"START_W5",
			"MOV _t0 M4[0]",
			"MOV M3[0] M4[0]",
			"MOV M3[4] 1",
			"PSHA",
			"GOTO START_M3",
			"POPA",
			"MOV C1[4+4*_t0] EAX",
			"FL := == M4[0] 5",
			"IF NOT FL GOTO END_I6",
			"START_I6",
			"MOV C1[48] M4[0]",
			"GOTO END_E7",
			"END_I6",
			"START_E7",
			"MOV _t0 M4[0]",
			"C1[0] := + C1[0] C1[4+4*_t0]",
			"END_E7",
			"M4[0] := + M4[0] 1",
			"END_W5",
			"FL := < M4[0] 10",
			"IF FL GOTO START_W5",
			"BX LR",
			"END_M4",
			"END_C1",
		}, "\n") + "\n"))
	})
})
