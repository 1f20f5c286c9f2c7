package tac_test

import (
	"strings"

	"decafc/src/backend/regfile"
	"decafc/src/ir/tac"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func lit(s string) *tac.Term {
	return tac.Leaf(tac.Lit(s))
}

func listing(code []tac.Instruction) []string {
	res := make([]string, len(code))
	for i1, e1 := range code {
		res[i1] = e1.String()
	}
	return res
}

var _ = Describe("Simplify", func() {
	var (
		pool *regfile.Pool
		dst  tac.Operand
	)

	BeforeEach(func() {
		pool = regfile.NewPool(9)
		dst = tac.Mem(tac.Address{Scope: 1, Frame: "C1", Offset: 0})
	})

	It("should leave a single operation pending", func() {
		f, err := tac.Simplify(tac.Binary(lit("1"), "+", lit("2")), pool, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Pending()).To(BeTrue())
		Expect(listing(f.Code)).To(Equal([]string{"+ 1 2"}))

		code, err := f.Into(dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(code)).To(Equal([]string{"C1[0] := + 1 2"}))
		Expect(pool.Live()).To(BeZero())
	})

	It("should emit one instruction per operator in depth-first order", func() {
		t := tac.Binary(
			tac.Binary(lit("1"), "+", lit("2")),
			"*",
			tac.Binary(lit("3"), "-", tac.Unary("-", lit("4"))),
		)
		Expect(t.Nodes()).To(Equal(4))

		f, err := tac.Simplify(t, pool, true)
		Expect(err).NotTo(HaveOccurred())
		code, err := f.Into(dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(code)).To(Equal([]string{
			"_t0 := + 1 2",
			"_t1 := - 4",
			"_t2 := - 3 _t1",
			"C1[0] := * _t0 _t2",
		}))
		Expect(pool.Live()).To(BeZero())
	})

	It("should never let a destination alias a live operand", func() {
		t := tac.Binary(tac.Binary(tac.Binary(lit("1"), "+", lit("2")), "+", lit("3")), "+", lit("4"))
		f, err := tac.Simplify(t, pool, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(f.Code)).To(Equal([]string{
			"_t0 := + 1 2",
			"_t1 := + _t0 3",
			"+ _t1 4",
		}))
		for _, e1 := range f.Code {
			if d := e1.Dest(); !d.IsZero() {
				Expect(e1.Arg1().String()).NotTo(Equal(d.String()))
				Expect(e1.Arg2().String()).NotTo(Equal(d.String()))
			}
		}
	})

	It("should move a bare leaf", func() {
		f, err := tac.Simplify(lit("7"), pool, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Pending()).To(BeFalse())
		Expect(f.Code).To(BeEmpty())

		code, err := f.Into(tac.Reg(regfile.EAX))
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(code)).To(Equal([]string{"MOV EAX 7"}))
	})

	It("should release the registers of a consumed leaf", func() {
		r, err := pool.Acquire()
		Expect(err).NotTo(HaveOccurred())
		setup := tac.Mov(tac.Reg(r), tac.Reg(regfile.EAX))

		f, err := tac.Simplify(tac.Leaf(tac.Reg(r), setup), pool, true)
		Expect(err).NotTo(HaveOccurred())
		code, err := f.Into(dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(code)).To(Equal([]string{"MOV _t0 EAX", "MOV C1[0] _t0"}))
		Expect(pool.InUse(r)).To(BeFalse())
	})

	It("should release index registers of memory operands", func() {
		r, err := pool.Acquire()
		Expect(err).NotTo(HaveOccurred())
		elem := tac.Mem(tac.Address{Frame: "C1", Offset: 4, Scale: 4, Index: r})

		f, err := tac.Simplify(tac.Binary(tac.Binary(tac.Leaf(elem), "+", lit("1")), "*", lit("2")), pool, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(f.Code)).To(Equal([]string{
			"_t1 := + C1[4+4*_t0] 1",
			"* _t1 2",
		}))
		Expect(pool.InUse(r)).To(BeFalse())
	})

	It("should lower a deferred leaf after its left sibling holds its temporary", func() {
		var held []bool
		elem := tac.Deferred(func() (tac.Operand, []tac.Instruction, error) {
			held = append(held, pool.Live() == 1)
			r, err := pool.Acquire()
			if err != nil {
				return tac.Operand{}, nil, err
			}
			return tac.Mem(tac.Address{Frame: "C1", Offset: 4, Scale: 4, Index: r}),
				[]tac.Instruction{tac.Mov(tac.Reg(r), tac.Lit("3"))}, nil
		})

		f, err := tac.Simplify(tac.Binary(tac.Binary(lit("1"), "+", lit("2")), "*", elem), pool, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(held).To(Equal([]bool{true}))
		code, err := f.Into(dst)
		Expect(err).NotTo(HaveOccurred())
		Expect(listing(code)).To(Equal([]string{
			"_t0 := + 1 2",
			"MOV _t1 3",
			"C1[0] := * _t0 C1[4+4*_t1]",
		}))
		Expect(pool.Live()).To(BeZero())
	})

	It("should release the left operand when a deferred leaf fails", func() {
		bad := tac.Deferred(func() (tac.Operand, []tac.Instruction, error) {
			return tac.Operand{}, nil, nil
		})
		_, err := tac.Simplify(tac.Binary(tac.Binary(lit("1"), "+", lit("2")), "*", bad), pool, true)
		Expect(err).To(MatchError(tac.ErrMalformed))
		Expect(pool.Live()).To(BeZero())
	})

	It("should fail when the pool runs dry and release what it held", func() {
		small := regfile.NewPool(1)
		t := tac.Binary(tac.Binary(lit("1"), "+", lit("2")), "*", tac.Binary(lit("3"), "+", lit("4")))
		_, err := tac.Simplify(t, small, true)
		Expect(err).To(MatchError(tac.ErrPoolExhausted))
		Expect(small.Live()).To(BeZero())
	})

	It("should reject malformed terms", func() {
		_, err := tac.Simplify(tac.Binary(nil, "+", lit("1")), pool, true)
		Expect(err).To(MatchError(tac.ErrMalformed))

		_, err = tac.Simplify(tac.Unary("-", tac.Leaf(tac.Operand{})), pool, true)
		Expect(err).To(MatchError(tac.ErrMalformed))

		_, err = tac.Simplify(nil, pool, true)
		Expect(err).To(MatchError(tac.ErrMalformed))
	})

	It("should store a result only once", func() {
		f, err := tac.Simplify(tac.Binary(lit("1"), "+", lit("2")), pool, true)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.Into(dst)
		Expect(err).NotTo(HaveOccurred())
		_, err = f.Into(dst)
		Expect(err).To(MatchError(tac.ErrMalformed))
	})

	It("should hand out temporaries in name order", func() {
		big := regfile.NewPool(12)
		for i1 := 0; i1 < 2; i1++ {
			_, err := big.Acquire()
			Expect(err).NotTo(HaveOccurred())
		}
		t := tac.Binary(tac.Binary(lit("1"), "+", lit("2")), "*", tac.Binary(lit("3"), "+", lit("4")))
		f, err := tac.Simplify(t, big, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.Join(listing(f.Code), ";")).To(Equal("_t10 := + 1 2;_t11 := + 3 4;* _t10 _t11"))
	})
})
