// Package cfg builds basic-block control-flow graphs of decoded method
// bodies and renders them as Graphviz DOT.
package cfg

import (
	"fmt"
	"sort"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"github.com/wippyai/ilrewrite/il"
	"github.com/wippyai/ilrewrite/sig"
)

// Namer names the method referenced by a call token. A nil Namer prints the
// raw token.
type Namer func(tok sig.Token) string

// Build partitions m into basic blocks. Block Start and End are instruction
// positions in code order, and call sites carry the IL offset of the call.
//
// Leaders are the first instruction, every branch and switch target, every
// instruction following a transfer of control, and the start of every try,
// handler and filter region. The end-of-code label is not part of any block.
func Build(name string, m *il.Method, namer Namer) *lattice.FuncCFG {
	hs := m.Handles()
	if n := len(hs); n > 0 && m.Get(hs[n-1]).Op == il.OpLabel {
		hs = hs[:n-1]
	}
	f := &lattice.FuncCFG{Name: name}
	if len(hs) == 0 {
		return f
	}

	leaders := map[int]bool{0: true}
	mark := func(h il.Handle) {
		if i := m.Index(h); i >= 0 && i < len(hs) {
			leaders[i] = true
		}
	}
	for i, h := range hs {
		in := m.Get(h)
		for _, t := range in.Targets {
			mark(t)
		}
		if endsBlock(in.Op) && i+1 < len(hs) {
			leaders[i+1] = true
		}
	}
	for _, c := range m.Clauses {
		mark(c.TryStart)
		mark(c.TryEnd)
		mark(c.HandlerStart)
		mark(c.HandlerEnd)
		if c.FilterStart != il.NoHandle {
			mark(c.FilterStart)
		}
	}

	starts := make([]int, 0, len(leaders))
	for i := range leaders {
		starts = append(starts, i)
	}
	sort.Ints(starts)

	blockAt := make(map[int]int, len(starts))
	for id, start := range starts {
		end := len(hs)
		if id+1 < len(starts) {
			end = starts[id+1]
		}
		f.Blocks = append(f.Blocks, &lattice.BasicBlock{ID: id, Start: start, End: end})
		blockAt[start] = id
	}

	for _, b := range f.Blocks {
		for i := b.Start; i < b.End; i++ {
			in := m.Get(hs[i])
			if callee, ok := calleeOf(in, namer); ok {
				b.Calls = append(b.Calls, lattice.CallSite{Offset: in.Offset, Callee: callee})
			}
		}

		last := m.Get(hs[b.End-1])
		next, hasNext := blockAt[b.End]
		target := func(h il.Handle) (int, bool) {
			id, ok := blockAt[m.Index(h)]
			return id, ok
		}

		switch last.Op.Flow() {
		case il.FlowReturn, il.FlowThrow:
			b.Term = true
		case il.FlowBranch:
			if id, ok := target(last.Targets[0]); ok {
				b.Succs = append(b.Succs, lattice.Successor{BlockID: id})
			} else {
				b.Term = true
			}
		case il.FlowCondBranch:
			if last.Op == il.OpSwitch {
				for k, t := range last.Targets {
					if id, ok := target(t); ok {
						b.Succs = append(b.Succs, lattice.Successor{BlockID: id, Cond: fmt.Sprintf("%d", k)})
					}
				}
			} else if id, ok := target(last.Targets[0]); ok {
				b.Succs = append(b.Succs, lattice.Successor{BlockID: id, Cond: "T"})
			}
			if hasNext {
				b.Succs = append(b.Succs, lattice.Successor{BlockID: next, Cond: "F"})
			}
		default:
			if last.Op == il.OpJmp {
				b.Term = true
			} else if hasNext {
				b.Succs = append(b.Succs, lattice.Successor{BlockID: next})
			} else {
				b.Term = true
			}
		}
	}
	return f
}

// DOT renders one or more function graphs as a single DOT document.
func DOT(title string, funcs ...*lattice.FuncCFG) string {
	return render.DOTCFG(&lattice.CFGGraph{Funcs: funcs}, title)
}

func endsBlock(op il.Opcode) bool {
	switch op.Flow() {
	case il.FlowBranch, il.FlowCondBranch, il.FlowReturn, il.FlowThrow:
		return true
	}
	return op == il.OpJmp
}

func calleeOf(in *il.Instruction, namer Namer) (string, bool) {
	if in.Op.Flow() != il.FlowCall || in.Op == il.OpJmp {
		return "", false
	}
	tok := in.Token()
	if in.Op == il.OpCalli {
		return "calli " + tok.String(), true
	}
	if namer != nil {
		if name := namer(tok); name != "" {
			return name, true
		}
	}
	return tok.String(), true
}
