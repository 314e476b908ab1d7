package sig

import (
	"github.com/wippyai/ilrewrite/errors"
)

// Substitute copies the bytes of n verbatim, replacing every !i with
// typeArgs[i] and every !!i with methodArgs[i]. A variable whose index is
// outside the supplied list is an error.
func Substitute(n Node, typeArgs, methodArgs [][]byte) ([]byte, error) {
	return AppendSubstituted(nil, n, typeArgs, methodArgs)
}

// AppendSubstituted is Substitute appending to dst.
func AppendSubstituted(dst []byte, n Node, typeArgs, methodArgs [][]byte) ([]byte, error) {
	if n == nil {
		return dst, errors.Logic(errors.PhaseSubstitute, "nil type")
	}
	src := n.Span()
	pending := src.Offset

	err := Walk(n, func(node Node) error {
		v, ok := node.(*GenericVar)
		if !ok {
			return nil
		}
		args, what := typeArgs, "type"
		if v.Method {
			args, what = methodArgs, "method"
		}
		if int64(v.Index) >= int64(len(args)) {
			return errors.New(errors.PhaseSubstitute, errors.KindOutOfBounds).
				Offset(v.span.Offset).
				Value(v.Index).
				Detail("%s generic parameter %d with %d arguments supplied", what, v.Index, len(args)).
				Build()
		}
		dst = append(dst, src.Bytes[pending-src.Offset:v.span.Offset-src.Offset]...)
		dst = append(dst, args[v.Index]...)
		pending = v.span.End()
		return nil
	})
	if err != nil {
		return dst, err
	}
	return append(dst, src.Bytes[pending-src.Offset:]...), nil
}

// HasGenericVars reports whether n references any type or method generic parameter.
func HasGenericVars(n Node) bool {
	found := false
	_ = Walk(n, func(node Node) error {
		if _, ok := node.(*GenericVar); ok {
			found = true
		}
		return nil
	})
	return found
}
