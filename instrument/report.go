package instrument

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Report summarises the rewrite of one module.
type Report struct {
	Path    string         `cbor:"1,keyasint"`
	Methods []MethodReport `cbor:"2,keyasint,omitempty"`
	Module  uint64         `cbor:"3,keyasint"`
}

// MethodReport is the serialisable form of a Result.
type MethodReport struct {
	Name    string        `cbor:"1,keyasint"`
	Points  []PointReport `cbor:"2,keyasint,omitempty"`
	Skipped []SkipReport  `cbor:"3,keyasint,omitempty"`
	ILMap   [][2]int      `cbor:"4,keyasint,omitempty"` // old, new offset
	Token   uint32        `cbor:"5,keyasint"`
	Changed bool          `cbor:"6,keyasint"`
	Error   string        `cbor:"7,keyasint,omitempty"`
}

// PointReport describes one inserted point.
type PointReport struct {
	Callee    string `cbor:"1,keyasint"`
	Interface string `cbor:"2,keyasint"`
	Offset    int    `cbor:"3,keyasint"`
	Arguments int    `cbor:"4,keyasint,omitempty"`
	ID        int32  `cbor:"5,keyasint"`
	Token     uint32 `cbor:"6,keyasint"`
}

// SkipReport describes a call site left alone.
type SkipReport struct {
	Reason string `cbor:"1,keyasint"`
	Offset int    `cbor:"2,keyasint"`
	Token  uint32 `cbor:"3,keyasint"`
}

var reportEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("instrument: failed to create CBOR enc mode: %v", err))
	}
	reportEncMode = em
}

// NewReport builds a report from rewrite results. Nil results are ignored.
func NewReport(id uint64, path string, results []*Result) *Report {
	rep := &Report{Module: id, Path: path}
	for _, r := range results {
		if r == nil {
			continue
		}
		mr := MethodReport{Name: r.Name, Token: uint32(r.Method), Changed: r.Changed()}
		if r.Err != nil {
			mr.Error = r.Err.Error()
		}
		for _, p := range r.Points {
			mr.Points = append(mr.Points, PointReport{
				Callee:    p.Name,
				Interface: p.Interface,
				Offset:    p.Offset,
				Arguments: p.Arguments,
				ID:        p.ID,
				Token:     uint32(p.Callee),
			})
		}
		for _, s := range r.Skipped {
			mr.Skipped = append(mr.Skipped, SkipReport{Reason: s.Reason, Offset: s.Offset, Token: uint32(s.Callee)})
		}
		for _, e := range r.ILMap {
			mr.ILMap = append(mr.ILMap, [2]int{e.Old, e.New})
		}
		rep.Methods = append(rep.Methods, mr)
	}
	return rep
}

// Points returns the number of points across all methods.
func (r *Report) Points() int {
	n := 0
	for i := range r.Methods {
		n += len(r.Methods[i].Points)
	}
	return n
}

// EncodeReport serializes a report to canonical CBOR.
func EncodeReport(r *Report) ([]byte, error) {
	return reportEncMode.Marshal(r)
}

// DecodeReport deserializes a report from CBOR.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("instrument: unmarshal report: %w", err)
	}
	return &r, nil
}
