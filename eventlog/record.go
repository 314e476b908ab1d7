package eventlog

import (
	"fmt"
	"unicode/utf16"

	"github.com/wippyai/ilrewrite/errors"
	"github.com/wippyai/ilrewrite/internal/binary"
)

// Kind identifies a record type. It is the first field of every record.
type Kind uint32

const (
	KindModuleInfo          Kind = 0
	KindInstrumentationInfo Kind = 1
	KindMethodInfo          Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindModuleInfo:
		return "ModuleInfo"
	case KindInstrumentationInfo:
		return "InstrumentationInfo"
	case KindMethodInfo:
		return "MethodInfo"
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Record is one event. The concrete types are *ModuleInfo,
// *InstrumentationInfo and *MethodInfo.
type Record interface {
	Kind() Kind
	encode(w *binary.Writer)
	decode(r *binary.Reader) error
}

// ModuleInfo announces a module before any of its methods are reported.
type ModuleInfo struct {
	Path     string
	ModuleID uint64
}

// InstrumentationInfo describes one instrumentation point.
type InstrumentationInfo struct {
	CalledMethod      string
	ModuleID          uint64
	Point             int32
	FunctionToken     uint32
	InstructionOffset int32
}

// MethodInfo records a rewritten method and how many points it received.
type MethodInfo struct {
	Name          string
	ModuleID      uint64
	FunctionToken uint32
	Points        uint32
}

func (*ModuleInfo) Kind() Kind          { return KindModuleInfo }
func (*InstrumentationInfo) Kind() Kind { return KindInstrumentationInfo }
func (*MethodInfo) Kind() Kind          { return KindMethodInfo }

func (m *ModuleInfo) encode(w *binary.Writer) {
	w.WriteU64LE(m.ModuleID)
	writeString(w, m.Path)
}

func (m *ModuleInfo) decode(r *binary.Reader) (err error) {
	if m.ModuleID, err = r.ReadU64LE(); err != nil {
		return err
	}
	m.Path, err = readString(r)
	return err
}

func (p *InstrumentationInfo) encode(w *binary.Writer) {
	w.WriteU32LE(uint32(p.Point))
	w.WriteU64LE(p.ModuleID)
	w.WriteU32LE(p.FunctionToken)
	w.WriteU32LE(uint32(p.InstructionOffset))
	writeString(w, p.CalledMethod)
}

func (p *InstrumentationInfo) decode(r *binary.Reader) error {
	point, err := r.ReadU32LE()
	if err != nil {
		return err
	}
	p.Point = int32(point)
	if p.ModuleID, err = r.ReadU64LE(); err != nil {
		return err
	}
	if p.FunctionToken, err = r.ReadU32LE(); err != nil {
		return err
	}
	offset, err := r.ReadU32LE()
	if err != nil {
		return err
	}
	p.InstructionOffset = int32(offset)
	p.CalledMethod, err = readString(r)
	return err
}

func (m *MethodInfo) encode(w *binary.Writer) {
	w.WriteU64LE(m.ModuleID)
	w.WriteU32LE(m.FunctionToken)
	w.WriteU32LE(m.Points)
	writeString(w, m.Name)
}

func (m *MethodInfo) decode(r *binary.Reader) (err error) {
	if m.ModuleID, err = r.ReadU64LE(); err != nil {
		return err
	}
	if m.FunctionToken, err = r.ReadU32LE(); err != nil {
		return err
	}
	if m.Points, err = r.ReadU32LE(); err != nil {
		return err
	}
	m.Name, err = readString(r)
	return err
}

// Marshal encodes rec as a 64-bit content length followed by the content.
func Marshal(rec Record) []byte {
	content := binary.NewWriter(errors.PhaseLog)
	content.WriteU32LE(uint32(rec.Kind()))
	rec.encode(content)

	out := binary.NewWriterSize(errors.PhaseLog, 8+content.Len())
	out.WriteU64LE(uint64(content.Len()))
	out.WriteBytes(content.Bytes())
	return out.Bytes()
}

// Unmarshal decodes the record at the start of data and returns it with the
// number of bytes it occupied.
func Unmarshal(data []byte) (Record, int, error) {
	r := binary.NewReader(data, errors.PhaseLog)
	n, err := r.ReadU64LE()
	if err != nil {
		return nil, 0, err
	}
	if n > uint64(r.Len()) {
		return nil, 0, r.Errorf("record length %d exceeds %d remaining bytes", n, r.Len())
	}
	content, err := r.ReadBytes(int(n))
	if err != nil {
		return nil, 0, err
	}

	cr := binary.NewReader(content, errors.PhaseLog)
	k, err := cr.ReadU32LE()
	if err != nil {
		return nil, 0, err
	}
	var rec Record
	switch Kind(k) {
	case KindModuleInfo:
		rec = &ModuleInfo{}
	case KindInstrumentationInfo:
		rec = &InstrumentationInfo{}
	case KindMethodInfo:
		rec = &MethodInfo{}
	default:
		return nil, 0, cr.Errorf("unknown record kind %d", k)
	}
	if err := rec.decode(cr); err != nil {
		return nil, 0, err
	}
	if cr.Len() != 0 {
		return nil, 0, cr.Errorf("%d trailing bytes in %s record", cr.Len(), rec.Kind())
	}
	return rec, r.Position(), nil
}

// Parse decodes a stream of concatenated records.
func Parse(data []byte) ([]Record, error) {
	var recs []Record
	for pos := 0; pos < len(data); {
		rec, n, err := Unmarshal(data[pos:])
		if err != nil {
			return recs, fmt.Errorf("record %d at byte %d: %w", len(recs), pos, err)
		}
		recs = append(recs, rec)
		pos += n
	}
	return recs, nil
}

// Strings are a 64-bit UTF-16 code unit count followed by the code units.
func writeString(w *binary.Writer, s string) {
	units := utf16.Encode([]rune(s))
	w.WriteU64LE(uint64(len(units)))
	for _, u := range units {
		w.WriteU16LE(u)
	}
}

func readString(r *binary.Reader) (string, error) {
	n, err := r.ReadU64LE()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()/2) {
		return "", r.Errorf("string of %d code units exceeds %d remaining bytes", n, r.Len())
	}
	units := make([]uint16, n)
	for i := range units {
		if units[i], err = r.ReadU16LE(); err != nil {
			return "", err
		}
	}
	return string(utf16.Decode(units)), nil
}
