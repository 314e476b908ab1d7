package metadata

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wippyai/ilrewrite/errors"
)

// Hex is a byte string written as space-separated hex pairs in fixtures.
type Hex []byte

// UnmarshalText accepts hex digits with optional whitespace between them.
func (h *Hex) UnmarshalText(text []byte) error {
	s := strings.Join(strings.Fields(string(text)), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("hex blob: %w", err)
	}
	*h = b
	return nil
}

// MarshalText writes the bytes as space-separated lowercase pairs.
func (h Hex) MarshalText() ([]byte, error) {
	var b strings.Builder
	for i, c := range h {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	return []byte(b.String()), nil
}

func (h Hex) String() string {
	s, _ := h.MarshalText()
	return string(s)
}

// ParseImage reads an image from its TOML form.
func ParseImage(data []byte) (*Image, error) {
	img := &Image{}
	md, err := toml.Decode(string(data), &img.t)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "parse image")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("unknown image key %q", undecoded[0].String()))
	}
	return img, nil
}

// LoadImage reads an image from a TOML file.
func LoadImage(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := ParseImage(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if img.t.Path == "" {
		img.t.Path = path
	}
	return img, nil
}

// Encode writes the image in its TOML form.
func (img *Image) Encode(w io.Writer) error {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return toml.NewEncoder(w).Encode(img.t)
}
