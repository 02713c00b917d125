package frames

import (
	"errors"
	"fmt"
)

var errNilSource = errors.New("frames: assembler requires a packet source")

func errBadUnit(kind, unit string) error {
	return fmt.Errorf("frames: invalid %s unit %q", kind, unit)
}
