package frame

import (
	"errors"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/dshills/framehook/internal/unwind"
)

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}

// EncodeResult renders the outcome of resolving f as one JSON object. A nil
// claim encodes "unwinder": null. A resolution error encodes the failing
// unwinder and message under "error".
func EncodeResult(f unwind.PendingFrame, claim *unwind.Claim, rerr error) ([]byte, error) {
	out := []byte(`{}`)
	var err error

	set := func(path string, v any) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, path, v)
	}

	set("level", f.Level())
	set("pc", hex(f.PC()))

	switch {
	case rerr != nil:
		var fault *unwind.Fault
		if errors.As(rerr, &fault) {
			set("error.unwinder", fault.Unwinder)
			set("error.locus", fault.Locus.String())
		}
		set("error.message", rerr.Error())
	case claim == nil:
		set("unwinder", nil)
	default:
		id := claim.Info.ID()
		set("unwinder", claim.Name)
		set("locus", claim.Locus.String())
		set("frame_id.sp", hex(id.SP))
		set("frame_id.pc", hex(id.PC))
		if id.Special != nil {
			set("frame_id.special", hex(*id.Special))
		}
		set("saved_registers", []any{})
		for _, r := range claim.Info.SavedRegisters() {
			set("saved_registers.-1", map[string]any{"name": r.Name, "value": hex(r.Value)})
		}
	}

	if err != nil {
		return nil, err
	}
	return out, nil
}
