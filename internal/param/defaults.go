package param

// Defaults returns the built-in parameter definitions.
func Defaults() []Definition {
	return []Definition{
		{Name: "pagination", Kind: KindBoolean, Default: true, Doc: "Pause output after each screenful."},
		{Name: "confirm", Kind: KindBoolean, Default: true, Doc: "Ask before destructive operations."},
		{Name: "height", Kind: KindUInteger, Default: nil, Doc: "Lines per screen page."},
		{Name: "width", Kind: KindUInteger, Default: uint64(80), Doc: "Characters per line."},
		{Name: "print elements", Kind: KindUInteger, Default: uint64(200), Doc: "Limit on array elements printed."},
		{Name: "print pretty", Kind: KindBoolean, Default: false, Doc: "Pretty-print structures."},
		{Name: "print frame-arguments", Kind: KindEnum, Default: "scalars", Enum: []string{"all", "scalars", "none", "presence"}, Doc: "Which frame arguments to print."},
		{Name: "backtrace limit", Kind: KindUInteger, Default: nil, Doc: "Maximum number of frames in a backtrace."},
		{Name: "language", Kind: KindEnum, Default: "auto", Enum: []string{"auto", "local", "c", "c++", "go", "rust", "asm"}, Doc: "Current source language."},
		{Name: "prompt", Kind: KindString, Default: "(dbg) ", Doc: "Command prompt."},
		{Name: "max-value-size", Kind: KindInteger, Default: int64(65536), Unlimited: true, Doc: "Largest value in bytes that may be fetched."},
	}
}
