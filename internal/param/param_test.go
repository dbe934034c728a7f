package param

import (
	"errors"
	"testing"
)

// recordingBackend wraps a Store and records every applied token.
type recordingBackend struct {
	*Store
	applied []string
	failSet error
}

func (r *recordingBackend) ApplyParameterCommand(name, token string) error {
	if r.failSet != nil {
		return r.failSet
	}
	r.applied = append(r.applied, name+"="+token)
	return r.Store.ApplyParameterCommand(name, token)
}

func newBackend() *recordingBackend {
	return &recordingBackend{Store: NewStoreWithDefaults()}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "unlimited"},
		{"true", true, "on"},
		{"false", false, "off"},
		{"string", "hex", "hex"},
		{"int", 42, "42"},
		{"uint64", uint64(200), "200"},
		{"float", 2.5, "2.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.value); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestWithNoneUsesUnlimitedToken(t *testing.T) {
	b := newBackend()

	err := With(b, "print elements", nil, func() error {
		v, err := b.Parameter("print elements")
		if err != nil {
			return err
		}
		if v != nil {
			t.Errorf("print elements inside scope = %v, want unlimited (nil)", v)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	if len(b.applied) == 0 || b.applied[0] != "print elements=unlimited" {
		t.Errorf("first applied token = %v, want print elements=unlimited", b.applied)
	}
}

func TestWithBooleanTokens(t *testing.T) {
	b := newBackend()

	_ = With(b, "print pretty", true, func() error { return nil })
	_ = With(b, "pagination", false, func() error { return nil })

	want := []string{
		"print pretty=on", "print pretty=off",
		"pagination=off", "pagination=on",
	}
	if len(b.applied) != len(want) {
		t.Fatalf("applied = %v, want %v", b.applied, want)
	}
	for i := range want {
		if b.applied[i] != want[i] {
			t.Errorf("applied[%d] = %q, want %q", i, b.applied[i], want[i])
		}
	}
}

func TestWithRestoresPreviousValue(t *testing.T) {
	values := []any{nil, true, false, "all", uint64(7), int64(3)}
	names := map[string]string{
		"<nil>":  "height",
		"bool":   "print pretty",
		"string": "print frame-arguments",
		"uint64": "print elements",
		"int64":  "max-value-size",
	}

	for _, v := range values {
		name := names[typeName(v)]
		t.Run(name, func(t *testing.T) {
			b := newBackend()
			before, _ := b.Parameter(name)

			_ = With(b, name, v, func() error { return nil })

			after, _ := b.Parameter(name)
			if after != before {
				t.Errorf("%s after scope = %v, want %v", name, after, before)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "<nil>"
	case bool:
		return "bool"
	case string:
		return "string"
	case uint64:
		return "uint64"
	case int64:
		return "int64"
	}
	return "other"
}

func TestWithRestoresOnBodyError(t *testing.T) {
	b := newBackend()
	bodyErr := errors.New("scoped body failed")

	err := With(b, "width", 132, func() error {
		if v, _ := b.Parameter("width"); v != uint64(132) {
			t.Errorf("width inside scope = %v, want 132", v)
		}
		return bodyErr
	})
	if !errors.Is(err, bodyErr) {
		t.Errorf("With() error = %v, want %v", err, bodyErr)
	}
	if v, _ := b.Parameter("width"); v != uint64(80) {
		t.Errorf("width after failed scope = %v, want 80", v)
	}
}

func TestWithRestoresOnPanic(t *testing.T) {
	b := newBackend()

	func() {
		defer func() { _ = recover() }()
		_ = With(b, "confirm", false, func() error { panic("boom") })
	}()

	if v, _ := b.Parameter("confirm"); v != true {
		t.Errorf("confirm after panicking scope = %v, want true", v)
	}
}

func TestWithUnknownParameter(t *testing.T) {
	b := newBackend()
	ran := false

	err := With(b, "no such thing", 1, func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("With() error = %v, want ErrUnknownParameter", err)
	}
	if ran {
		t.Error("body ran for unknown parameter")
	}
	if len(b.applied) != 0 {
		t.Errorf("applied = %v, want nothing", b.applied)
	}
}

func TestWithInvalidValueDoesNotRestore(t *testing.T) {
	b := newBackend()

	err := With(b, "print frame-arguments", "sometimes", func() error { return nil })
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("With() error = %v, want ErrInvalidValue", err)
	}
	if len(b.applied) != 1 {
		t.Errorf("applied = %v, want only the rejected set", b.applied)
	}
}

func TestNestedSameParameter(t *testing.T) {
	b := newBackend()

	err := With(b, "print elements", 10, func() error {
		return With(b, "print elements", 20, func() error {
			if v, _ := b.Parameter("print elements"); v != uint64(20) {
				t.Errorf("inner value = %v, want 20", v)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if v, _ := b.Parameter("print elements"); v != uint64(200) {
		t.Errorf("value after nested scopes = %v, want 200", v)
	}
}

func TestOverrideGuard(t *testing.T) {
	b := newBackend()

	g, err := Override(b, "language", "go")
	if err != nil {
		t.Fatalf("Override() error = %v", err)
	}
	if v, _ := b.Parameter("language"); v != "go" {
		t.Errorf("language = %v, want go", v)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if v, _ := b.Parameter("language"); v != "auto" {
		t.Errorf("language after release = %v, want auto", v)
	}
}

func TestOverrideSetFailure(t *testing.T) {
	b := newBackend()
	b.failSet = errors.New("read-only")

	if _, err := Override(b, "width", 10); !errors.Is(err, b.failSet) {
		t.Errorf("Override() error = %v, want %v", err, b.failSet)
	}
}

func TestDefinitionParse(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		token   string
		want    any
		wantErr bool
	}{
		{"bool on", Definition{Kind: KindBoolean}, "on", true, false},
		{"bool empty", Definition{Kind: KindBoolean}, "", true, false},
		{"bool off", Definition{Kind: KindBoolean}, "off", false, false},
		{"bool junk", Definition{Kind: KindBoolean}, "maybe", nil, true},
		{"uint unlimited", Definition{Kind: KindUInteger}, "unlimited", nil, false},
		{"uint zero", Definition{Kind: KindUInteger}, "0", nil, false},
		{"uint hex", Definition{Kind: KindUInteger}, "0x10", uint64(16), false},
		{"uint negative", Definition{Kind: KindUInteger}, "-1", nil, true},
		{"int", Definition{Kind: KindInteger}, "-5", int64(-5), false},
		{"int unlimited denied", Definition{Kind: KindInteger}, "unlimited", nil, true},
		{"int unlimited allowed", Definition{Kind: KindInteger, Unlimited: true}, "unlimited", nil, false},
		{"enum", Definition{Kind: KindEnum, Enum: []string{"a", "b"}}, "b", "b", false},
		{"enum bad", Definition{Kind: KindEnum, Enum: []string{"a", "b"}}, "c", nil, true},
		{"string keeps spaces", Definition{Kind: KindString}, "(dbg) ", "(dbg) ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.def.Parse(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %v (%T), want %v (%T)", tt.token, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestStoreExecute(t *testing.T) {
	s := NewStoreWithDefaults()

	if _, err := s.Execute("set print elements 50"); err != nil {
		t.Fatalf("Execute(set) error = %v", err)
	}
	out, err := s.Execute("show print elements")
	if err != nil {
		t.Fatalf("Execute(show) error = %v", err)
	}
	if out != "print elements is 50" {
		t.Errorf("Execute(show) = %q, want %q", out, "print elements is 50")
	}

	if _, err := s.Execute("set print nothing 1"); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("Execute(unknown) error = %v, want ErrUnknownParameter", err)
	}
	if _, err := s.Execute("frobnicate width"); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Execute(frobnicate) error = %v, want ErrUnknownCommand", err)
	}
}

func TestStoreExecuteKeepsStringWhitespace(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"set prompt (dbg) ", "(dbg) "},
		{"set prompt   >>  ", ">>  "},
		{"set prompt a  b", "a  b"},
		{"set\tprompt\t(x)", "(x)"},
		{"set prompt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			s := NewStoreWithDefaults()
			if _, err := s.Execute(tt.line); err != nil {
				t.Fatalf("Execute(%q) error = %v", tt.line, err)
			}
			got, err := s.Parameter("prompt")
			if err != nil {
				t.Fatalf("Parameter() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("prompt = %q, want %q", got, tt.want)
			}
		})
	}

	s := NewStoreWithDefaults()
	if _, err := s.Execute("set print elements  50 "); err != nil {
		t.Fatalf("Execute(set print elements) error = %v", err)
	}
	if out, _ := s.Execute("show print elements"); out != "print elements is 50" {
		t.Errorf("Execute(show) = %q, want %q", out, "print elements is 50")
	}
}

func TestStoreRegisterDuplicate(t *testing.T) {
	s := NewStore()
	if err := s.Register(Definition{Name: "foo  bar", Kind: KindString}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(Definition{Name: "foo bar", Kind: KindString}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("Register(duplicate) error = %v, want ErrAlreadyRegistered", err)
	}
	if _, ok := s.Definition("foo bar"); !ok {
		t.Error("Definition(foo bar) not found")
	}
}
