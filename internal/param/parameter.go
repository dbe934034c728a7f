// Package param models debugger configuration parameters and scoped overrides
// of them.
//
// Parameters are read with Backend.Parameter and written with
// Backend.ApplyParameterCommand, which only accepts the textual token a user
// would type after "set NAME". Set and With convert Go values to those tokens:
// nil becomes "unlimited", booleans become "on" and "off".
package param

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the value type of a parameter.
type Kind uint8

const (
	// KindString holds free text.
	KindString Kind = iota
	// KindBoolean holds on/off.
	KindBoolean
	// KindInteger holds a signed integer.
	KindInteger
	// KindUInteger holds an unsigned integer where 0 and "unlimited" mean no limit.
	KindUInteger
	// KindEnum holds one of a fixed set of keywords.
	KindEnum
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindUInteger:
		return "uinteger"
	case KindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Keyword tokens understood by the parameter command syntax.
const (
	TokenUnlimited = "unlimited"
	TokenOn        = "on"
	TokenOff       = "off"
)

// Definition describes a parameter.
type Definition struct {
	// Name is the space-separated parameter name (e.g. "print elements").
	Name string

	// Kind is the value type.
	Kind Kind

	// Default is the initial value, in Go form (nil for unlimited).
	Default any

	// Doc is one line of help text.
	Doc string

	// Enum lists the accepted keywords for KindEnum.
	Enum []string

	// Unlimited allows "unlimited" for KindInteger.
	Unlimited bool
}

// Parse converts a command token into the parameter's Go value.
// Unlimited values are returned as nil.
func (d *Definition) Parse(token string) (any, error) {
	if d.Kind == KindString {
		return token, nil
	}
	token = strings.TrimSpace(token)

	switch d.Kind {
	case KindBoolean:
		switch strings.ToLower(token) {
		case "", TokenOn, "1", "yes", "enable":
			return true, nil
		case TokenOff, "0", "no", "disable":
			return false, nil
		}
		return nil, d.invalid(token, `expected "on" or "off"`)

	case KindInteger:
		if d.Unlimited && token == TokenUnlimited {
			return nil, nil
		}
		n, err := strconv.ParseInt(token, 0, 64)
		if err != nil {
			return nil, d.invalid(token, "expected integer")
		}
		return n, nil

	case KindUInteger:
		if token == TokenUnlimited {
			return nil, nil
		}
		n, err := strconv.ParseUint(token, 0, 64)
		if err != nil {
			return nil, d.invalid(token, `expected integer or "unlimited"`)
		}
		if n == 0 {
			return nil, nil
		}
		return n, nil

	case KindEnum:
		for _, e := range d.Enum {
			if e == token {
				return e, nil
			}
		}
		return nil, d.invalid(token, "expected one of "+strings.Join(d.Enum, ", "))
	}

	return nil, d.invalid(token, "unsupported kind")
}

// Format renders a Go value of this parameter as its command token.
func (d *Definition) Format(value any) string {
	return Normalize(value)
}

func (d *Definition) invalid(token, why string) error {
	return fmt.Errorf("%w: %q for %s (%s)", ErrInvalidValue, token, d.Name, why)
}

// Normalize converts a Go value into the token form accepted by
// ApplyParameterCommand.
func Normalize(value any) string {
	switch v := value.(type) {
	case nil:
		return TokenUnlimited
	case bool:
		if v {
			return TokenOn
		}
		return TokenOff
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
