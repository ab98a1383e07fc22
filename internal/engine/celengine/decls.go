package celengine

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
)

// parseDecls reads the env.celdecl format: one `name: type` per line,
// blank lines and #-comments ignored.
func parseDecls(text string) ([]cel.EnvOption, error) {
	var opts []cel.EnvOption
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, typeName, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: want `name: type`, got %q", i+1, line)
		}
		name = strings.TrimSpace(name)
		if !validIdent(name) {
			return nil, fmt.Errorf("line %d: invalid variable name %q", i+1, name)
		}
		t, err := parseType(strings.TrimSpace(typeName))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		opts = append(opts, cel.Variable(name, t))
	}
	return opts, nil
}

func parseType(s string) (*cel.Type, error) {
	switch s {
	case "bool":
		return cel.BoolType, nil
	case "int":
		return cel.IntType, nil
	case "uint":
		return cel.UintType, nil
	case "double":
		return cel.DoubleType, nil
	case "string":
		return cel.StringType, nil
	case "bytes":
		return cel.BytesType, nil
	case "timestamp":
		return cel.TimestampType, nil
	case "duration":
		return cel.DurationType, nil
	case "dyn":
		return cel.DynType, nil
	}
	if inner, ok := unwrap(s, "list"); ok {
		elem, err := parseType(inner)
		if err != nil {
			return nil, err
		}
		return cel.ListType(elem), nil
	}
	if inner, ok := unwrap(s, "map"); ok {
		keyName, valName, ok := splitTop(inner)
		if !ok {
			return nil, fmt.Errorf("map type wants two parameters, got %q", inner)
		}
		key, err := parseType(keyName)
		if err != nil {
			return nil, err
		}
		val, err := parseType(valName)
		if err != nil {
			return nil, err
		}
		return cel.MapType(key, val), nil
	}
	return nil, fmt.Errorf("unknown type %q", s)
}

// unwrap peels `kind( inner )` and returns the trimmed inner part.
func unwrap(s, kind string) (string, bool) {
	if !strings.HasPrefix(s, kind+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return strings.TrimSpace(s[len(kind)+1 : len(s)-1]), true
}

// splitTop cuts inner at the first comma outside parentheses.
func splitTop(inner string) (left, right string, ok bool) {
	depth := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(inner[:i]), strings.TrimSpace(inner[i+1:]), true
			}
		}
	}
	return "", "", false
}

func validIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}
