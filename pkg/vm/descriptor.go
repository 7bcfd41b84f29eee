package vm

import (
	"fmt"
	"strings"
)

// ParamCount returns how many arguments a method descriptor like
// "(ILjava/lang/String;[I)V" takes, counting long/double as one parameter
// slot (the descriptor syntax, unlike max_locals, never double-counts
// them) — the count invokeinterface's operand redundantly encodes and
// this function cross-checks it against.
func ParamCount(descriptor string) int {
	i := 1 // skip leading '('
	n := 0
	for i < len(descriptor) && descriptor[i] != ')' {
		consumed := fieldDescriptorLen(descriptor[i:])
		if consumed == 0 {
			break
		}
		i += consumed
		n++
	}
	return n
}

// ParamDescriptors splits a method descriptor's parameter list into its
// individual field descriptors, in order.
func ParamDescriptors(descriptor string) ([]string, error) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return nil, fmt.Errorf("malformed method descriptor %q", descriptor)
	}
	var out []string
	i := 1
	for i < len(descriptor) && descriptor[i] != ')' {
		n := fieldDescriptorLen(descriptor[i:])
		if n == 0 {
			return nil, fmt.Errorf("malformed method descriptor %q at %d", descriptor, i)
		}
		out = append(out, descriptor[i:i+n])
		i += n
	}
	return out, nil
}

// ReturnDescriptor returns the portion of a method descriptor after the
// closing paren: "V" for void, or a field descriptor.
func ReturnDescriptor(descriptor string) string {
	idx := strings.IndexByte(descriptor, ')')
	if idx < 0 || idx+1 > len(descriptor) {
		return "V"
	}
	return descriptor[idx+1:]
}

// IsWideDescriptor reports whether a field descriptor denotes a long or
// double, the two computational types that occupy two local/stack slots.
func IsWideDescriptor(d string) bool { return d == "J" || d == "D" }

// fieldDescriptorLen returns how many bytes of s (from its start) make up
// one complete field descriptor: a primitive letter, an array prefix
// followed by a field descriptor, or a semicolon-terminated class type.
func fieldDescriptorLen(s string) int {
	if len(s) == 0 {
		return 0
	}
	switch s[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 'V':
		return 1
	case '[':
		return 1 + fieldDescriptorLen(s[1:])
	case 'L':
		idx := strings.IndexByte(s, ';')
		if idx < 0 {
			return 0
		}
		return idx + 1
	default:
		return 0
	}
}
