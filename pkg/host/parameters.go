package host

import "strings"

// ParameterKey identifies a parameter value. Empty Processor and Directive
// fields match any processor or directive.
type ParameterKey struct {
	Processor string
	Directive string
	Name      string
}

// TryParseParameter reads "name=value" or "processor!directive!name!value".
// The processor, or both processor and directive, may be left out:
// "directive!name!value" and "name!value" are accepted too. The name must
// not be empty.
func TryParseParameter(parameter string) (ParameterKey, string, bool) {
	end := strings.IndexAny(parameter, "=!")
	if end < 0 {
		return ParameterKey{}, "", false
	}

	if parameter[end] == '=' {
		key := ParameterKey{Name: parameter[:end]}
		return key, parameter[end+1:], key.Name != ""
	}

	first := parameter[:end]
	rest := parameter[end+1:]

	end = strings.IndexByte(rest, '!')
	if end < 0 {
		return ParameterKey{Name: first}, rest, first != ""
	}
	second := rest[:end]
	rest = rest[end+1:]

	end = strings.IndexByte(rest, '!')
	if end < 0 {
		return ParameterKey{Directive: first, Name: second}, rest, second != ""
	}

	key := ParameterKey{Processor: first, Directive: second, Name: rest[:end]}
	return key, rest[end+1:], key.Name != ""
}

type parameterTable map[ParameterKey]string

// lookup tries the exact key, then the name alone.
func (t parameterTable) lookup(processor, directive, name string) (string, bool) {
	if v, ok := t[ParameterKey{Processor: processor, Directive: directive, Name: name}]; ok {
		return v, true
	}
	if processor == "" && directive == "" {
		return "", false
	}
	v, ok := t[ParameterKey{Name: name}]
	return v, ok
}
