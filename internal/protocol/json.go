package protocol

import "bytes"

// Object is the span of the outermost brace-delimited text object found
// in a message buffer. The locator never fails on malformed input; a
// missing object or field is reported as absent and the caller decides
// severity.
type Object struct {
	data []byte
}

// FindObject searches the buffer for the outermost brace-delimited
// object, e.g.
//
//	{"user":"John Doe","age":"35","gender":"male","extra":{...}}
//
// and returns its span including both braces.
func FindObject(data []byte) (Object, bool) {
	start := bytes.IndexByte(data, '{')
	if start < 0 {
		return Object{}, false
	}

	level := 0
	for i := start; i < len(data); i++ {
		switch data[i] {
		case '{':
			level++
		case '}':
			level--
		}
		if level == 0 {
			return Object{data: data[start : i+1]}, true
		}
	}

	// No matching closing brace.
	return Object{}, false
}

// TagValue locates the field with the given name inside the object and
// returns its quoted-string value, i.e. the <val> in "<tag>": "<val>".
// The second return is false when the field is absent or has no quoted
// value.
func (o Object) TagValue(tag string) (string, bool) {
	if len(o.data) < 2 {
		return "", false
	}

	label := []byte(`"` + tag + `"`)
	body := o.data[1 : len(o.data)-1]

	pos := bytes.Index(body, label)
	if pos < 0 {
		return "", false
	}

	// Skip whitespace and the colon separator after the label.
	rest := body[pos+len(label):]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t' || rest[i] == '\r' || rest[i] == '\n' || rest[i] == ':') {
		i++
	}
	rest = rest[i:]

	open := bytes.IndexByte(rest, '"')
	if open < 0 {
		return "", false
	}
	close := bytes.IndexByte(rest[open+1:], '"')
	if close < 0 {
		return "", false
	}

	return string(rest[open+1 : open+1+close]), true
}

// ParseIntPrefix parses the leading integer prefix of a legacy
// string-typed numeric field, ignoring trailing garbage the way a
// C-style conversion would. Returns false when no digits are present.
func ParseIntPrefix(s string) (int, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}

	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}

	val := 0
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		val = val*10 + int(s[i]-'0')
		digits++
		i++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		val = -val
	}

	return val, true
}
