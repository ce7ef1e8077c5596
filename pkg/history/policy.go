package history

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"
)

// Disposition is the verdict for a candidate line
type Disposition int

const (
	// SkipAdding drops the line entirely
	SkipAdding Disposition = iota
	// MemoryOnly records the line in this session but never writes it to disk
	MemoryOnly
	// MemoryAndFile records the line and persists it according to the save style
	MemoryAndFile
)

func (d Disposition) String() string {
	switch d {
	case SkipAdding:
		return "SkipAdding"
	case MemoryOnly:
		return "MemoryOnly"
	case MemoryAndFile:
		return "MemoryAndFile"
	default:
		return fmt.Sprintf("Disposition(%d)", int(d))
	}
}

func (d Disposition) valid() bool {
	return d >= SkipAdding && d <= MemoryAndFile
}

// ParseDisposition parses a disposition name, ignoring case. "Skip" is
// accepted for SkipAdding.
func ParseDisposition(s string) (Disposition, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skipadding", "skip":
		return SkipAdding, true
	case "memoryonly":
		return MemoryOnly, true
	case "memoryandfile":
		return MemoryAndFile, true
	}
	return SkipAdding, false
}

// DecisionFunc decides what to do with a typed line. It may return a bool,
// a Disposition, a disposition name, or any value convertible to one.
type DecisionFunc func(line string) any

var sensitivePattern = regexp.MustCompile(`(?i)password|asplaintext|token|apikey|secret`)

var secretMgmtCommands = map[string]bool{
	"get-secret":             true,
	"get-secretinfo":         true,
	"get-secretvault":        true,
	"register-secretvault":   true,
	"remove-secret":          true,
	"set-secretinfo":         true,
	"set-secretvaultdefault": true,
	"test-secretvault":       true,
	"unlock-secretvault":     true,
	"unregister-secretvault": true,
	"get-azaccesstoken":      true,
}

// DefaultDisposition is the decision used when no DecisionFunc is installed
func DefaultDisposition(line string) Disposition {
	if strings.TrimSpace(line) == "" {
		return SkipAdding
	}
	if sensitivePattern.MatchString(line) || invokesSecretCommand(line) {
		return MemoryOnly
	}
	return MemoryAndFile
}

// invokesSecretCommand reports whether any pipeline segment of line starts
// with a secret-management command
func invokesSecretCommand(line string) bool {
	segments := strings.FieldsFunc(line, func(r rune) bool {
		return r == '|' || r == ';' || r == '&' || r == '\n' || r == '('
	})
	for _, segment := range segments {
		fields := strings.Fields(segment)
		if len(fields) > 0 && fields[0] == "." && len(fields) > 1 {
			fields = fields[1:]
		}
		if len(fields) > 0 && secretMgmtCommands[strings.ToLower(fields[0])] {
			return true
		}
	}
	return false
}

// disposition runs the decision chain for a candidate line
func (s *State) disposition(line string, fromHistoryFile bool) Disposition {
	if strings.TrimSpace(line) == "" {
		return SkipAdding
	}

	if s.Options.NoDuplicates {
		if newest, ok := s.History.Newest(); ok && newest.CommandLine == line {
			return SkipAdding
		}
	}

	if fromHistoryFile {
		return MemoryAndFile
	}

	if s.Options.AddToHistoryHandler == nil {
		return DefaultDisposition(line)
	}

	if d, ok := dispositionOf(s.callHandler(line)); ok {
		return d
	}
	return MemoryAndFile
}

// callHandler invokes the installed DecisionFunc. A panicking handler is
// treated as having returned nothing.
func (s *State) callHandler(line string) (value any) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Interface("panic", r).Msg("History decision handler panicked")
			value = nil
		}
	}()
	return s.Options.AddToHistoryHandler(line)
}

// dispositionOf converts a handler result. Cheap type switches come first;
// reflection is the last resort.
func dispositionOf(value any) (Disposition, bool) {
	switch v := value.(type) {
	case nil:
		return SkipAdding, false
	case bool:
		if v {
			return MemoryAndFile, true
		}
		return SkipAdding, true
	case Disposition:
		return v, v.valid()
	case string:
		if d, ok := ParseDisposition(v); ok {
			return d, true
		}
	}
	return convertDisposition(value)
}

func convertDisposition(value any) (Disposition, bool) {
	if stringer, ok := value.(fmt.Stringer); ok {
		if d, ok := ParseDisposition(stringer.String()); ok {
			return d, true
		}
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return SkipAdding, false
		}
		rv = rv.Elem()
	}

	var d Disposition
	switch rv.Kind() {
	case reflect.Bool:
		return dispositionOf(rv.Bool())
	case reflect.String:
		return ParseDisposition(rv.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < int64(SkipAdding) || n > int64(MemoryAndFile) {
			return SkipAdding, false
		}
		d = Disposition(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > uint64(MemoryAndFile) {
			return SkipAdding, false
		}
		d = Disposition(n)
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < float64(SkipAdding) || f > float64(MemoryAndFile) {
			return SkipAdding, false
		}
		d = Disposition(f)
	default:
		return SkipAdding, false
	}
	return d, true
}
