package matcher

import "regexp"

// tracebackStartRe matches lines that open a multi-line traceback.
// Matching one of these seeds the accumulation buffer.
var tracebackStartRe = regexp.MustCompile(
	`^(Traceback \(most recent call last\):|panic: .+|Exception in thread .+)`,
)

// fileRefRe matches the file/line reference lines inside a traceback,
// e.g. `  File "app.py", line 42, in main`.
var fileRefRe = regexp.MustCompile(`^\s+File "[^"]+", line \d+`)

// appIdentityRe matches the structured log-line prefix some applications
// emit, e.g. `[orders-api/2.4.1 pid=3121] ...`. The prefix is stripped
// before pattern matching and its fields are carried into the next event.
var appIdentityRe = regexp.MustCompile(`^\[([\w.-]+)/([\w.-]+) pid=(\d+)\]\s*`)

// builtinTypes is the closed set of exception type names recognized by the
// terminal-line pass. Custom patterns extend this set at runtime.
var builtinTypes = []string{
	"ArithmeticError",
	"AssertionError",
	"AttributeError",
	"BrokenPipeError",
	"BufferError",
	"ConnectionError",
	"ConnectionRefusedError",
	"ConnectionResetError",
	"EOFError",
	"FatalError",
	"FileNotFoundError",
	"ImportError",
	"IndexError",
	"IOError",
	"KeyboardInterrupt",
	"KeyError",
	"LookupError",
	"MemoryError",
	"ModuleNotFoundError",
	"NameError",
	"NotImplementedError",
	"OSError",
	"OutOfMemoryError",
	"OverflowError",
	"PermissionError",
	"RecursionError",
	"ReferenceError",
	"RuntimeError",
	"SegmentationFault",
	"StackOverflowError",
	"StopIteration",
	"SystemError",
	"SystemExit",
	"TimeoutError",
	"TypeError",
	"UnicodeDecodeError",
	"UnicodeEncodeError",
	"ValueError",
	"ZeroDivisionError",
}

// criticalTypes always map to CRITICAL severity regardless of pattern name.
var criticalTypes = map[string]bool{
	"FatalError":         true,
	"MemoryError":        true,
	"OutOfMemoryError":   true,
	"SegmentationFault":  true,
	"StackOverflowError": true,
	"SystemError":        true,
}

// terminalRe matches `TypeName: message` lines for the builtin catalogue.
var terminalRe *regexp.Regexp

func init() {
	alt := ""
	for i, name := range builtinTypes {
		if i > 0 {
			alt += "|"
		}
		alt += regexp.QuoteMeta(name)
	}
	terminalRe = regexp.MustCompile(`^(` + alt + `)\s*:\s*(.+)$`)
}
