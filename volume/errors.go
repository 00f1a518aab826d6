package volume

import "fmt"

// Code is one of the archive engine's error codes. SUCCESS is never wrapped
// in an Error; it is represented as a nil error in Go.
type Code int

const (
	CodeGeneric            Code = -1
	CodeBadPath            Code = -2
	CodeFileNotFound       Code = -3
	CodeEndOfFile          Code = -4
	CodeNoMoreFiles        Code = -5
	CodeBadOffset          Code = -6
	CodeDirectoryNotEmpty  Code = -7
	CodeAlreadyExists      Code = -8
	CodeIOError            Code = -9
	CodeOutOfMemory        Code = -10
	CodeReadOnly           Code = -11
	CodeCorruptVolume      Code = -12
	CodeInsufficientSpace  Code = -13
	CodeSharingViolation   Code = -14
	CodeCompressorNotFound Code = -15
	CodeCompressorError    Code = -16
)

var codeNames = map[Code]string{
	CodeGeneric:            "generic error",
	CodeBadPath:            "bad path",
	CodeFileNotFound:       "file not found",
	CodeEndOfFile:          "end of file",
	CodeNoMoreFiles:        "no more files",
	CodeBadOffset:          "bad offset",
	CodeDirectoryNotEmpty:  "directory not empty",
	CodeAlreadyExists:      "already exists",
	CodeIOError:            "i/o error",
	CodeOutOfMemory:        "out of memory",
	CodeReadOnly:           "read-only volume",
	CodeCorruptVolume:      "corrupt volume",
	CodeInsufficientSpace:  "insufficient space",
	CodeSharingViolation:   "sharing violation",
	CodeCompressorNotFound: "compressor not found",
	CodeCompressorError:    "compressor error",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error %d", int(c))
}

// Error wraps one of the archive engine's error codes, optionally with a
// wrapped cause (usually an I/O adapter error or a decode failure).
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fif: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("fif: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers compare against a code via errors.Is(err, Sentinel(CodeX)):
// any *Error target with a matching Code matches.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(op string, code Code, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// Sentinel returns a comparable *Error for a bare code, for use with
// errors.Is(err, volume.Sentinel(volume.CodeFileNotFound)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}
