package bootimg

import "errors"

// Error kinds from spec.md §7. These are sentinels, not a type hierarchy,
// matching the teacher's preference for package-level errors.New values
// (see the old payload.go's badPayload, cpio/cpio.go's bad-magic error).
// Use errors.Is against these, or errors.Unwrap to reach the underlying
// cause wrapped by %w where one exists.
var (
	// ErrBadMagic: header prefix is not "ANDROID!". Fatal unless Force.
	ErrBadMagic = errors.New("bootimg: bad magic")

	// ErrShortRead: fewer bytes read than requested.
	ErrShortRead = errors.New("bootimg: short read")

	// ErrFieldParse: a malformed fixed-width field; the field is zeroed.
	ErrFieldParse = errors.New("bootimg: malformed header field")

	// ErrOverrun: offset+size exceeds the file size.
	ErrOverrun = errors.New("bootimg: payload overruns file")

	// ErrLayoutCollision: repack planner produced a negative gap. Fatal.
	ErrLayoutCollision = errors.New("bootimg: layout collision")

	// ErrTimedOut: a watchdog-guarded phase exceeded its deadline.
	ErrTimedOut = errors.New("bootimg: timed out")

	// ErrRenameFailed: temp-to-final rename exhausted its retries.
	ErrRenameFailed = errors.New("bootimg: rename failed")

	// ErrArchiverUnavailable: no cpio tool/library is usable.
	ErrArchiverUnavailable = errors.New("bootimg: archiver unavailable")

	// ErrArchiverError: the archiver ran but failed.
	ErrArchiverError = errors.New("bootimg: archiver failed")

	// ErrCodecUnavailable: a compression backend is absent at runtime.
	ErrCodecUnavailable = errors.New("bootimg: compression codec unavailable")
)
