// Package downloader stages downloads under collision-free names.
package downloader

import (
	"context"
	"fmt"
	"io"
	"os"

	errs "moodlescraper/pkg/errors"
	"moodlescraper/pkg/logger"
	"moodlescraper/pkg/sanitize"
	"moodlescraper/pkg/staging"
	"moodlescraper/pkg/transfer"
)

// DefaultMaxAttempts is the number of candidate names tried before the
// desired name is overwritten
const DefaultMaxAttempts = 64

// Resolver downloads one file at a time into the staging area
type Resolver struct {
	area        *staging.Area
	opener      transfer.Opener
	maxAttempts int
	logger      logger.Logger
	onWarning   func(message string)
}

// NewResolver creates a resolver. maxAttempts counts the bare name, so
// names "<desired> (1)" through "<desired> (maxAttempts-1)" are tried after it.
func NewResolver(area *staging.Area, opener transfer.Opener, maxAttempts int, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Resolver{
		area:        area,
		opener:      opener,
		maxAttempts: maxAttempts,
		logger:      log.WithField("component", "resolver"),
	}
}

// OnWarning registers fn to receive conditions the user should see, such as
// an overwritten file
func (r *Resolver) OnWarning(fn func(message string)) {
	r.onWarning = fn
}

// Resolve downloads address into the staging area and returns the name it
// was stored under. The first free name among desired, "desired (1)", ...
// is used. When every candidate is taken the desired name is overwritten.
// An empty desired name falls back to the last segment of the address.
func (r *Resolver) Resolve(ctx context.Context, address, desired string) (string, error) {
	if err := r.area.AwaitIdle(ctx); err != nil {
		return "", err
	}

	if !sanitize.Usable(desired) {
		desired = sanitize.FallbackName(address)
	}
	if !sanitize.Usable(desired) {
		return "", errs.New(errs.ErrorTypeNaming, fmt.Sprintf("no usable file name for %s", address))
	}
	if err := r.area.Ensure(); err != nil {
		return "", err
	}

	stream, err := r.opener.OpenStream(ctx, address)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	name, reserved, err := r.reserve(desired)
	if err != nil {
		return "", err
	}

	if err := r.write(ctx, name, stream); err != nil {
		if reserved {
			r.area.Fs().Remove(r.area.Path(name))
		}
		return "", errs.Transfer(address, 0, err)
	}

	if name != desired {
		r.logger.DebugWithFields("Name taken, staged under a numbered name", map[string]interface{}{
			"desired": desired,
			"name":    name,
		})
	}
	return name, nil
}

// reserve claims the first free candidate name with an exclusive create.
// reserved is false when every candidate collided and desired is reused.
func (r *Resolver) reserve(desired string) (name string, reserved bool, err error) {
	fs := r.area.Fs()
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		candidate := candidateName(desired, attempt)
		f, err := fs.OpenFile(r.area.Path(candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return candidate, true, nil
		}
		if !os.IsExist(err) {
			return "", false, fmt.Errorf("failed to reserve %s: %w", candidate, err)
		}
	}

	r.logger.WarnWithFields("All candidate names taken, overwriting", map[string]interface{}{
		"name":     desired,
		"attempts": r.maxAttempts,
	})
	if r.onWarning != nil {
		r.onWarning(fmt.Sprintf("all %d names for %s were taken, overwrote %s", r.maxAttempts, desired, desired))
	}
	return desired, false, nil
}

// write streams into the in-progress path, then renames onto name
func (r *Resolver) write(ctx context.Context, name string, stream io.Reader) error {
	fs := r.area.Fs()
	partial := r.area.InProgressPath(name)

	f, err := fs.OpenFile(partial, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", partial, err)
	}

	_, copyErr := io.Copy(f, &contextReader{ctx: ctx, r: stream})
	closeErr := f.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		fs.Remove(partial)
		return copyErr
	}

	if err := fs.Rename(partial, r.area.Path(name)); err != nil {
		fs.Remove(partial)
		return fmt.Errorf("failed to finalize %s: %w", name, err)
	}
	return nil
}

func candidateName(desired string, attempt int) string {
	if attempt == 0 {
		return desired
	}
	return fmt.Sprintf("%s (%d)", desired, attempt)
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
