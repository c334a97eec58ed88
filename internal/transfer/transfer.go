// Package transfer streams files to and from a serial port.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ChunkSize is the largest piece handed to a single read or write.
const ChunkSize = 4096

// Progress is told about every chunk moved and the running total.
type Progress func(chunk int, total int64)

// Send copies src to dst until src is exhausted. Short writes are continued
// with the remainder of the chunk; a write that makes no progress is an
// error. ctx is checked between chunks.
func Send(ctx context.Context, dst io.Writer, src io.Reader, progress Progress) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			written, err := WriteAll(ctx, dst, buf[:n])
			total += int64(written)
			if written > 0 && progress != nil {
				progress(written, total)
			}
			if err != nil {
				return total, err
			}
		}

		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, fmt.Errorf("reading input: %w", readErr)
		}
	}
}

// WriteAll writes chunk to dst, continuing short writes with the remainder.
// A write that makes no progress fails with io.ErrShortWrite.
func WriteAll(ctx context.Context, dst io.Writer, chunk []byte) (int, error) {
	written := 0
	for written < len(chunk) {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := dst.Write(chunk[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
	}
	return written, nil
}

// Receive copies src to dst until ctx is cancelled or src fails. Reads that
// time out with no data are not errors and are not reported. io.EOF from src
// ends the copy without error.
//
// Cancellation is only noticed between reads, so src should return
// periodically, as a port with a read timeout does.
func Receive(ctx context.Context, dst io.Writer, src io.Reader, progress Progress) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			written, err := dst.Write(buf[:n])
			total += int64(written)
			if err != nil {
				return total, fmt.Errorf("writing output: %w", err)
			}
			if written != n {
				return total, fmt.Errorf("writing output: %w", io.ErrShortWrite)
			}
			if progress != nil {
				progress(n, total)
			}
		}

		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}
