// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package wttr

// Report is a fetched weather report. The underlying buffer is one byte longer than the
// text and always ends in a NUL byte so it can be handed to C-string consumers as is.
//
// A nil *Report means no report is available, which is different from an empty report.
type Report struct {
	buf []byte
}

// newReport wraps buf, which must hold the text followed by one spare byte.
func newReport(buf []byte) *Report {
	buf[len(buf)-1] = 0
	return &Report{buf: buf}
}

// Len returns the length of the report text in bytes.
func (r *Report) Len() int {
	if r == nil || len(r.buf) == 0 {
		return 0
	}
	return len(r.buf) - 1
}

// Bytes returns the report text without the NUL terminator.
func (r *Report) Bytes() []byte {
	if r == nil || len(r.buf) == 0 {
		return nil
	}
	return r.buf[:r.Len()]
}

// CString returns the report text including the NUL terminator.
func (r *Report) CString() []byte {
	if r == nil {
		return nil
	}
	return r.buf
}

func (r *Report) String() string {
	return string(r.Bytes())
}

// Released reports whether Release has been called.
func (r *Report) Released() bool {
	return r == nil || r.buf == nil
}

// Release zeroes the buffer and drops it. It is safe to call on a nil Report and more
// than once.
func (r *Report) Release() {
	if r == nil || r.buf == nil {
		return
	}
	clear(r.buf)
	r.buf = nil
}
