// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package wttr

import (
	"errors"
	"strings"
)

// MaxLocationLen is the longest location name in bytes that BuildPath accepts.
const MaxLocationLen = 256

var (
	ErrEmptyLocation   = errors.New("location must not be empty")
	ErrLocationTooLong = errors.New("location exceeds maximum length")
)

// BuildPath turns a free-text location name into a wttr.in request path. The result is
// the location prefixed with a slash and with every space replaced by a plus sign. No
// other escaping takes place.
func BuildPath(location string) (string, error) {
	return buildPath(location, MaxLocationLen)
}

func buildPath(location string, maxLen int) (string, error) {
	if len(location) == 0 {
		return "", ErrEmptyLocation
	}
	if len(location) > maxLen {
		return "", ErrLocationTooLong
	}
	return "/" + strings.ReplaceAll(location, " ", "+"), nil
}
