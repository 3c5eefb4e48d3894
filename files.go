/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var errBadPhoto = errors.New("stored photo is not a base64 data URI")

func humanReadableSize(bytes int64) string {
	const unit int64 = 1000
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		float64(bytes)/float64(div),
		"kMGTPE"[exp])
}

// photoBytes splits a stored data URI into its content type and raw bytes.
func photoBytes(uri string) (string, []byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return "", nil, errBadPhoto
	}

	contentType, ok := strings.CutPrefix(header, "data:")
	if !ok {
		return "", nil, errBadPhoto
	}
	contentType, ok = strings.CutSuffix(contentType, ";base64")
	if !ok || !strings.HasPrefix(contentType, "image/") {
		return "", nil, errBadPhoto
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errBadPhoto, err)
	}

	return contentType, data, nil
}
