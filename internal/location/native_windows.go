//go:build windows

package location

const nativeSeparator = '\\'
