package pathutils

import (
	"strings"
	"unicode"
)

const (
	fileNameReplacementConstant = "_"
	invalidFileNameCharacters   = `<>:"/\|?*`
	trailingFileNameTrimSet     = ". "
)

var reservedDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFileName turns an arbitrary display name (a project or work item type name) into a single path
// segment that is valid on every platform. Characters Windows rejects become underscores, trailing dots and
// spaces are removed, and reserved device names gain an underscore suffix. An unusable name yields "_".
func SanitizeFileName(name string) string {
	var builder strings.Builder
	for _, character := range strings.TrimSpace(name) {
		if unicode.IsControl(character) || strings.ContainsRune(invalidFileNameCharacters, character) {
			builder.WriteString(fileNameReplacementConstant)
			continue
		}
		builder.WriteRune(character)
	}

	sanitized := strings.TrimRight(builder.String(), trailingFileNameTrimSet)
	if len(sanitized) == 0 {
		return fileNameReplacementConstant
	}

	baseName := sanitized
	if extensionIndex := strings.Index(sanitized, "."); extensionIndex >= 0 {
		baseName = sanitized[:extensionIndex]
	}
	if _, reserved := reservedDeviceNames[strings.ToUpper(baseName)]; reserved {
		return baseName + fileNameReplacementConstant + sanitized[len(baseName):]
	}
	return sanitized
}
