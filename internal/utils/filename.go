package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var filenameStripRe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "AUX": {}, "COM1": {}, "COM2": {}, "COM3": {}, "COM4": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "PRN": {}, "NUL": {},
}

// SecureFilename приводит имя файла к безопасному виду: только ASCII,
// без разделителей пути, пробелы заменены на "_", без ведущих и
// завершающих "." и "_". Может вернуть пустую строку.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = filenameStripRe.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name != "" {
		base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
		if _, ok := windowsDeviceNames[base]; ok {
			name = "_" + name
		}
	}

	return name
}

// Extension возвращает расширение в нижнем регистре без точки
// или пустую строку, если точки в имени нет
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// AllowedFile проверяет расширение файла по списку разрешенных
func AllowedFile(name string, allowed map[string]struct{}) bool {
	ext := Extension(name)
	if ext == "" {
		return false
	}
	_, ok := allowed[ext]
	return ok
}

// ValidName проверяет, что имя папки или файла из запроса является
// одним сегментом пути
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
