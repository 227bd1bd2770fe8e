package config

import (
	"bufio"
	"bytes"
	"os"
	"strings"
)

// LoadRooms reads a line-oriented room list:
//
//	# comment
//	salle1 = A101
//	salle2=B202
//
// Blank lines and lines starting with '#' are skipped, as are lines without
// '=' or with an empty value. Keys are ignored; order of appearance is kept.
func LoadRooms(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRooms(data), nil
}

// ParseRooms is LoadRooms without the file.
func ParseRooms(data []byte) []string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	rooms := []string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		rooms = append(rooms, value)
	}
	return rooms
}
