package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed words/*.txt
var wordFiles embed.FS

// DefaultWords loads the embedded word lists, one word per line, skipping
// blanks and comments. Duplicates across lists are collapsed.
func DefaultWords() ([]string, error) {
	seen := make(map[string]struct{})
	var words []string

	entries, err := fs.Glob(wordFiles, "words/*.txt")
	if err != nil {
		return nil, err
	}
	for _, path := range entries {
		f, err := wordFiles.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			word = strings.ToLower(word)
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
		}
		if err := scanner.Err(); err != nil {
			_ = f.Close()
			return nil, err
		}
		_ = f.Close()
	}
	return words, nil
}
