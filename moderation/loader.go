package moderation

import (
	"bufio"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed wordlists/*.txt
var wordlistsFS embed.FS

// DefaultWords returns the embedded word lists merged and deduplicated.
func DefaultWords() ([]string, error) {
	return LoadWords(wordlistsFS, "wordlists")
}

// LoadWords reads every .txt file under dir: one word or phrase per line,
// blank lines and '#' comments skipped. The merged list is lowercased,
// deduplicated and sorted so automaton construction is deterministic.
func LoadWords(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		file, err := fsys.Open(path.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.ToLower(strings.TrimSpace(scanner.Text()))
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			seen[word] = struct{}{}
		}
		err = scanner.Err()
		_ = file.Close()
		if err != nil {
			return nil, err
		}
	}

	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	sort.Strings(words)
	return words, nil
}
