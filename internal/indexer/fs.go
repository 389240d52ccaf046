package indexer

import "os"

// readFile is the indexer's sole filesystem read path, kept as a one-line
// seam so tests can swap in an in-memory project tree later if needed.
func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
