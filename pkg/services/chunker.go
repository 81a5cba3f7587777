package services

import "strings"

// SplitWords splits content into overlapping word-based chunks. chunkSize
// and overlap are word counts; consecutive chunks share overlap words so a
// sentence straddling a boundary stays retrievable. Whitespace runs collapse
// to single spaces in the output.
func SplitWords(content string, chunkSize, overlap int) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = 300
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	step := chunkSize - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
