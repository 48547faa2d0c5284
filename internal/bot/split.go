package bot

// SplitMessage cuts text into ordered contiguous chunks of at most limit
// runes, matching the transport's per-message size ceiling. Splitting on
// runes rather than bytes keeps multi-byte characters intact.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) == 0 {
		return []string{text}
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	chunks := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
