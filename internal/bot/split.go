package bot

// messageLimit is the messaging platform's maximum text length per
// message, in runes.
const messageLimit = 4096

// splitMessage cuts text into successive pieces of at most limit runes.
// Concatenating the pieces reproduces the original string.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	pieces := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[start:end]))
	}
	return pieces
}
