package services

import (
	"sort"
	"strings"
)

const maxChunkTopics = 20

// buildChunkTopics folds the document's own topics, its crops, and the
// source's tags into one normalized topic list.
func buildChunkTopics(topicGroups ...[]string) []string {
	set := make(map[string]struct{})
	for _, group := range topicGroups {
		addTopics(set, group...)
	}
	return topicsToSlice(set, maxChunkTopics)
}

func addTopics(set map[string]struct{}, topics ...string) {
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
}

func topicsToSlice(set map[string]struct{}, limit int) []string {
	result := make([]string, 0, len(set))
	for k := range set {
		result = append(result, k)
	}
	sort.Strings(result)
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// splitContent cuts a document into chunks of at most maxTokens each,
// preferring paragraph boundaries and falling back to sentence
// boundaries for paragraphs that are themselves too long. A chunk is
// never empty and the original text survives concatenation apart from
// the boundary whitespace.
func splitContent(content string, maxTokens int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if EstimateTokens(content) <= maxTokens {
		return []string{content}
	}

	chunks := []string{}
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		pieces := []string{paragraph}
		if EstimateTokens(paragraph) > maxTokens {
			pieces = splitSentences(paragraph)
		}

		for _, piece := range pieces {
			if current.Len() > 0 && EstimateTokens(current.String()+"\n\n"+piece) > maxTokens {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(piece)
		}
	}
	flush()

	return chunks
}

func splitSentences(paragraph string) []string {
	sentences := []string{}
	start := 0
	for i, r := range paragraph {
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(paragraph[start : i+1])
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(paragraph[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
