package importer

import (
	"bufio"
	"io"
	"os"
	"strings"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	tagsPrefix     = "T:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingTags
)

// Draft is one card as parsed from a deck file, before validation and
// dedupe.
type Draft struct {
	Question string
	Answer   string
	Tags     []string
}

// ParseFile reads the deck file at path and extracts all card drafts.
func ParseFile(path string) ([]Draft, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse extracts card drafts from a deck. Cards are blocks of Q:, A: and
// T: sections; a "---" line or the next Q: starts a new card. Section
// bodies may span multiple lines. Drafts without a question are dropped.
func Parse(r io.Reader) ([]Draft, error) {
	scanner := bufio.NewScanner(r)
	var drafts []Draft
	var current Draft
	var block []string
	currentState := seeking

	closeBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingTags:
			current.Tags = splitTags(content)
		}
		block = nil
	}

	finishDraft := func() {
		closeBlock()
		if current.Question != "" {
			drafts = append(drafts, current)
		}
		current = Draft{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishDraft()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			// A new question always starts a new card.
			if currentState != seeking {
				finishDraft()
			}
			currentState = readingQuestion
			block = append(block, sectionBody(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			closeBlock()
			currentState = readingAnswer
			block = append(block, sectionBody(line, answerPrefix))
		case strings.HasPrefix(line, tagsPrefix):
			closeBlock()
			currentState = readingTags
			block = append(block, sectionBody(line, tagsPrefix))
		default:
			if currentState != seeking {
				block = append(block, line)
			}
		}
	}
	finishDraft()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return drafts, nil
}

func sectionBody(line, prefix string) string {
	body := line[len(prefix):]
	return strings.TrimPrefix(body, " ")
}

func splitTags(content string) []string {
	var tags []string
	for _, tag := range strings.Split(content, ",") {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
