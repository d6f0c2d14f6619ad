// Package taggedsentence reads POS tagged sentences, one sentence per line
// with space separated word/TAG tokens. A token may itself contain '/'; the
// tag is whatever follows the last one.
package taggedsentence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	nlp "dense/nlp/types"
)

func ParseToken(value string) (nlp.TaggedToken, error) {
	sep := strings.LastIndex(value, "/")
	if sep <= 0 || sep == len(value)-1 {
		return nlp.TaggedToken{}, fmt.Errorf("untagged token %q", value)
	}
	return nlp.TaggedToken{Token: value[:sep], POS: value[sep+1:]}, nil
}

func Read(reader io.Reader, limit int) ([]nlp.TaggedSentence, error) {
	var (
		sentences []nlp.TaggedSentence
		lineNum   int
	)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		sent := make(nlp.BasicETaggedSentence, len(fields))
		for j, field := range fields {
			token, err := ParseToken(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNum, err)
			}
			sent[j] = nlp.EnumTaggedToken{TaggedToken: token}
		}
		sentences = append(sentences, sent)
		if limit > 0 && len(sentences) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sentences, nil
}

func ReadFile(filename string, limit int) ([]nlp.TaggedSentence, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	sents, err := Read(file, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return sents, nil
}
