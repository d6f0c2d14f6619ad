package types

import (
	"reflect"

	"dense/util"
)

const (
	ROOT_TOKEN = util.ROOT_SYMBOL
	ROOT_POS   = util.ROOT_SYMBOL
)

type TaggedToken struct {
	Token, POS string
}

type EnumTaggedToken struct {
	TaggedToken
	EToken, EPOS int
}

type Sentence interface {
	util.Equaler
	Tokens() []string
}

type TaggedSentence interface {
	Sentence
	TaggedTokens() []TaggedToken
}

type EnumTaggedSentence interface {
	TaggedSentence
	EnumTaggedTokens() []EnumTaggedToken
}

// A BasicETaggedSentence holds the real tokens of a sentence; the synthetic
// ROOT is not part of it.
type BasicETaggedSentence []EnumTaggedToken

var _ EnumTaggedSentence = BasicETaggedSentence{}

func (b BasicETaggedSentence) Tokens() []string {
	tokens := make([]string, len(b))
	for i, token := range b {
		tokens[i] = token.Token
	}
	return tokens
}

func (b BasicETaggedSentence) TaggedTokens() []TaggedToken {
	tokens := make([]TaggedToken, len(b))
	for i, token := range b {
		tokens[i] = token.TaggedToken
	}
	return tokens
}

func (b BasicETaggedSentence) EnumTaggedTokens() []EnumTaggedToken {
	return []EnumTaggedToken(b)
}

func (b BasicETaggedSentence) Equal(otherEq util.Equaler) bool {
	asTagged, ok := otherEq.(BasicETaggedSentence)
	return ok && reflect.DeepEqual(b, asTagged)
}
