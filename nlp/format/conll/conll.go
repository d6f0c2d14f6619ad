// Package conll reads and writes CoNLL-X files.
// For a description see http://ilk.uvt.nl/conll/#dataformat
package conll

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dense/alg/graph"
	"dense/nlp/parser/dependency"
	nlp "dense/nlp/types"
	"dense/util"
)

const (
	FIELD_SEPARATOR = "\t"
	NUM_FIELDS      = 10
	EMPTY_FIELD     = "_"

	// longest line accepted by the reader
	MAX_LINE_BYTES = 1 << 20
)

var ErrMalformedRow = errors.New("malformed CoNLL row")

// A Row is a single parsed row of a conll data set. PHead and PDepRel hold
// the projective (here: predicted) head and relation columns. A Head or
// PHead of -1 and an empty string mean the column is empty.
type Row struct {
	ID      int
	Form    string
	Lemma   string
	CPosTag string
	PosTag  string
	FeatStr string
	Head    int
	DepRel  string
	PHead   int
	PDepRel string
}

func formatString(value string) string {
	if value == "" {
		return EMPTY_FIELD
	}
	return value
}

func formatOptionalInt(value int) string {
	if value < 0 {
		return EMPTY_FIELD
	}
	return strconv.Itoa(value)
}

func (r Row) String() string {
	fields := []string{
		strconv.Itoa(r.ID),
		r.Form,
		formatString(r.Lemma),
		formatString(r.CPosTag),
		formatString(r.PosTag),
		formatString(r.FeatStr),
		formatOptionalInt(r.Head),
		formatString(r.DepRel),
		formatOptionalInt(r.PHead),
		formatString(r.PDepRel),
	}
	return strings.Join(fields, FIELD_SEPARATOR)
}

// A Sentence is the ordered list of rows of one sentence; row i has ID i+1.
type Sentence []Row

type Sentences []Sentence

// Heads returns the HEAD column indexed by token, with graph.NoHead for
// the ROOT slot at index 0.
func (s Sentence) Heads() []int {
	heads := make([]int, len(s)+1)
	heads[0] = graph.NoHead
	for i, row := range s {
		heads[i+1] = row.Head
	}
	return heads
}

// Validate fails when a HEAD field is empty or the HEAD column does not
// form a tree.
func (s Sentence) Validate(singleRoot bool) error {
	for i, row := range s {
		if row.Head < 0 {
			return fmt.Errorf("%w: token %d has an empty HEAD field", ErrMalformedRow, i+1)
		}
	}
	return dependency.Validate(s.Heads(), singleRoot)
}

func ParseOptionalInt(value string) (int, error) {
	if value == EMPTY_FIELD {
		return -1, nil
	}
	i, err := strconv.ParseInt(value, 10, 0)
	return int(i), err
}

func ParseString(value string) string {
	if value == EMPTY_FIELD {
		return ""
	}
	return value
}

func ParseRow(record []string) (Row, error) {
	var row Row
	if len(record) != NUM_FIELDS {
		return row, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, NUM_FIELDS, len(record))
	}
	id, err := strconv.Atoi(record[0])
	if err != nil {
		return row, fmt.Errorf("%w: error parsing ID field (%s): %s", ErrMalformedRow, record[0], err.Error())
	}
	row.ID = id

	// "_" is a legal token, so FORM is taken verbatim
	if record[1] == "" {
		return row, fmt.Errorf("%w: empty FORM field", ErrMalformedRow)
	}
	row.Form = record[1]
	row.Lemma = ParseString(record[2])

	row.CPosTag = ParseString(record[3])
	row.PosTag = ParseString(record[4])
	if row.CPosTag == "" && row.PosTag == "" {
		return row, fmt.Errorf("%w: empty CPOSTAG and POSTAG fields", ErrMalformedRow)
	}
	if row.CPosTag == "" {
		row.CPosTag = row.PosTag
	}
	if row.PosTag == "" {
		row.PosTag = row.CPosTag
	}
	row.FeatStr = ParseString(record[5])

	// empty HEAD is kept as -1; gold input rejects it in Validate
	head, err := ParseOptionalInt(record[6])
	if err != nil {
		return row, fmt.Errorf("%w: error parsing HEAD field (%s): %s", ErrMalformedRow, record[6], err.Error())
	}
	row.Head = head
	row.DepRel = ParseString(record[7])

	phead, err := ParseOptionalInt(record[8])
	if err != nil {
		return row, fmt.Errorf("%w: error parsing PHEAD field (%s): %s", ErrMalformedRow, record[8], err.Error())
	}
	row.PHead = phead
	row.PDepRel = ParseString(record[9])
	return row, nil
}

// Read parses sentences separated by blank lines, stopping after limit
// sentences when limit > 0. Any malformed line fails the whole read; the
// error names the line. Tree validity is checked by Sentence.Validate.
func Read(reader io.Reader, limit int) (Sentences, error) {
	var (
		sentences Sentences
		current   Sentence
		lineNum   int
	)
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), MAX_LINE_BYTES)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				sentences = append(sentences, current)
				current = nil
				if limit > 0 && len(sentences) >= limit {
					return sentences, nil
				}
			}
			continue
		}
		if strings.HasPrefix(line, "#") && len(current) == 0 {
			continue
		}
		row, err := ParseRow(strings.Split(line, FIELD_SEPARATOR))
		if err != nil {
			return nil, fmt.Errorf("line %d (sentence %d): %w", lineNum, len(sentences)+1, err)
		}
		if row.ID != len(current)+1 {
			return nil, fmt.Errorf("line %d (sentence %d): %w: expected ID %d, got %d", lineNum, len(sentences)+1, ErrMalformedRow, len(current)+1, row.ID)
		}
		current = append(current, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failure reading CoNLL input at line %d: %w", lineNum, err)
	}
	if len(current) > 0 {
		sentences = append(sentences, current)
	}
	return sentences, nil
}

func ReadFile(filename string, limit int) (Sentences, error) {
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

// ReadGoldFile is ReadFile followed by tree validation of every sentence.
func ReadGoldFile(filename string, limit int, singleRoot bool) (Sentences, error) {
	sents, err := ReadFile(filename, limit)
	if err != nil {
		return nil, err
	}
	for i, sent := range sents {
		if err := sent.Validate(singleRoot); err != nil {
			return nil, fmt.Errorf("%s: sentence %d: %w", filename, i+1, err)
		}
	}
	return sents, nil
}

func Write(writer io.Writer, sents Sentences) error {
	w := bufio.NewWriter(writer)
	for _, sent := range sents {
		for _, row := range sent {
			if _, err := w.WriteString(row.String() + "\n"); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

func WriteFile(filename string, sents Sentences) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(file, sents)
}

// Graph2Conll renders a tree; tokens without an arc get head 0 and an
// empty relation.
func Graph2Conll(g nlp.LabeledDependencyGraph) Sentence {
	sent := make(Sentence, 0, g.NumberOfNodes())
	for i := 1; i < g.NumberOfNodes(); i++ {
		node := g.GetNode(i)
		if node == nil {
			panic("Can't find node")
		}
		row := Row{
			ID:    i,
			Form:  node.String(),
			Head:  0,
			PHead: -1,
		}
		if tagged, ok := node.(*dependency.TaggedDepNode); ok {
			row.CPosTag, row.PosTag = tagged.RawPOS, tagged.RawPOS
		}
		if arc := g.GetLabeledArc(i); arc != nil {
			row.Head = arc.GetHead()
			row.DepRel = string(arc.GetRelation())
		}
		sent = append(sent, row)
	}
	return sent
}

// Relabel renders g over the rows of the sentence it was built from: every
// column but HEAD and DEPREL is taken from sent.
func Relabel(sent Sentence, g nlp.LabeledDependencyGraph) (Sentence, error) {
	pred := Graph2Conll(g)
	if len(pred) != len(sent) {
		return nil, fmt.Errorf("graph has %d tokens, sentence %d", len(pred), len(sent))
	}
	for i, row := range sent {
		row.Head, row.DepRel = pred[i].Head, pred[i].DepRel
		row.PHead, row.PDepRel = -1, ""
		pred[i] = row
	}
	return pred, nil
}

func Graph2ConllCorpus(corpus []*dependency.BasicDepGraph) Sentences {
	sentCorpus := make(Sentences, len(corpus))
	for i, g := range corpus {
		sentCorpus[i] = Graph2Conll(g)
	}
	return sentCorpus
}

// Compare lays gold and predicted analyses of the same sentence side by
// side: gold in HEAD/DEPREL, prediction in PHEAD/PDEPREL.
func Compare(gold, pred Sentence) (Sentence, error) {
	if len(gold) != len(pred) {
		return nil, fmt.Errorf("gold has %d tokens, prediction %d", len(gold), len(pred))
	}
	sent := make(Sentence, len(gold))
	for i, row := range gold {
		if row.Form != pred[i].Form {
			return nil, fmt.Errorf("token %d differs: gold %q, prediction %q", i+1, row.Form, pred[i].Form)
		}
		row.PHead = pred[i].Head
		row.PDepRel = pred[i].DepRel
		sent[i] = row
	}
	return sent, nil
}

func CompareCorpus(gold, pred Sentences) (Sentences, error) {
	if len(gold) != len(pred) {
		return nil, fmt.Errorf("gold has %d sentences, prediction %d", len(gold), len(pred))
	}
	corpus := make(Sentences, len(gold))
	for i := range gold {
		sent, err := Compare(gold[i], pred[i])
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
		corpus[i] = sent
	}
	return corpus, nil
}

// FromTagged makes an unparsed sentence out of tagged tokens: every token
// attaches to ROOT with no relation.
func FromTagged(sent nlp.TaggedSentence) Sentence {
	tokens := sent.TaggedTokens()
	rows := make(Sentence, len(tokens))
	for i, token := range tokens {
		rows[i] = Row{
			ID:      i + 1,
			Form:    token.Token,
			CPosTag: token.POS,
			PosTag:  token.POS,
			PHead:   -1,
		}
	}
	return rows
}

func lookupOrAdd(e *util.EnumSet, value string) int {
	if e.Frozen {
		return e.Lookup(value)
	}
	id, _ := e.Add(value)
	return id
}

// Conll2Nodes converts the tokens of a sentence, ROOT first. Enum sets that
// are not frozen grow; frozen ones map unseen values to UNK.
func Conll2Nodes(sent Sentence, eWord, ePOS *util.EnumSet) []nlp.DepNode {
	nodes := make([]nlp.DepNode, 0, len(sent)+1)
	nodes = append(nodes, &dependency.TaggedDepNode{
		Id:       0,
		Token:    util.ROOT_ID,
		POS:      util.ROOT_ID,
		RawToken: nlp.ROOT_TOKEN,
		RawPOS:   nlp.ROOT_POS,
	})
	for i, row := range sent {
		nodes = append(nodes, &dependency.TaggedDepNode{
			Id:       i + 1,
			Token:    lookupOrAdd(eWord, row.Form),
			POS:      lookupOrAdd(ePOS, row.CPosTag),
			RawToken: row.Form,
			RawPOS:   row.CPosTag,
		})
	}
	return nodes
}

// Conll2Graph converts a gold sentence. The relation set must already hold
// every DEPREL of the sentence.
func Conll2Graph(sent Sentence, eWord, ePOS, eRel *util.EnumSet) (*dependency.BasicDepGraph, error) {
	return conll2Graph(sent, eWord, ePOS, eRel, false)
}

// Conll2HeldOutGraph converts a gold sentence of an evaluation set. A
// DEPREL outside the relation set gets dependency.NoRelation and keeps its
// raw value on the arc.
func Conll2HeldOutGraph(sent Sentence, eWord, ePOS, eRel *util.EnumSet) *dependency.BasicDepGraph {
	g, _ := conll2Graph(sent, eWord, ePOS, eRel, true)
	return g
}

func conll2Graph(sent Sentence, eWord, ePOS, eRel *util.EnumSet, heldOut bool) (*dependency.BasicDepGraph, error) {
	nodes := Conll2Nodes(sent, eWord, ePOS)
	labels := make([]int, len(nodes))
	for i, row := range sent {
		index, exists := eRel.IndexOf(row.DepRel)
		switch {
		case exists:
			labels[i+1] = index
		case heldOut:
			labels[i+1] = dependency.NoRelation
		default:
			return nil, fmt.Errorf("token %d: unknown relation %q", i+1, row.DepRel)
		}
	}
	g := dependency.NewBasicDepGraph(nodes, sent.Heads(), labels, eRel)
	for i, row := range sent {
		if labels[i+1] == dependency.NoRelation {
			g.Arcs[i+1].RawRelation = nlp.DepRel(row.DepRel)
		}
	}
	return g, nil
}

func Conll2GraphCorpus(corpus Sentences, eWord, ePOS, eRel *util.EnumSet) ([]*dependency.BasicDepGraph, error) {
	graphCorpus := make([]*dependency.BasicDepGraph, len(corpus))
	for i, sent := range corpus {
		g, err := Conll2Graph(sent, eWord, ePOS, eRel)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
		graphCorpus[i] = g
	}
	return graphCorpus, nil
}

func Conll2HeldOutGraphCorpus(corpus Sentences, eWord, ePOS, eRel *util.EnumSet) []*dependency.BasicDepGraph {
	graphCorpus := make([]*dependency.BasicDepGraph, len(corpus))
	for i, sent := range corpus {
		graphCorpus[i] = Conll2HeldOutGraph(sent, eWord, ePOS, eRel)
	}
	return graphCorpus
}

// Relations lists the distinct DEPREL values of a corpus in order of first
// appearance.
func Relations(corpus Sentences) []string {
	seen := make(map[string]bool)
	var relations []string
	for _, sent := range corpus {
		for _, row := range sent {
			if !seen[row.DepRel] {
				seen[row.DepRel] = true
				relations = append(relations, row.DepRel)
			}
		}
	}
	return relations
}
