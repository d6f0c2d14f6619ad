package util

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sync"
)

// Reserved entries present at the start of every vocabulary built by
// NewVocabulary, in this order.
const (
	PAD_SYMBOL  = "<PAD>"
	UNK_SYMBOL  = "<UNK>"
	ROOT_SYMBOL = "<ROOT>"

	PAD_ID, UNK_ID, ROOT_ID = 0, 1, 2
)

// An EnumSet is a bijection between strings and dense integer ids. It is
// built once from training data, then Frozen; a frozen set maps unseen
// strings to UNK_ID when it was created with NewVocabulary.
type EnumSet struct {
	mu     sync.RWMutex
	Enum   map[string]int
	Index  []string
	Frozen bool
	HasUNK bool
}

// RebuildIndex restores Index from Enum. The ids of Enum must be exactly
// 0..len(Enum)-1.
func (e *EnumSet) RebuildIndex() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Index = make([]string, len(e.Enum))
	filled := make([]bool, len(e.Enum))
	for k, v := range e.Enum {
		if v < 0 || v >= len(e.Index) || filled[v] {
			return fmt.Errorf("enum value %q has invalid id %d", k, v)
		}
		e.Index[v], filled[v] = k, true
	}
	return nil
}

// Add returns the id of value, adding it when new. The boolean is true if
// the value was added.
func (e *EnumSet) Add(value string) (int, bool) {
	if e.Frozen {
		panic("Cannot add value to frozen enum set")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	enum, exists := e.Enum[value]
	if exists {
		return enum, false
	}
	enum = len(e.Index)
	e.Enum[value] = enum
	e.Index = append(e.Index, value)
	return enum, true
}

func (e *EnumSet) IndexOf(value string) (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	enum, exists := e.Enum[value]
	return enum, exists
}

// Lookup is IndexOf with the UNK fallback for vocabularies.
func (e *EnumSet) Lookup(value string) int {
	if enum, exists := e.IndexOf(value); exists {
		return enum
	}
	if e.HasUNK {
		return UNK_ID
	}
	panic(fmt.Sprintf("Unknown value %q in enum set without UNK", value))
}

func (e *EnumSet) ValueOf(index int) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if index < 0 || len(e.Index) <= index {
		panic("Unknown index requested: " + fmt.Sprintf("%v of %v", index, len(e.Index)))
	}
	return e.Index[index]
}

func (e *EnumSet) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.Index)
}

func (e *EnumSet) Freeze() {
	e.Frozen = true
}

func (e *EnumSet) Equal(other *EnumSet) bool {
	if e.Len() != other.Len() || e.HasUNK != other.HasUNK {
		return false
	}
	for i := 0; i < e.Len(); i++ {
		if e.ValueOf(i) != other.ValueOf(i) {
			return false
		}
	}
	return true
}

func NewEnumSet(capacity int) *EnumSet {
	return &EnumSet{
		Enum:  make(map[string]int, capacity),
		Index: make([]string, 0, capacity),
	}
}

// NewVocabulary returns an EnumSet holding the PAD, UNK and ROOT entries.
func NewVocabulary(capacity int) *EnumSet {
	e := NewEnumSet(capacity + 3)
	e.Add(PAD_SYMBOL)
	e.Add(UNK_SYMBOL)
	e.Add(ROOT_SYMBOL)
	e.HasUNK = true
	return e
}

type enumSetSerialized struct {
	Enum   map[string]int
	Frozen bool
	HasUNK bool
}

func (e *EnumSet) Write(writer io.Writer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return gob.NewEncoder(writer).Encode(&enumSetSerialized{e.Enum, e.Frozen, e.HasUNK})
}

// ReadEnumSet decodes a set written by Write; the index is rebuilt from
// the value to id map.
func ReadEnumSet(reader io.Reader) (*EnumSet, error) {
	data := &enumSetSerialized{}
	if err := gob.NewDecoder(reader).Decode(data); err != nil {
		return nil, err
	}
	e := &EnumSet{Enum: data.Enum, Frozen: data.Frozen, HasUNK: data.HasUNK}
	if e.Enum == nil {
		e.Enum = make(map[string]int)
	}
	if err := e.RebuildIndex(); err != nil {
		return nil, err
	}
	return e, nil
}

func WriteEnumSetFile(filename string, e *EnumSet) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return e.Write(file)
}

func ReadEnumSetFile(filename string) (*EnumSet, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadEnumSet(file)
}
