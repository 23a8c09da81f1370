package infer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fake struct {
	rnd *rand.Rand
}

func newFake(seed int64) *fake {
	return &fake{rnd: rand.New(rand.NewSource(seed))}
}

// JSON returns a random nested payload of strings, nulls and objects.
func (f *fake) JSON() map[string]any {
	return f.jsonRecursive(0, 5)
}

func (f *fake) jsonRecursive(depth, maxDepth int) map[string]any {
	nkeys := 1 + f.rnd.Intn(12)
	obj := make(map[string]any, nkeys)

	for i := 0; i < nkeys; i++ {
		key := f.String(1 + f.rnd.Intn(32))
		switch n := f.rnd.Intn(100); {
		case n < 10:
			obj[key] = nil
		case n < 70 || depth+1 >= maxDepth:
			obj[key] = f.String(1 + f.rnd.Intn(32))
		default:
			obj[key] = f.jsonRecursive(depth+1, maxDepth)
		}
	}

	return obj
}

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func (f *fake) String(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[f.rnd.Intn(len(letters))]
	}
	return string(b)
}

func TestExampleKeepsPlainPayloads(t *testing.T) {
	f := newFake(7)
	for i := 0; i < 50; i++ {
		payload := f.JSON()
		assert.Equal(t, payload, Example(payload, nil))
	}
}

func TestDefinitionExampleHasEveryField(t *testing.T) {
	f := newFake(11)
	for i := 0; i < 20; i++ {
		payload := f.JSON()
		s := Definition(Input{}, payload)
		example, ok := s.Example.(map[string]any)
		if assert.True(t, ok) {
			assert.Len(t, example, len(payload))
		}
	}
}
