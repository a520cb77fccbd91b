package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type item struct {
	data string
}

func TestQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := New[*item](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		v, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(v)

		v, ok = q.Peek()
		assert.False(ok)
		assert.Nil(v)
	})

	t.Run("Enqueue and Dequeue", func(t *testing.T) {
		q := New[*item](1)

		item1 := &item{"data1"}
		item2 := &item{"data2"}
		q.Enqueue(item1)
		q.Enqueue(item2)
		assert.Equal(2, q.Length())

		v, ok := q.Peek()
		assert.True(ok)
		assert.Same(item1, v)
		assert.Equal(2, q.Length())

		v, ok = q.Dequeue()
		assert.True(ok)
		assert.Same(item1, v)

		v, ok = q.Dequeue()
		assert.True(ok)
		assert.Same(item2, v)
		assert.True(q.IsEmpty())
	})

	t.Run("Remove keeps order", func(t *testing.T) {
		q := New[*item](4)

		items := []*item{{"a"}, {"b"}, {"c"}, {"d"}}
		for _, it := range items {
			q.Enqueue(it)
		}

		assert.True(q.Remove(items[1]))
		assert.False(q.Remove(items[1]))
		assert.False(q.Remove(&item{"b"}))
		assert.Equal(3, q.Length())

		assert.Equal([]*item{items[0], items[2], items[3]}, q.Drain())
		assert.True(q.IsEmpty())
	})

	t.Run("Remove head and tail", func(t *testing.T) {
		q := New[int](0)
		q.Enqueue(1)
		q.Enqueue(2)
		q.Enqueue(3)

		assert.True(q.Remove(1))
		assert.True(q.Remove(3))

		v, ok := q.Dequeue()
		assert.True(ok)
		assert.Equal(2, v)
		assert.True(q.IsEmpty())
	})
}
