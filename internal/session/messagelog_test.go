package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageLog_Never_Exceeds_Capacity(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog(5)

	for i := 1; i <= 12; i++ {
		log.Append(Message{Body: fmt.Sprintf("m%d", i)})
		req.LessOrEqual(log.Len(), 5)
	}

	recent := log.Recent(5)
	req.Len(recent, 5)
	for i, m := range recent {
		req.Equal(fmt.Sprintf("m%d", i+8), m.Body)
	}
}

func TestMessageLog_Recent_Limits_And_Orders(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog(10)
	for i := 1; i <= 4; i++ {
		log.Append(Message{Body: fmt.Sprintf("m%d", i)})
	}

	req.Empty(log.Recent(0))
	req.Empty(log.Recent(-1))
	req.Len(log.Recent(100), 4)

	last2 := log.Recent(2)
	req.Equal("m3", last2[0].Body)
	req.Equal("m4", last2[1].Body)
}

func TestMessageLog_Append_Assigns_Ordered_Ids(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog(3)

	first := log.Append(Message{Body: "a"})
	second := log.Append(Message{Body: "b"})

	req.NotEmpty(first.ID)
	req.NotEqual(first.ID, second.ID)
	req.Less(first.Seq, second.Seq)
	req.Equal(KindText, first.Kind)
	req.False(first.At.IsZero())
}

func TestMessageLog_Append_Keeps_Given_Id(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog(3)

	msg := log.Append(Message{ID: "fixed", Body: "a", Kind: KindEmergency})

	req.Equal("fixed", msg.ID)
	req.Equal(KindEmergency, msg.Kind)
}

func TestMessageLog_Restore(t *testing.T) {
	req := require.New(t)
	log := NewMessageLog(2)

	// Given three archived messages
	archived := []Message{
		{ID: "1", Seq: 1, Body: "a"},
		{ID: "2", Seq: 2, Body: "b"},
		{ID: "3", Seq: 3, Body: "c"},
	}

	// When the log is restored
	log.Restore(archived)

	// Then only the newest fit
	req.Equal([]Message{archived[1], archived[2]}, log.Recent(10))

	// And numbering continues
	next := log.Append(Message{Body: "d"})
	req.Equal(uint64(4), next.Seq)
	req.Equal("c", log.Recent(2)[0].Body)
}
