package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/beatlab/internal/music"
)

type commit struct {
	action string
	seq    int64
}

func record(s *Store) *[]commit {
	var mu sync.Mutex
	var got []commit
	s.Subscribe(func(c Commit) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, commit{c.Action.Type(), c.Seq})
	})
	return &got
}

func TestStore_DispatchCommitsAndNotifies(t *testing.T) {
	s := NewStore(newState())
	got := record(s)

	var prevTitle, nextTitle string
	s.Subscribe(func(c Commit) {
		if _, ok := c.Action.(SetTitle); ok {
			prevTitle, nextTitle = c.Prev.Project.Title, c.Next.Project.Title
		}
	})

	s.Dispatch(SetTitle{Title: "Live"})
	s.Dispatch(SetBPM{BPM: 100})

	assert.Equal(t, []commit{{"project/setTitle", 1}, {"transport/setBPM", 2}}, *got)
	assert.Equal(t, "Demo", prevTitle)
	assert.Equal(t, "Live", nextTitle)
	assert.Equal(t, int64(2), s.Seq())
	assert.Equal(t, "Live", s.State().Project.Title)
	assert.Equal(t, 100.0, s.State().Transport.BPM)
}

func TestStore_DispatchMatchesReduce(t *testing.T) {
	actions := []Action{
		SetTitle{Title: "A"},
		AddTrack{Track: music.NewDrumTrack("d2", "Perc", 1)},
		Undo{},
		Redo{},
		SetBars{Bars: 2},
	}
	s := NewStore(newState())
	want := newState()
	for _, a := range actions {
		s.Dispatch(a)
		want = Reduce(want, a)
	}
	assert.Equal(t, want, s.State())
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(newState())
	calls := 0
	unsubscribe := s.Subscribe(func(Commit) { calls++ })

	s.Dispatch(ToggleMixer{})
	unsubscribe()
	s.Dispatch(ToggleMixer{})

	assert.Equal(t, 1, calls)
}

func TestStore_NilDispatchIgnored(t *testing.T) {
	s := NewStore(newState())
	s.Dispatch(nil)
	assert.Equal(t, int64(0), s.Seq())
}

func TestStore_WithClockContinuesSequence(t *testing.T) {
	s := NewStore(newState(), WithClock(NewClockAt(10)))
	s.Dispatch(ToggleMixer{})
	assert.Equal(t, int64(11), s.Seq())
}

func TestStore_ListenerDispatchIsQueuedFIFO(t *testing.T) {
	s := NewStore(newState())
	got := record(s)

	s.Subscribe(func(c Commit) {
		if _, ok := c.Action.(SetTitle); ok {
			c.Dispatch(SetTempo{BPM: 100})
			c.Dispatch(SetBPM{BPM: 100})
		}
	})
	s.Dispatch(SetTitle{Title: "Live"})

	assert.Equal(t, []commit{
		{"project/setTitle", 1},
		{"project/setTempo", 2},
		{"transport/setBPM", 3},
	}, *got)

	st := s.State()
	assert.Len(t, st.Undo, 2, "outside a restore both project actions are captured")
	assert.Equal(t, 100.0, st.Project.Tempo)
	assert.Equal(t, 100.0, st.Transport.BPM)
}

func TestStore_RestoreDoesNotRetriggerCapture(t *testing.T) {
	s := NewStore(newState())
	s.Dispatch(SetTitle{Title: "One"})
	s.Dispatch(SetTitle{Title: "Two"})

	// A listener that keeps the project tempo in sync after a restore.
	s.Subscribe(func(c Commit) {
		switch c.Action.(type) {
		case Undo, Redo:
			c.Dispatch(SetTempo{BPM: c.Next.Project.Tempo + 1})
		}
	})

	s.Dispatch(Undo{})
	st := s.State()
	assert.Equal(t, "One", st.Project.Title)
	assert.Equal(t, 121.0, st.Project.Tempo)
	assert.Len(t, st.Undo, 1)
	assert.Len(t, st.Redo, 1, "restore-triggered dispatch must not clear redo")

	s.Dispatch(Redo{})
	st = s.State()
	assert.Equal(t, "Two", st.Project.Title)
	assert.Len(t, st.Undo, 2)
	assert.Empty(t, st.Redo)

	// Back outside a restore, capture resumes.
	s.Dispatch(SetTitle{Title: "Three"})
	assert.Len(t, s.State().Undo, 3)
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	s := NewStore(newState())

	var mu sync.Mutex
	var seqs []int64
	s.Subscribe(func(c Commit) {
		mu.Lock()
		seqs = append(seqs, c.Seq)
		mu.Unlock()
	})

	const goroutines, calls = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				s.Dispatch(ToggleMixer{})
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(goroutines*calls), s.Seq())
	require.Len(t, seqs, goroutines*calls)
	for i := 1; i < len(seqs); i++ {
		assert.Equal(t, seqs[i-1]+1, seqs[i], "commits are delivered in order")
	}
	// An even number of toggles leaves the mixer closed.
	assert.False(t, s.State().UI.MixerOpen)
}

// blockOn installs a listener that parks the draining goroutine inside the
// delivery of actions of type T until release is closed.
func blockOn[T Action](s *Store) (entered <-chan struct{}, release chan<- struct{}) {
	in := make(chan struct{})
	out := make(chan struct{})
	var once sync.Once
	s.Subscribe(func(c Commit) {
		if _, ok := c.Action.(T); ok {
			once.Do(func() { close(in) })
			<-out
		}
	})
	return in, out
}

func TestStore_DispatchFromOtherGoroutineWaitsUntilApplied(t *testing.T) {
	s := NewStore(newState())
	entered, release := blockOn[SetZoom](s)

	go s.Dispatch(SetZoom{Zoom: 2})
	<-entered

	returned := make(chan string)
	go func() {
		s.Dispatch(SetTitle{Title: "mine"})
		returned <- s.State().Project.Title
	}()

	select {
	case <-returned:
		t.Fatal("Dispatch returned before its action was applied")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	select {
	case title := <-returned:
		assert.Equal(t, "mine", title)
	case <-time.After(time.Second):
		t.Fatal("Dispatch never returned")
	}
}

func TestStore_OtherGoroutineEditDuringUndoIsCaptured(t *testing.T) {
	s := NewStore(newState())
	s.Dispatch(SetTitle{Title: "One"})
	entered, release := blockOn[Undo](s)

	go s.Dispatch(Undo{})
	<-entered

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Dispatch(SetTitle{Title: "Edit"})
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-done

	st := s.State()
	assert.Equal(t, "Edit", st.Project.Title)
	require.Len(t, st.Undo, 1, "an unrelated edit is undoable")
	assert.Empty(t, st.Redo, "a captured edit clears redo")

	s.Dispatch(Undo{})
	assert.Equal(t, "Demo", s.State().Project.Title)
}

func TestStore_PanickingListenerDoesNotWedgeDispatch(t *testing.T) {
	s := NewStore(newState())
	got := record(s)
	s.Subscribe(func(c Commit) {
		if _, ok := c.Action.(SetTitle); ok {
			panic("listener bug")
		}
	})
	after := 0
	s.Subscribe(func(Commit) { after++ })

	assert.NotPanics(t, func() { s.Dispatch(SetTitle{Title: "Boom"}) })
	s.Dispatch(SetBPM{BPM: 90})

	assert.Equal(t, "Boom", s.State().Project.Title)
	assert.Equal(t, 90.0, s.State().Transport.BPM)
	assert.Equal(t, []commit{{"project/setTitle", 1}, {"transport/setBPM", 2}}, *got)
	assert.Equal(t, 2, after, "later listeners still see every commit")
}
