package bus

import (
	"sync"
	"testing"
)

func newTestPublisher(sink func(subject string, data []byte) error) *Publisher {
	p := &Publisher{
		publish:   sink,
		writeChan: make(chan Event, 1024),
		done:      make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func TestPublisherNilIsSafe(t *testing.T) {
	var p *Publisher
	p.Publish(Event{Subject: SubjectInstanceUp})
	p.Close()
}

func TestCloseDrainsQueuedEvents(t *testing.T) {
	var mu sync.Mutex
	var got []string
	p := newTestPublisher(func(subject string, _ []byte) error {
		mu.Lock()
		got = append(got, subject)
		mu.Unlock()
		return nil
	})

	for i := 0; i < 10; i++ {
		p.Publish(Event{Subject: SubjectPlayerMoved})
	}
	p.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 10 {
		t.Fatalf("drained %d of 10 events", len(got))
	}
}

func TestPublishDuringCloseDoesNotPanic(t *testing.T) {
	p := newTestPublisher(func(string, []byte) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				p.Publish(Event{Subject: SubjectQueueFinished})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Close()
	}()
	wg.Wait()

	// late events and a second close are silent no-ops
	p.Publish(Event{Subject: SubjectInstanceDown})
	p.Close()
}
