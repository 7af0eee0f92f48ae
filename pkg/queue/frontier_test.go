package queue

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/models"
)

// testLogger returns a logger that discards output
func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestNewFrontier(t *testing.T) {
	f := NewFrontier(testLogger())
	if f == nil {
		t.Fatal("NewFrontier() returned nil")
	}
	if f.Len() != 0 {
		t.Errorf("New frontier Len() = %d, want 0", f.Len())
	}
}

func TestFrontier_AddAndPop(t *testing.T) {
	f := NewFrontier(testLogger())

	item := &models.WorkItem{URL: "http://example.com", Depth: 0}
	f.Add(item)

	if f.Len() != 1 {
		t.Errorf("After Add, Len() = %d, want 1", f.Len())
	}

	result, ok := f.Pop()
	if !ok {
		t.Fatal("Pop() returned ok=false, want true")
	}
	if result.URL != item.URL {
		t.Errorf("Pop() URL = %q, want %q", result.URL, item.URL)
	}
	if f.Len() != 0 {
		t.Errorf("After Pop, Len() = %d, want 0", f.Len())
	}
}

func TestFrontier_DepthOrdering(t *testing.T) {
	f := NewFrontier(testLogger())

	// Lower depth should be popped first
	f.Add(&models.WorkItem{URL: "depth2", Depth: 2})
	f.Add(&models.WorkItem{URL: "depth0", Depth: 0})
	f.Add(&models.WorkItem{URL: "depth1", Depth: 1})
	f.Add(&models.WorkItem{URL: "depth3", Depth: 3})

	expectedOrder := []string{"depth0", "depth1", "depth2", "depth3"}
	for i, expected := range expectedOrder {
		item, ok := f.Pop()
		if !ok {
			t.Fatalf("Pop() #%d returned ok=false", i)
		}
		if item.URL != expected {
			t.Errorf("Pop() #%d URL = %q, want %q", i, item.URL, expected)
		}
	}
}

func TestFrontier_CloseWithItems(t *testing.T) {
	f := NewFrontier(testLogger())

	f.Add(&models.WorkItem{URL: "a", Depth: 0})
	f.Add(&models.WorkItem{URL: "b", Depth: 1})
	f.Close()

	// Existing items remain available after Close
	if _, ok := f.Pop(); !ok {
		t.Error("Pop() after Close should return existing items")
	}
	if _, ok := f.Pop(); !ok {
		t.Error("Pop() after Close should return existing items")
	}

	// Drained and closed
	item, ok := f.Pop()
	if ok {
		t.Error("Pop() on closed empty frontier returned ok=true")
	}
	if item != nil {
		t.Error("Pop() on closed empty frontier returned non-nil item")
	}
}

func TestFrontier_AddAfterClose(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Close()

	f.Add(&models.WorkItem{URL: "test", Depth: 0})

	if f.Len() != 0 {
		t.Errorf("Add after Close: Len() = %d, want 0", f.Len())
	}
}

func TestFrontier_DoubleClose(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Close()
	f.Close() // Should be safe
}

func TestFrontier_PopBlocks(t *testing.T) {
	f := NewFrontier(testLogger())

	resultChan := make(chan *models.WorkItem, 1)
	go func() {
		item, ok := f.Pop() // This should block
		if ok {
			resultChan <- item
		} else {
			resultChan <- nil
		}
	}()

	// Give goroutine time to start blocking
	time.Sleep(50 * time.Millisecond)

	select {
	case <-resultChan:
		t.Fatal("Pop() returned before Add(), should have blocked")
	default:
		// Expected - still blocking
	}

	f.Add(&models.WorkItem{URL: "unblock", Depth: 0})

	select {
	case item := <-resultChan:
		if item == nil {
			t.Error("Pop() returned nil after Add()")
		} else if item.URL != "unblock" {
			t.Errorf("Pop() URL = %q, want %q", item.URL, "unblock")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Pop() did not return after Add()")
	}
}

func TestFrontier_CloseUnblocksWaiters(t *testing.T) {
	f := NewFrontier(testLogger())

	var wg sync.WaitGroup
	results := make(chan bool, 3)

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := f.Pop() // Block waiting
			results <- ok
		}()
	}

	// Give goroutines time to start blocking
	time.Sleep(50 * time.Millisecond)

	f.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("Close() did not unblock waiting goroutines")
	}

	close(results)
	for ok := range results {
		if ok {
			t.Error("Blocked Pop() returned ok=true after Close()")
		}
	}
}

func TestFrontier_ConcurrentAddPop(t *testing.T) {
	f := NewFrontier(testLogger())

	var wg sync.WaitGroup
	numProducers := 5
	numConsumers := 3
	itemsPerProducer := 20
	totalItems := numProducers * itemsPerProducer

	var poppedCount int64
	var countMu sync.Mutex

	for i := 0; i < numConsumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok := f.Pop()
				if !ok {
					return // Frontier closed and empty
				}
				countMu.Lock()
				poppedCount++
				countMu.Unlock()
			}
		}()
	}

	var producerWg sync.WaitGroup
	for i := 0; i < numProducers; i++ {
		producerWg.Add(1)
		go func(producerID int) {
			defer producerWg.Done()
			for j := 0; j < itemsPerProducer; j++ {
				f.Add(&models.WorkItem{URL: "url", Depth: producerID})
			}
		}(i)
	}

	producerWg.Wait()
	f.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Consumers did not finish in time")
	}

	countMu.Lock()
	if int(poppedCount) != totalItems {
		t.Errorf("Popped %d items, want %d", poppedCount, totalItems)
	}
	countMu.Unlock()
}
