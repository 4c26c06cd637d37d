// Copyright 2025 Cinder Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscribePublish(t *testing.T) {
	bus := NewEventBus(prometheus.NewRegistry())
	defer bus.Stop()
	_, ch := bus.Subscribe("test.event")
	bus.Publish("test.event", NewEvent("test.event", "hello"))
	select {
	case evt := <-ch:
		assert.Equal(t, EventType("test.event"), evt.Type)
		assert.Equal(t, "hello", evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Stop()
	// Should not block or panic
	bus.Publish("test.event", NewEvent("test.event", nil))
}

func TestSubscribeFunc(t *testing.T) {
	bus := NewEventBus(nil)
	received := make(chan Event, 1)
	bus.SubscribeFunc("test.event", func(evt Event) {
		received <- evt
	})
	bus.Publish("test.event", NewEvent("test.event", 42))
	select {
	case evt := <-received:
		assert.Equal(t, 42, evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for handler")
	}
	bus.Stop()
}

func TestUnsubscribe(t *testing.T) {
	bus := NewEventBus(nil)
	defer bus.Stop()
	subId, ch := bus.Subscribe("test.event")
	bus.Unsubscribe("test.event", subId)
	_, ok := <-ch
	require.False(t, ok, "expected channel to be closed")
	// Publishing after unsubscribe must not panic
	bus.Publish("test.event", NewEvent("test.event", nil))
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	const subscriberCount = 5
	var wg sync.WaitGroup
	for range subscriberCount {
		wg.Add(1)
		bus.SubscribeFunc("test.event", func(Event) {
			wg.Done()
		})
	}
	bus.Publish("test.event", NewEvent("test.event", nil))
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
	bus.Stop()
}

func TestStopAllowsReuse(t *testing.T) {
	bus := NewEventBus(nil)
	_, ch := bus.Subscribe("test.event")
	bus.Stop()
	_, ok := <-ch
	require.False(t, ok)
	// Bus remains usable after Stop
	_, ch2 := bus.Subscribe("test.event")
	bus.Publish("test.event", NewEvent("test.event", "again"))
	select {
	case evt := <-ch2:
		assert.Equal(t, "again", evt.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event after restart")
	}
	bus.Stop()
}
