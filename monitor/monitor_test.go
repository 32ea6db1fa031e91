/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package monitor_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/httpcore/monitor"
)

var _ = Describe("Tracker", func() {
	It("creates an address lazily and records counters", func() {
		tr := monitor.NewTracker()
		Expect(tr.Len()).To(Equal(0))

		v := tr.Record("1.2.3.4", monitor.CounterRequests, 3)
		Expect(v).To(Equal(int64(3)))
		Expect(tr.Len()).To(Equal(1))

		v = tr.Record("1.2.3.4", monitor.CounterRequests, 2)
		Expect(v).To(Equal(int64(5)))
	})

	It("clamps counters at zero", func() {
		tr := monitor.NewTracker()
		tr.Record("1.2.3.4", monitor.CounterActiveConnections, 1)
		v := tr.Record("1.2.3.4", monitor.CounterActiveConnections, -5)
		Expect(v).To(Equal(int64(0)))
	})

	It("evicts addresses idle past the sweep window", func() {
		tr := monitor.NewTracker()
		tr.Record("1.2.3.4", monitor.CounterRequests, 1)
		addr, _ := tr.Get("1.2.3.4")
		addr.Updated = time.Now().Add(-10 * time.Minute) // Evict floors the window at 5 minutes
		removed := tr.Evict(1 * time.Nanosecond)
		Expect(removed).To(Equal(1))
		Expect(tr.Len()).To(Equal(0))
	})
})

var _ = Describe("Address", func() {
	It("reports Banned only within the ban window", func() {
		a := &monitor.Address{}
		now := time.Now()
		Expect(a.Banned(now)).To(BeFalse())
		a.BanUntil = now.Add(time.Hour)
		Expect(a.Banned(now)).To(BeTrue())
		Expect(a.Banned(now.Add(2 * time.Hour))).To(BeFalse())
	})
})

var _ = Describe("NewDefense", func() {
	It("tokenizes a key=value,key=value argument list", func() {
		d := monitor.NewDefense("blockIt", "ban", "PERIOD=5m, DELAY=200ms")
		Expect(d.Args).To(HaveKeyWithValue("PERIOD", "5m"))
		Expect(d.Args).To(HaveKeyWithValue("DELAY", "200ms"))
	})
})

var _ = Describe("Remedy registry", func() {
	It("invokes a custom remedy with its arguments template-expanded against the message", func() {
		var gotArgs map[string]string
		var gotMsg monitor.Message
		monitor.RegisterRemedy("test-capture", func(_ context.Context, _ *monitor.Tracker, _ *monitor.Address, args map[string]string, msg monitor.Message) error {
			gotArgs = args
			gotMsg = msg
			return nil
		})

		d := monitor.NewDefense("capture", "test-capture", "note=counter was ${COUNTER}")
		msg := monitor.NewMessage(monitor.CounterRequests, "9.9.9.9", 42, 10, time.Minute, ">")

		Expect(d.Invoke(context.Background(), nil, nil, msg)).To(Succeed())
		Expect(gotArgs["note"]).To(Equal("counter was " + monitor.CounterRequests))
		Expect(gotMsg["VALUE"]).To(Equal("42"))
	})

	It("errors on an unknown remedy name", func() {
		d := monitor.NewDefense("broken", "does-not-exist", "")
		err := d.Invoke(context.Background(), nil, nil, monitor.Message{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("built-in ban and delay remedies", func() {
	It("ban extends BanUntil to the later of its current value and now+PERIOD", func() {
		hub := monitor.NewHub()
		hub.Tracker.Record("5.5.5.5", monitor.CounterBadRequestErrors, 1)
		addr, ok := hub.Tracker.Get("5.5.5.5")
		Expect(ok).To(BeTrue())

		hub.AddDefense(monitor.NewDefense("blockBad", "ban", "PERIOD=1h"))
		msg := monitor.NewMessage(monitor.CounterBadRequestErrors, "5.5.5.5", 5, 1, time.Minute, ">")
		Expect(hub.Defenses["blockBad"].Invoke(context.Background(), hub.Tracker, addr, msg)).To(Succeed())

		Expect(addr.Banned(time.Now())).To(BeTrue())
	})

	It("delay sets an artificial accept latency", func() {
		addr := &monitor.Address{}
		d := monitor.NewDefense("slow", "delay", "PERIOD=1h,DELAY=250ms")
		Expect(d.Invoke(context.Background(), nil, addr, monitor.Message{})).To(Succeed())
		Expect(addr.CurrentDelay(time.Now())).To(Equal(250 * time.Millisecond))
	})
})

var _ = Describe("Monitor", func() {
	It("fires its defenses once the per-period delta crosses the limit", func() {
		hub := monitor.NewHub()

		var mu sync.Mutex
		var fired int
		monitor.RegisterRemedy("test-count-fires", func(_ context.Context, _ *monitor.Tracker, _ *monitor.Address, _ map[string]string, _ monitor.Message) error {
			mu.Lock()
			fired++
			mu.Unlock()
			return nil
		})
		hub.AddDefense(monitor.NewDefense("countFires", "test-count-fires", ""))

		m := monitor.NewMonitor(monitor.CounterBadRequestErrors, monitor.ExprGreater, 3, 20*time.Millisecond, "countFires")
		hub.AddMonitor(m)
		m.Start(context.Background())
		defer m.Stop()

		hub.Tracker.Record("6.6.6.6", monitor.CounterBadRequestErrors, 5)

		Eventually(func() int {
			mu.Lock()
			defer mu.Unlock()
			return fired
		}, time.Second, 5*time.Millisecond).Should(BeNumerically(">=", 1))
	})
})

var _ = Describe("Tracker snapshot", func() {
	It("round-trips the address map through cbor", func() {
		tr := monitor.NewTracker()
		tr.Record("7.7.7.7", monitor.CounterRequests, 9)

		data, err := tr.Snapshot()
		Expect(err).NotTo(HaveOccurred())

		restored := monitor.NewTracker()
		Expect(restored.Restore(data)).To(Succeed())
		Expect(restored.Len()).To(Equal(1))

		addr, ok := restored.Get("7.7.7.7")
		Expect(ok).To(BeTrue())
		Expect(addr.CurrentDelay(time.Now())).To(Equal(time.Duration(0)))
	})
})
