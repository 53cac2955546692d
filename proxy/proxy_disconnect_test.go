package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Client disconnect", func() {
	It("cancels the upstream call once the client connection drops", func() {
		upstreamGone := make(chan struct{})

		// An upstream that never finishes: it emits a delta every few
		// milliseconds until its request context is cancelled. The
		// relay only notices a dead client on the next downstream
		// write, so the steady trickle keeps the pump writing.
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())

			ticker := time.NewTicker(10 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-r.Context().Done():
					close(upstreamGone)
					return
				case <-ticker.C:
					fmt.Fprint(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"text\":\"x\"}}]}\n\n")
					flusher.Flush()
				}
			}
		}))
		defer upstream.Close()

		p := newTestProxy(upstream.URL)
		defer p.Close()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go p.RunWithListener(ln)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			"http://"+ln.Addr().String()+"/api/generate",
			strings.NewReader(`{"model":"jiutian-lan","prompt":"count forever"}`))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")

		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		// Make sure the stream is live before walking away.
		buf := make([]byte, 64)
		_, err = resp.Body.Read(buf)
		Expect(err).NotTo(HaveOccurred())

		cancel()
		resp.Body.Close()

		Eventually(upstreamGone, 5*time.Second).Should(BeClosed())
	})
})
