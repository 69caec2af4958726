// Command imagestub is a stand-in image service for trying pixelfire
// locally. It answers the URL shapes of every scenario family with a small
// fake image body, negotiating the format from the Accept header.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type stubOptions struct {
	latency   time.Duration
	jitter    time.Duration
	errorRate float64
	bodyBytes int
}

func main() {
	port := flag.Int("port", 8080, "Listening port")
	latency := flag.Duration("latency", 20*time.Millisecond, "Base response latency")
	jitter := flag.Duration("jitter", 10*time.Millisecond, "Random latency added on top of -latency")
	errorRate := flag.Float64("error-rate", 0, "Fraction of image requests answered with 503")
	bodyBytes := flag.Int("body-bytes", 4096, "Size of the fake image body")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}
	if *errorRate < 0 || *errorRate > 1 {
		log.Fatalf("error-rate must be between 0 and 1")
	}

	opts := stubOptions{latency: *latency, jitter: *jitter, errorRate: *errorRate, bodyBytes: *bodyBytes}
	addr := fmt.Sprintf(":%d", *port)
	log.Printf("image stub listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, newHandler(opts, rand.New(rand.NewSource(time.Now().UnixNano())))))
}

func newHandler(opts stubOptions, rnd *rand.Rand) http.Handler {
	var mu sync.Mutex
	draw := func() (float64, time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		var extra time.Duration
		if opts.jitter > 0 {
			extra = time.Duration(rnd.Int63n(int64(opts.jitter)))
		}
		return rnd.Float64(), extra
	}
	body := make([]byte, opts.bodyBytes)

	// No ServeMux: cdn-cgi paths embed a full URL and must not be cleaned.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health/ping" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("pong"))
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		roll, extra := draw()
		time.Sleep(opts.latency + extra)

		if !looksLikeImage(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		if roll < opts.errorRate {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "image/"+negotiate(r.Header.Get("Accept"), r.URL.Path))
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Vary", "Accept")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	})
}

// negotiate picks the first modern format the client accepts, falling back
// to the source file's own type.
func negotiate(accept, path string) string {
	for _, format := range []string{"avif", "webp"} {
		if strings.Contains(accept, "image/"+format) {
			return format
		}
	}
	if i := strings.Index(path, "format="); i >= 0 {
		if f := strings.SplitN(path[i+len("format="):], "/", 2)[0]; f != "auto" && f != "" {
			return strings.SplitN(f, ",", 2)[0]
		}
	}
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".png"):
		return "png"
	case strings.HasSuffix(strings.ToLower(path), ".gif"):
		return "gif"
	default:
		return "jpeg"
	}
}

func looksLikeImage(path string) bool {
	p := strings.ToLower(path)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"} {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
