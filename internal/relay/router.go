package relay

import (
	"log/slog"
	"net/http"
)

// reservedPaths is the static set of paths that are served by Handler
// itself rather than dispatched to the rendezvous engine (spec §2, §6).
var reservedPaths = map[string]struct{}{
	"":             {},
	"/":            {},
	"/noscript":    {},
	"/version":     {},
	"/help":        {},
	"/favicon.ico": {},
	"/robots.txt":  {},
}

// allowedMethods is the full method set the Path Router accepts (spec §4.1
// rule 1, §6).
var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodHead:    {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodOptions: {},
}

// Handler is the Path Router: it classifies every request by method, path,
// and headers, and dispatches reserved paths to static pages and all other
// paths to the Rendezvous Engine.
type Handler struct {
	registry *Registry
	log      *slog.Logger
	metrics  MetricsRecorder
	defaultN int

	index   StaticPage
	help    StaticPage
	version StaticPage
	favicon StaticPage
	robots  StaticPage
}

// NewHandler returns a Handler backed by a fresh, empty Registry. metrics
// may be nil to disable metric recording (e.g. in tests). defaultN is the
// receiver count used when a request's "n" query parameter is absent; if
// it is less than 1, DefaultReceiverCount is used instead.
func NewHandler(log *slog.Logger, metrics MetricsRecorder, defaultN int) *Handler {
	if defaultN < 1 {
		defaultN = DefaultReceiverCount
	}
	return &Handler{
		registry: NewRegistry(),
		log:      log,
		metrics:  metrics,
		defaultN: defaultN,
		index:    IndexPage(),
		help:     HelpPage(),
		version:  VersionPage(),
		favicon:  FaviconPage(),
		robots:   RobotsPage(),
	}
}

// Registry exposes the underlying path registry, e.g. for the active
// rendezvous metrics gauge.
func (h *Handler) Registry() *Registry { return h.registry }

// ServeHTTP implements the Path Router rules of spec §4.1 in order.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, ok := allowedMethods[r.Method]; !ok {
		w.Header().Set("Allow", "GET, HEAD, POST, PUT, OPTIONS")
		w.Header().Set(HeaderAllowOrigin, "*")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if r.Method == http.MethodOptions {
		h.serveOptions(w)
		return
	}

	if _, reserved := reservedPaths[r.URL.Path]; reserved {
		h.serveReserved(w, r)
		return
	}

	if r.Method == http.MethodGet && r.Header.Get("Service-Worker") == "script" {
		badRequest(w, "refusing to serve as a Service Worker script")
		return
	}
	if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.Header.Get("Content-Range") != "" {
		badRequest(w, "partial uploads are not supported")
		return
	}

	h.serveRendezvous(w, r)
}

func (h *Handler) serveOptions(w http.ResponseWriter) {
	w.Header().Set(HeaderAllowOrigin, "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, PUT, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Disposition, X-Piping")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.Header().Set(HeaderContentLength, "0")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) serveReserved(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		badRequest(w, "cannot send to a reserved path")
		return
	}

	if r.URL.Path == "/noscript" {
		page, err := NoscriptPage(r.URL.Query().Get("path"))
		if err != nil {
			h.log.Error("render noscript page", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		page.ServeHTTP(w, r)
		return
	}

	switch r.URL.Path {
	case "", "/":
		h.index.ServeHTTP(w, r)
	case "/help":
		h.help.ServeHTTP(w, r)
	case "/version":
		h.version.ServeHTTP(w, r)
	case "/favicon.ico":
		h.favicon.ServeHTTP(w, r)
	case "/robots.txt":
		h.robots.ServeHTTP(w, r)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set(HeaderAllowOrigin, "*")
	w.Header().Set(HeaderContentType, "text/plain")
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte(msg + "\n"))
}

// serveRendezvous dispatches to the Parameter Parser and Rendezvous Engine
// for any non-reserved path (spec §4.1 rule 6).
func (h *Handler) serveRendezvous(w http.ResponseWriter, r *http.Request) {
	n, err := ParseReceiverCount(r.URL.Query(), h.defaultN)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	path := Path(r.URL.Path)

	switch r.Method {
	case http.MethodPost, http.MethodPut:
		h.serveSender(w, r, path, n)
	case http.MethodGet, http.MethodHead:
		h.serveReceiver(w, r, path, n)
	}
}

func (h *Handler) serveSender(w http.ResponseWriter, r *http.Request, path Path, n int) {
	src, err := unwrapSource(r.Header, r.Body)
	if err != nil {
		badRequest(w, "could not read multipart body: "+err.Error())
		return
	}

	sender := &Sender{
		Headers: ProjectHeaders(src.Header),
		Body:    src.Body,
		done:    make(chan struct{}),
		failed:  make(chan struct{}),
	}

	rv, err := h.registry.AttachSender(path, n, sender)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.IncSendersConnected()
	}

	select {
	case <-r.Context().Done():
		rv.detachSender(sender)
	case <-sender.done:
		if h.metrics != nil {
			h.metrics.AddBytesRelayed(sender.bytesCopied)
		}
		w.Header().Set(HeaderAllowOrigin, "*")
		w.WriteHeader(http.StatusOK)
	case <-sender.failed:
		if h.metrics != nil {
			h.metrics.AddBytesRelayed(sender.bytesCopied)
		}
		terminateAbruptly(w)
	}
}

func (h *Handler) serveReceiver(w http.ResponseWriter, r *http.Request, path Path, n int) {
	flusher, _ := w.(http.Flusher)
	recv := &Receiver{
		Writer:         w,
		Flusher:        flusher,
		DiscardBody:    r.Method == http.MethodHead,
		ready:          make(chan struct{}),
		headersWritten: make(chan struct{}),
		done:           make(chan struct{}),
	}

	rv, err := h.registry.AttachReceiver(path, n, recv)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.IncReceiversJoined()
	}

	select {
	case <-r.Context().Done():
		rv.detachReceiver(recv)
		// detachReceiver is a no-op once the set has already gone
		// Streaming, in which case recv.ready is already closed and
		// multicast is waiting on this receiver's headersWritten. Fall
		// through and write headers anyway so it isn't left hanging;
		// the imminent write to a cancelled connection will fail and
		// unwind the rendezvous through the normal error path.
		select {
		case <-recv.ready:
		default:
			return
		}
	case <-recv.ready:
	}

	sender := rv.Sender()
	for k, values := range sender.Headers {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}
	close(recv.headersWritten)

	<-recv.done
}

// terminateAbruptly closes the underlying connection without writing a
// status line, the best-effort response to a mid-stream peer abort (spec
// §7: "the transport simply terminates the connection for that peer").
func terminateAbruptly(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		return
	}
	conn, rw, err := hj.Hijack()
	if err != nil {
		return
	}
	if rw != nil {
		rw.Flush()
	}
	conn.Close()
}
