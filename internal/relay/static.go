package relay

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
)

// Version is the relay's build version, reported by the reserved
// "/version" path. Overridden at build time via -ldflags "-X ...Version=...".
var Version = "dev"

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Piping</title></head>
<body>
<h1>Piping</h1>
<p>Streams a byte body from one sender to one or more receivers over plain HTTP.</p>
<pre>
# receiver
curl https://example.com/mypath

# sender
curl -T myfile https://example.com/mypath
</pre>
<p><a href="/help">help</a> &middot; <a href="/version">version</a></p>
</body>
</html>
`

const helpText = `Piping: streams a byte body from one sender to one or more receivers.

Usage:
  curl <url>/<path>             # receive
  curl -T <file> <url>/<path>   # send

Query parameters:
  n=<count>   number of receivers to wait for (default 1)

Multipart uploads (e.g. browser <input type=file>) are unwrapped: the
first part of the multipart body becomes the relayed stream.

Examples:
  curl https://example.com/mydata &
  curl -T myfile.txt https://example.com/mydata
`

var noscriptTemplate = template.Must(template.New("noscript").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Piping - noscript</title></head>
<body>
<form method="POST" enctype="multipart/form-data" action="{{.Path}}">
  <input type="file" name="input_file">
  <input type="submit" value="Send">
</form>
</body>
</html>
`))

// StaticPage is a pre-rendered reserved-path response: body and headers
// are computed once at startup so GET and HEAD can share the same bytes
// (spec §4.1 "HEAD consistency", §9).
type StaticPage struct {
	Status int
	Header http.Header
	Body   []byte
}

// ServeHTTP writes the page's status and headers, and its body unless the
// request method is HEAD.
func (p StaticPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for k, values := range p.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(p.Status)
	if r.Method != http.MethodHead {
		w.Write(p.Body)
	}
}

func htmlPage(status int, body string) StaticPage {
	h := make(http.Header)
	h.Set(HeaderContentType, "text/html; charset=utf-8")
	h.Set(HeaderContentLength, strconv.Itoa(len(body)))
	return StaticPage{Status: status, Header: h, Body: []byte(body)}
}

func textPage(status int, body string) StaticPage {
	h := make(http.Header)
	h.Set(HeaderContentType, "text/plain")
	h.Set(HeaderContentLength, strconv.Itoa(len(body)))
	return StaticPage{Status: status, Header: h, Body: []byte(body)}
}

// IndexPage is the landing page served at "" and "/".
func IndexPage() StaticPage { return htmlPage(http.StatusOK, indexHTML) }

// HelpPage is served at "/help".
func HelpPage() StaticPage { return textPage(http.StatusOK, helpText) }

// VersionPage is served at "/version".
func VersionPage() StaticPage { return textPage(http.StatusOK, Version+"\n") }

// FaviconPage is served at "/favicon.ico": 204, no body.
func FaviconPage() StaticPage {
	return StaticPage{Status: http.StatusNoContent, Header: make(http.Header)}
}

// RobotsPage is served at "/robots.txt": 404.
func RobotsPage() StaticPage {
	return textPage(http.StatusNotFound, "404 not found\n")
}

// NoscriptPage renders the upload form for "/noscript?path=<P>". The path
// is attribute-escaped by html/template so it cannot break out of the
// action="" attribute (spec §6).
func NoscriptPage(path string) (StaticPage, error) {
	var b strings.Builder
	if err := noscriptTemplate.Execute(&b, struct{ Path string }{Path: path}); err != nil {
		return StaticPage{}, fmt.Errorf("render noscript page: %w", err)
	}
	return htmlPage(http.StatusOK, b.String()), nil
}
