package relay

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// Header names the projector reads from and writes to, named once here
// and reused everywhere else in the package.
const (
	HeaderContentType        = "Content-Type"
	HeaderContentLength      = "Content-Length"
	HeaderContentDisposition = "Content-Disposition"
	HeaderXPiping            = "X-Piping"
	HeaderXRobotsTag         = "X-Robots-Tag"
	HeaderAllowOrigin        = "Access-Control-Allow-Origin"
	HeaderExposeHeaders      = "Access-Control-Expose-Headers"
)

// ProjectedSource is what the Header Projector needs from the sender: its
// headers and the body to relay. For a plain POST/PUT these are the
// request's own header and body. For multipart/form-data, these are the
// first part's header and body (spec §4.3 "Multipart unwrapping").
type ProjectedSource struct {
	Header http.Header
	Body   io.Reader
}

// unwrapSource inspects the sender's Content-Type and, if it is
// multipart/form-data, returns the first part as the effective source.
// Otherwise it returns the request's own header and body unchanged.
//
// Nothing is returned for the caller to close: the multipart part reads
// from the request body, whose lifecycle the caller already owns.
func unwrapSource(header http.Header, body io.Reader) (ProjectedSource, error) {
	ct := header.Get(HeaderContentType)
	if ct == "" {
		return ProjectedSource{Header: header, Body: body}, nil
	}

	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil || mediaType != "multipart/form-data" {
		return ProjectedSource{Header: header, Body: body}, nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		return ProjectedSource{Header: header, Body: body}, nil
	}

	mr := multipart.NewReader(body, boundary)
	part, err := mr.NextPart()
	if err != nil {
		return ProjectedSource{}, err
	}

	return ProjectedSource{Header: http.Header(part.Header), Body: part}, nil
}

// ProjectHeaders computes the receiver-visible response headers from a
// sender's (already-unwrapped) header set, per the table in spec §4.3.
func ProjectHeaders(src http.Header) http.Header {
	out := make(http.Header)

	if ct := src.Get(HeaderContentType); ct != "" {
		out.Set(HeaderContentType, rewriteHTMLToPlain(ct))
	}
	if cl := src.Get(HeaderContentLength); cl != "" {
		out.Set(HeaderContentLength, cl)
	}
	if cd := src.Get(HeaderContentDisposition); cd != "" {
		out.Set(HeaderContentDisposition, cd)
	}
	if piping := src.Values(HeaderXPiping); len(piping) > 0 {
		for _, v := range piping {
			out.Add(HeaderXPiping, v)
		}
		out.Set(HeaderExposeHeaders, HeaderXPiping)
	}

	out.Set(HeaderXRobotsTag, "none")
	out.Set(HeaderAllowOrigin, "*")

	return out
}

// rewriteHTMLToPlain rewrites a "text/html[; params]" media type to
// "text/plain[; params]", preserving parameters verbatim. Any other media
// type passes through unchanged (spec §4.3).
func rewriteHTMLToPlain(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	if !strings.EqualFold(mediaType, "text/html") {
		return contentType
	}
	return mime.FormatMediaType("text/plain", params)
}
