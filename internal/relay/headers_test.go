package relay

import (
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"testing"
)

func TestProjectHeaders_contentType(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		wantCT string
	}{
		{name: "plain_passthrough", in: "application/octet-stream", wantCT: "application/octet-stream"},
		{name: "html_rewritten_to_plain", in: "text/html", wantCT: "text/plain"},
		{name: "html_with_charset_preserved", in: "text/html; charset=utf-8", wantCT: "text/plain; charset=utf-8"},
		{name: "absent", in: "", wantCT: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := make(http.Header)
			if tc.in != "" {
				src.Set(HeaderContentType, tc.in)
			}
			out := ProjectHeaders(src)
			if got := out.Get(HeaderContentType); got != tc.wantCT {
				t.Errorf("Content-Type = %q, want %q", got, tc.wantCT)
			}
		})
	}
}

func TestProjectHeaders_alwaysSet(t *testing.T) {
	out := ProjectHeaders(make(http.Header))
	if got := out.Get(HeaderXRobotsTag); got != "none" {
		t.Errorf("X-Robots-Tag = %q, want none", got)
	}
	if got := out.Get(HeaderAllowOrigin); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestProjectHeaders_contentLength(t *testing.T) {
	src := make(http.Header)
	src.Set(HeaderContentLength, "17")
	out := ProjectHeaders(src)
	if got := out.Get(HeaderContentLength); got != "17" {
		t.Errorf("Content-Length = %q, want 17", got)
	}

	out2 := ProjectHeaders(make(http.Header))
	if got := out2.Get(HeaderContentLength); got != "" {
		t.Errorf("Content-Length = %q, want absent", got)
	}
}

func TestProjectHeaders_contentDisposition(t *testing.T) {
	src := make(http.Header)
	src.Set(HeaderContentDisposition, `form-data; name="dummy form name"; filename="myfile.txt"`)
	out := ProjectHeaders(src)
	want := `form-data; name="dummy form name"; filename="myfile.txt"`
	if got := out.Get(HeaderContentDisposition); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
}

func TestProjectHeaders_xPiping(t *testing.T) {
	src := make(http.Header)
	src.Add(HeaderXPiping, "a")
	src.Add(HeaderXPiping, "b")
	out := ProjectHeaders(src)

	got := out.Values(HeaderXPiping)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("X-Piping = %v, want [a b]", got)
	}
	if exposed := out.Get(HeaderExposeHeaders); exposed != HeaderXPiping {
		t.Errorf("Access-Control-Expose-Headers = %q, want %q", exposed, HeaderXPiping)
	}
}

func TestProjectHeaders_xPipingAbsentNoExpose(t *testing.T) {
	out := ProjectHeaders(make(http.Header))
	if exposed := out.Get(HeaderExposeHeaders); exposed != "" {
		t.Errorf("Access-Control-Expose-Headers = %q, want absent", exposed)
	}
}

func TestUnwrapSource_nonMultipartPassthrough(t *testing.T) {
	h := make(http.Header)
	h.Set(HeaderContentType, "application/octet-stream")
	body := strings.NewReader("hello")

	src, err := unwrapSource(h, body)
	if err != nil {
		t.Fatalf("unwrapSource: %v", err)
	}
	if src.Header.Get(HeaderContentType) != "application/octet-stream" {
		t.Errorf("unexpected header passthrough: %v", src.Header)
	}
}

func TestUnwrapSource_multipartFirstPart(t *testing.T) {
	var buf strings.Builder
	mw := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="dummy form name"; filename="myfile.txt"`)
	pw, err := mw.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := pw.Write([]byte("this is a content")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	h := make(http.Header)
	h.Set(HeaderContentType, "multipart/form-data; boundary="+mw.Boundary())

	src, err := unwrapSource(h, strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("unwrapSource: %v", err)
	}

	b := make([]byte, 64)
	n, _ := src.Body.Read(b)
	if got := string(b[:n]); got != "this is a content" {
		t.Errorf("part body = %q, want %q", got, "this is a content")
	}

	wantCD := `form-data; name="dummy form name"; filename="myfile.txt"`
	if got := src.Header.Get(HeaderContentDisposition); got != wantCD {
		t.Errorf("Content-Disposition = %q, want %q", got, wantCD)
	}
}
