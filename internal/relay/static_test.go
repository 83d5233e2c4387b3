package relay

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIndexPage_containsPiping(t *testing.T) {
	page := IndexPage()
	if !strings.Contains(string(page.Body), "Piping") {
		t.Errorf("index page body does not contain %q", "Piping")
	}
	if ct := page.Header.Get(HeaderContentType); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html prefix", ct)
	}
}

func TestVersionPage(t *testing.T) {
	Version = "1.2.3"
	page := VersionPage()
	if string(page.Body) != "1.2.3\n" {
		t.Errorf("version body = %q, want %q", page.Body, "1.2.3\n")
	}
}

func TestFaviconPage_noContent(t *testing.T) {
	page := FaviconPage()
	if page.Status != http.StatusNoContent {
		t.Errorf("status = %d, want 204", page.Status)
	}
	if len(page.Body) != 0 {
		t.Errorf("body = %q, want empty", page.Body)
	}
}

func TestRobotsPage_notFound(t *testing.T) {
	page := RobotsPage()
	if page.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", page.Status)
	}
}

func TestNoscriptPage_escapesPathAttribute(t *testing.T) {
	page, err := NoscriptPage(`"><script>alert(1)</script>`)
	if err != nil {
		t.Fatalf("NoscriptPage: %v", err)
	}
	body := string(page.Body)
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Errorf("path was not escaped: %s", body)
	}
}

func TestNoscriptPage_containsFormAction(t *testing.T) {
	page, err := NoscriptPage("/mypath")
	if err != nil {
		t.Fatalf("NoscriptPage: %v", err)
	}
	if !strings.Contains(string(page.Body), `action="/mypath"`) {
		t.Errorf("body does not contain form action: %s", page.Body)
	}
}

// Scenario: HEAD responses on reserved paths must carry the same headers
// as GET, with an empty body (spec §4.1 "HEAD consistency", P5).
func TestReservedPath_headMatchesGet(t *testing.T) {
	h := NewHandler(testLogger(), nil, 1)
	srv := httptest.NewServer(h)
	defer srv.Close()

	for _, path := range []string{"/", "/help", "/version", "/favicon.ico", "/robots.txt"} {
		path := path
		t.Run(path, func(t *testing.T) {
			getReq, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
			getResp, err := http.DefaultClient.Do(getReq)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			getBody, _ := io.ReadAll(getResp.Body)
			getResp.Body.Close()

			headReq, _ := http.NewRequest(http.MethodHead, srv.URL+path, nil)
			headResp, err := http.DefaultClient.Do(headReq)
			if err != nil {
				t.Fatalf("HEAD: %v", err)
			}
			headBody, _ := io.ReadAll(headResp.Body)
			headResp.Body.Close()

			if headResp.StatusCode != getResp.StatusCode {
				t.Errorf("HEAD status = %d, GET status = %d", headResp.StatusCode, getResp.StatusCode)
			}
			if len(headBody) != 0 {
				t.Errorf("HEAD body = %q, want empty", headBody)
			}
			if got, want := headResp.Header.Get(HeaderContentLength), getResp.Header.Get(HeaderContentLength); got != want {
				t.Errorf("HEAD Content-Length = %q, GET Content-Length = %q", got, want)
			}
			if got, want := headResp.Header.Get(HeaderContentType), getResp.Header.Get(HeaderContentType); got != want {
				t.Errorf("HEAD Content-Type = %q, GET Content-Type = %q", got, want)
			}
			_ = getBody
		})
	}
}

func TestReservedPath_postRejected(t *testing.T) {
	h := NewHandler(testLogger(), nil, 1)
	srv := httptest.NewServer(h)
	defer srv.Close()

	for _, path := range []string{"/", "/help", "/version"} {
		resp, err := http.Post(srv.URL+path, "", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", path, resp.StatusCode)
		}
	}
}
