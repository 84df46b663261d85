// internal/mfp/mock.go
package mfp

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"

	"golang.org/x/text/encoding/traditionalchinese"
)

// MockPrinter is an httptest-backed stand-in for one device's admin UI.
// It issues real single-use tokens, enforces them on form POSTs, and
// serves Big5-encoded CSV downloads, so client tests exercise the same
// sequencing a physical device demands.
type MockPrinter struct {
	server *httptest.Server

	mu          sync.Mutex
	curToken1   string
	curToken2   string
	authed      bool
	loginPosts  int
	failNext500 int

	// Knobs for failure-path tests.
	OmitLoginToken bool   // serve the login page without a token2 input
	RejectLogin    bool   // accept the POST but bounce /main.html to login
	Username       string // expected credentials; default admin/admin
	Password       string

	// CSV payloads served by the download endpoints, in UTF-8; they are
	// Big5-encoded on the wire.
	UserCountCSV string
	JobLogCSV    string
}

// StartMockPrinter creates and starts a mock device.
func StartMockPrinter() *MockPrinter {
	m := &MockPrinter{
		Username:     "admin",
		Password:     "admin",
		UserCountCSV: "用戶名稱,印表機:黑白已使用,印表機:全彩已使用\nalice,10,2\n",
		JobLogCSV:    "工作ID,用戶名稱,登入名稱,開始日期,完成日期,黑白總張數,全彩總張數\n1,alice,alice01,2026-02-05 10:00:00,2026-02-05 10:00:05,3,0\n",
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login.html", m.handleLogin)
	mux.HandleFunc("/main.html", m.handleMain)
	mux.HandleFunc("/account_usercountlist_save.html", m.handleUserCountSave)
	mux.HandleFunc("/account_count_save.html", m.handleUserCountDownload)
	mux.HandleFunc("/sysmgt_joblog_save.html", m.handleJobLogSave)
	mux.HandleFunc("/joblog_download.html", m.handleJobLogDownload)
	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the mock device's base URL.
func (m *MockPrinter) URL() string { return m.server.URL }

// Close shuts the mock down.
func (m *MockPrinter) Close() { m.server.Close() }

// LoginPosts reports how many credential POSTs the mock has seen.
func (m *MockPrinter) LoginPosts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginPosts
}

// FailNextWith500 makes the next n requests answer 500, for retry tests.
func (m *MockPrinter) FailNextWith500(n int) {
	m.mu.Lock()
	m.failNext500 = n
	m.mu.Unlock()
}

func (m *MockPrinter) consumeFailure(w http.ResponseWriter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext500 > 0 {
		m.failNext500--
		http.Error(w, "internal error", http.StatusInternalServerError)
		return true
	}
	return false
}

func (m *MockPrinter) freshTokens() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.curToken1 = fmt.Sprintf("t1-%08x", rand.Uint32())
	m.curToken2 = fmt.Sprintf("t2-%08x", rand.Uint32())
	return m.curToken1, m.curToken2
}

func (m *MockPrinter) checkTokens(r *http.Request, needToken1 bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.FormValue("token2") != m.curToken2 || m.curToken2 == "" {
		return false
	}
	if needToken1 && (r.FormValue("token1") != m.curToken1 || m.curToken1 == "") {
		return false
	}
	// Tokens are single-use.
	m.curToken1, m.curToken2 = "", ""
	return true
}

func (m *MockPrinter) handleLogin(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		_, token2 := m.freshTokens()
		page := `<html><body><form method="post">`
		if !m.OmitLoginToken {
			page += fmt.Sprintf(`<input type="hidden" name="token2" value="%s">`, token2)
		}
		page += `<input name="ggt_textbox(10002)"><input name="ggt_textbox(10003)"></form></body></html>`
		fmt.Fprint(w, page)
	case http.MethodPost:
		m.mu.Lock()
		m.loginPosts++
		m.mu.Unlock()
		ok := m.checkTokens(r, false) &&
			r.FormValue("ggt_textbox(10002)") == m.Username &&
			r.FormValue("ggt_textbox(10003)") == m.Password &&
			r.FormValue("action") == "loginbtn"
		if ok && !m.RejectLogin {
			m.mu.Lock()
			m.authed = true
			m.mu.Unlock()
			http.SetCookie(w, &http.Cookie{Name: "AgtID", Value: "mock-session"})
		}
		// The device answers 200 even on bad credentials; failure only
		// shows on the verification GET.
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *MockPrinter) handleMain(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure(w) {
		return
	}
	m.mu.Lock()
	authed := m.authed && !m.RejectLogin
	m.mu.Unlock()
	if !authed {
		http.Redirect(w, r, "/login.html?/main.html", http.StatusFound)
		return
	}
	fmt.Fprint(w, `<html><body>main</body></html>`)
}

func (m *MockPrinter) tokenPage(w http.ResponseWriter) {
	token1, token2 := m.freshTokens()
	fmt.Fprintf(w, `<html><body><form method="post">`+
		`<input type="hidden" name="token1" value="%s">`+
		`<input type="hidden" name="token2" value="%s">`+
		`</form></body></html>`, token1, token2)
}

func (m *MockPrinter) handleUserCountSave(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		m.tokenPage(w)
	case http.MethodPost:
		if r.FormValue("action") != "countsavebtn" || !m.checkTokens(r, true) {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "ok")
	}
}

func (m *MockPrinter) handleUserCountDownload(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure(w) {
		return
	}
	m.serveBig5CSV(w, m.UserCountCSV)
}

func (m *MockPrinter) handleJobLogSave(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure(w) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		m.tokenPage(w)
	case http.MethodPost:
		if r.FormValue("action") != "jobsavebtn" || !m.checkTokens(r, true) {
			http.Error(w, "bad token", http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "ok")
	}
}

func (m *MockPrinter) handleJobLogDownload(w http.ResponseWriter, r *http.Request) {
	if m.consumeFailure(w) {
		return
	}
	m.serveBig5CSV(w, m.JobLogCSV)
}

func (m *MockPrinter) serveBig5CSV(w http.ResponseWriter, utf8CSV string) {
	enc := traditionalchinese.Big5.NewEncoder()
	b, err := enc.Bytes([]byte(utf8CSV))
	if err != nil {
		// Fall back to raw bytes; the parser replaces what it cannot read.
		b = []byte(utf8CSV)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(b)
}
