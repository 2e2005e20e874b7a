package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const defaultAuthTimeout = 5 * time.Minute

const successPage = `<!DOCTYPE html>
<html><head><title>mcp-gmail</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h1>Authorization complete</h1>
<p>You can close this window and return to the terminal.</p>
</body></html>`

// LoopbackAuthorizer runs the installed-app OAuth flow: it listens on a local
// port, sends the user to the consent page and exchanges the returned code.
type LoopbackAuthorizer struct {
	// Out receives the consent URL. Defaults to os.Stderr.
	Out io.Writer
	// OpenBrowser opens the consent URL. Nil disables opening a browser.
	OpenBrowser func(url string) error
	// Timeout bounds the wait for the redirect.
	Timeout time.Duration
	// ListenAddr defaults to 127.0.0.1:0.
	ListenAddr string
}

// NewLoopbackAuthorizer returns an authorizer that opens the system browser.
func NewLoopbackAuthorizer() *LoopbackAuthorizer {
	return &LoopbackAuthorizer{
		Out:         os.Stderr,
		OpenBrowser: OpenBrowser,
		Timeout:     defaultAuthTimeout,
	}
}

type callbackResult struct {
	code string
	err  error
}

// Authorize implements Authorizer.
func (l *LoopbackAuthorizer) Authorize(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	addr := l.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start local callback listener: %w", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	cfg := *conf
	cfg.RedirectURL = fmt.Sprintf("http://localhost:%d/", port)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "authorization denied", http.StatusBadRequest)
			deliver(results, callbackResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			deliver(results, callbackResult{err: errors.New("state mismatch in OAuth callback")})
		case q.Get("code") == "":
			http.Error(w, "missing code", http.StatusBadRequest)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, successPage)
			deliver(results, callbackResult{code: q.Get("code")})
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(listener) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	out := l.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintf(out, "Open the following URL in your browser to authorize access:\n\n%s\n\n", authURL)
	if l.OpenBrowser != nil {
		if err := l.OpenBrowser(authURL); err != nil {
			fmt.Fprintf(out, "Could not open a browser automatically: %v\n", err)
		}
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = defaultAuthTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		return nil, fmt.Errorf("timed out waiting for authorization: %w", waitCtx.Err())
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

func deliver(ch chan<- callbackResult, r callbackResult) {
	select {
	case ch <- r:
	default:
	}
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	return cmd.Start()
}
