// Command tm is a CLI client for the taskmesh HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/and161185/taskmesh/internal/contract"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "taskmesh")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "taskmesh")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- http client ----

// apiError is a failure envelope returned by the gateway.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta json.RawMessage `json:"meta"`
}

type apiClient struct {
	base  string
	token string
	hc    *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), token: token, hc: &http.Client{Timeout: 30 * time.Second}}
}

// do sends in as JSON and returns the data and meta of the response envelope.
func (c *apiClient) do(ctx context.Context, method, path string, in any) (envelope, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return envelope{}, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return envelope{}, fmt.Errorf("bad response (%d): %w", resp.StatusCode, err)
	}
	if env.Error != nil {
		return env, &apiError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
	}
	return env, nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `tm CLI
Usage:
  tm -api http://HOST:PORT <cmd> [args]

Commands:
  version
  register   -email <e> -p <password> -first <name> -last <name> [-phone <p>]
  login      -email <e> -p <password>                    (saves token)
  verify                                                 (checks the saved token)
  me
  health
  task create  -title <t> -desc <text|@file> [-due YYYY-MM-DD] [-status s] [-user id | -team id] [-id uuid]
  task list    [-status s] [-page n] [-size n] [-assigned] [-team id]
  task get     -id <uuid>
  task update  -id <uuid> [-title t] [-desc text|@file] [-due YYYY-MM-DD]
  task status  -id <uuid> -status todo|in_progress|done
  task assign  -id <uuid> [-user id | -team id]          (neither clears)
  task rm      -id <uuid>
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the gateway.
func main() {
	// global flags
	api := flag.String("api", envOr("TASKMESH_API", "http://localhost:8080"), "gateway base URL")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("tm %s (%s)\n", version, buildDate)

	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		first := fs.String("first", "", "first name")
		last := fs.String("last", "", "last name")
		phone := fs.String("phone", "", "phone")
		_ = fs.Parse(args)
		if *email == "" || *p == "" || *first == "" || *last == "" {
			fmt.Fprintln(os.Stderr, "need -email -p -first -last")
			os.Exit(1)
		}

		env, err := newAPIClient(*api, "").do(ctx, http.MethodPost, "/api/v1/auth/register", contract.RegisterRequest{
			Email: *email, Password: *p, FirstName: *first, LastName: *last, Phone: *phone,
		})
		if err != nil {
			fail(err)
		}
		var resp contract.RegisterResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			fail(err)
		}
		if err := saveToken(tokenFile{AccessToken: resp.Token.AccessToken, ExpiresAt: resp.Token.ExpiresAt, UserID: resp.ID.String()}); err != nil {
			fail(err)
		}
		fmt.Println(resp.ID)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -email and -p")
			os.Exit(1)
		}

		env, err := newAPIClient(*api, "").do(ctx, http.MethodPost, "/api/v1/auth/login", contract.LoginRequest{Email: *email, Password: *p})
		if err != nil {
			fail(err)
		}
		var resp contract.LoginResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			fail(err)
		}
		if err := saveToken(tokenFile{AccessToken: resp.Token.AccessToken, ExpiresAt: resp.Token.ExpiresAt, UserID: resp.User.ID.String()}); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "verify":
		token, err := loadToken()
		if err != nil {
			fail(err)
		}
		env, err := newAPIClient(*api, "").do(ctx, http.MethodPost, "/api/v1/auth/verify", contract.VerifyTokenRequest{Token: token})
		if err != nil {
			fail(err)
		}
		fmt.Println(pretty(env.Data))

	case "me":
		env, err := authed(*api).do(ctx, http.MethodGet, "/api/v1/users/me", nil)
		if err != nil {
			fail(err)
		}
		fmt.Println(pretty(env.Data))

	case "health":
		env, err := newAPIClient(*api, "").do(ctx, http.MethodGet, "/health", nil)
		if err != nil {
			fail(err)
		}
		fmt.Println(pretty(env.Data))

	case "task":
		if len(args) < 1 {
			usage()
		}
		runTask(ctx, authed(*api), args[0], args[1:])

	default:
		usage()
	}
}

// ---- helpers ----

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func authed(api string) *apiClient {
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	return newAPIClient(api, token)
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: code=%s status=%d msg=%s\n", ae.Code, ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
