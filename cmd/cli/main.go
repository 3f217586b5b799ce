// Command portal is a CLI client for the reseller portal service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	portalv1 "github.com/and161185/reseller-portal/api/portal/v1"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "reseller-portal")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reseller-portal")
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
		return "", errors.New("no saved token (login required)")
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

func removeToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

type dialConfig struct {
	addr      string
	caPath    string
	skipCheck bool
	plaintext bool
}

func loadTLS(caPath string, skipCheck bool) (credentials.TransportCredentials, error) {
	if skipCheck {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(dc dialConfig, bearer string) (*grpc.ClientConn, portalv1.PortalClient, error) {
	var creds credentials.TransportCredentials
	if dc.plaintext {
		creds = insecure.NewCredentials()
	} else {
		var err error
		if creds, err = loadTLS(dc.caPath, dc.skipCheck); err != nil {
			return nil, nil, err
		}
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !dc.plaintext}))
	}
	cc, err := grpc.NewClient(dc.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, portalv1.NewPortalClient(cc), nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// describe renders an RPC error with its structured details.
func describe(err error) string {
	s, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "rpc error: code=%s msg=%s", s.Code(), s.Message())
	for _, d := range s.Details() {
		switch v := d.(type) {
		case *errdetails.ErrorInfo:
			fmt.Fprintf(&b, "\n  reason: %s", v.GetReason())
			keys := make([]string, 0, len(v.GetMetadata()))
			for k := range v.GetMetadata() {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(&b, "\n  %s: %s", k, v.GetMetadata()[k])
			}
		case *errdetails.BadRequest:
			for _, fv := range v.GetFieldViolations() {
				fmt.Fprintf(&b, "\n  field %s: %s", fv.GetField(), fv.GetDescription())
			}
		}
	}
	return b.String()
}

func usage() {
	fmt.Fprintf(os.Stderr, `portal CLI
Usage:
  portal -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
`)
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", c.name, c.usage)
	}
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	var dc dialConfig
	flag.StringVar(&dc.addr, "addr", "localhost:8443", "server addr")
	flag.StringVar(&dc.caPath, "cacert", "", "CA cert (PEM)")
	flag.BoolVar(&dc.skipCheck, "insecure", false, "skip cert verify (dev)")
	flag.BoolVar(&dc.plaintext, "plaintext", false, "no TLS (dev servers without certificates)")
	timeout := flag.Duration("timeout", 30*time.Second, "per-command timeout")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	name := flag.Arg(0)
	switch name {
	case "version":
		fmt.Printf("portal %s (%s)\n", version, buildDate)
		return
	case "logout":
		if err := removeToken(); err != nil {
			fail(err)
		}
		fmt.Println("ok")
		return
	}

	cmd, ok := lookup(name)
	if !ok {
		usage()
	}

	var token string
	if cmd.auth {
		var err error
		if token, err = loadToken(); err != nil {
			fail(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cc, cli, err := dial(dc, token)
	if err != nil {
		fail(err)
	}
	defer cc.Close()

	out, err := cmd.run(ctx, cli, flag.Args()[1:])
	if err != nil {
		cc.Close()
		fail(err)
	}
	printJSON(os.Stdout, out)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, describe(err))
	os.Exit(1)
}
